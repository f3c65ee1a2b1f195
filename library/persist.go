package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Persister loads and saves the full catalog state.
type Persister interface {
	Load() (Snapshot, LoadReport, error)
	Save(Snapshot) error
	// Backup copies the persisted state next to itself and returns the copies' paths.
	Backup() ([]string, error)
	// Files lists the paths holding the persisted state.
	Files() []string
	Close() error
}

// Supported values of Config.Backend.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

// SQLiteFile is the database name used by the sqlite backend inside DataDir.
const SQLiteFile = "library.db"

// OpenPersister builds the backend selected by cfg.
func OpenPersister(cfg Config, logger *slog.Logger) (Persister, error) {
	switch cfg.Backend {
	case BackendFiles, "":
		return NewFileCodec(cfg.DataDir, logger), nil
	case BackendSQLite:
		return NewDatabase(filepath.Join(cfg.DataDir, SQLiteFile), logger)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Backup copies every existing store file to "<file>.bak" and checks that each
// copy's BLAKE2b-256 digest matches its source. Files not yet written are skipped.
func (c *FileCodec) Backup() ([]string, error) {
	var done []string
	for _, src := range c.Files() {
		dst := src + ".bak"
		ok, err := copyVerified(src, dst)
		if err != nil {
			return done, fmt.Errorf("%w: backup %s: %w", ErrPersistence, src, err)
		}
		if !ok {
			c.log.Debug("backup skipped, file not written yet", "file", src)
			continue
		}
		done = append(done, dst)
	}
	return done, nil
}

// copyVerified reports false without error when src does not exist.
func copyVerified(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}

	want := h.Sum(nil)
	got, err := fileDigest(dst)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(want, got) {
		return false, fmt.Errorf("digest mismatch for %s", dst)
	}
	return true, nil
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
