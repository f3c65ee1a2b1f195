package library

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	fieldSep     = ";"
	headerPrefix = "#next"

	BooksFile   = "books.txt"
	MembersFile = "members.txt"
	LoansFile   = "loans.txt"

	// maxLineLen bounds one record line. Longer lines are dropped as malformed.
	maxLineLen = 4096
)

// LoadReport counts what a load kept, and dropped per collection ("books", "members", "loans").
type LoadReport struct {
	Books, Members, Loans int
	Dropped               map[string]int
}

func (r LoadReport) totalDropped() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

// FileCodec persists the store as three ';'-separated text files, one record
// per line, each preceded by a "#next;N" header holding the id allocator.
type FileCodec struct {
	dir string
	log *slog.Logger

	// unreadable holds the files whose last Load failed; Save leaves them alone.
	unreadable map[string]bool
}

// NewFileCodec stores its files in dir, creating it on first save.
func NewFileCodec(dir string, logger *slog.Logger) *FileCodec {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCodec{dir: dir, log: logger, unreadable: make(map[string]bool)}
}

func (c *FileCodec) path(name string) string { return filepath.Join(c.dir, name) }

// Files lists the paths the codec reads and writes.
func (c *FileCodec) Files() []string {
	return []string{c.path(BooksFile), c.path(MembersFile), c.path(LoansFile)}
}

// Close is a no-op; every file handle is scoped to a single Load or Save.
func (c *FileCodec) Close() error { return nil }

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load reads all three files. A missing file is an empty collection. When a
// file fails partway, the records and header read so far are kept, the
// failure is returned wrapped in ErrPersistence, and Save refuses to
// overwrite that file until a later Load reads it cleanly. Malformed lines
// are dropped and counted.
func (c *FileCodec) Load() (Snapshot, LoadReport, error) {
	var (
		snap Snapshot
		errs []error
	)
	rep := LoadReport{Dropped: make(map[string]int)}
	c.unreadable = make(map[string]bool)

	next, dropped, err := c.readFile(BooksFile, func(fields []string) error {
		b, err := decodeBook(fields)
		if err == nil {
			snap.Books = append(snap.Books, b)
		}
		return err
	})
	snap.NextBookID, rep.Dropped["books"] = next, dropped
	if err != nil {
		errs = append(errs, err)
	}

	next, dropped, err = c.readFile(MembersFile, func(fields []string) error {
		m, err := decodeMember(fields)
		if err == nil {
			snap.Members = append(snap.Members, m)
		}
		return err
	})
	snap.NextMemberID, rep.Dropped["members"] = next, dropped
	if err != nil {
		errs = append(errs, err)
	}

	next, dropped, err = c.readFile(LoansFile, func(fields []string) error {
		l, err := decodeLoan(fields)
		if err == nil {
			snap.Loans = append(snap.Loans, l)
		}
		return err
	})
	snap.NextLoanID, rep.Dropped["loans"] = next, dropped
	if err != nil {
		errs = append(errs, err)
	}

	rep.Books, rep.Members, rep.Loans = len(snap.Books), len(snap.Members), len(snap.Loans)
	return snap, rep, errors.Join(errs...)
}

// readFile feeds every record line of name to decode and returns the header's
// next id (0 when absent) and the number of dropped lines. On a read error
// the values gathered so far are returned with the error and the file is
// marked unreadable.
func (c *FileCodec) readFile(name string, decode func([]string) error) (next int64, dropped int, err error) {
	p := c.path(name)
	defer func() {
		if err != nil {
			c.unreadable[name] = true
		}
	}()
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: open %s: %w", ErrPersistence, p, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, rerr := r.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return next, dropped, fmt.Errorf("%w: read %s: %w", ErrPersistence, p, rerr)
		}
		line := strings.TrimRight(raw, "\r\n")
		switch {
		case strings.TrimSpace(line) == "":
		case len(line) > maxLineLen:
			dropped++
			c.log.Warn("dropping over-long record", "file", name, "line", lineNo, "bytes", len(line))
		case strings.HasPrefix(line, headerPrefix):
			if n, ok := parseHeader(line); ok {
				next = n
			} else {
				c.log.Warn("ignoring malformed header", "file", name, "line", lineNo)
			}
		default:
			if err := decode(strings.Split(line, fieldSep)); err != nil {
				dropped++
				c.log.Warn("dropping malformed record", "file", name, "line", lineNo, "err", err)
			}
		}
		if rerr != nil {
			return next, dropped, nil
		}
	}
}

func parseHeader(line string) (int64, bool) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 2 || parts[0] != headerPrefix {
		return 0, false
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// fieldReader pulls typed values out of a split record, remembering the first failure.
type fieldReader struct {
	fields []string
	err    error
}

func (r *fieldReader) id(i int) int64 {
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(r.fields[i]), 10, 64)
	if err == nil && n < 1 {
		err = fmt.Errorf("id %d is not positive", n)
	}
	r.err = err
	return n
}

func (r *fieldReader) int(i int) int {
	if r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(r.fields[i]))
	r.err = err
	return n
}

func (r *fieldReader) date(i int) Date {
	if r.err != nil {
		return Date{}
	}
	d, err := decodeDate(r.fields[i])
	r.err = err
	return d
}

func decodeBook(fields []string) (Book, error) {
	if len(fields) != 8 {
		return Book{}, fmt.Errorf("want 8 fields, got %d", len(fields))
	}
	r := fieldReader{fields: fields}
	b := Book{
		ID:            r.id(0),
		Title:         fields[1],
		Author:        fields[2],
		Publisher:     fields[3],
		Year:          r.int(4),
		TotalCopies:   r.int(5),
		LoanedCopies:  r.int(6),
		TimesBorrowed: r.int(7),
	}
	if r.err != nil {
		return Book{}, r.err
	}
	if b.TotalCopies < 1 || b.LoanedCopies < 0 || b.LoanedCopies > b.TotalCopies {
		return Book{}, fmt.Errorf("inconsistent copy counts %d/%d", b.LoanedCopies, b.TotalCopies)
	}
	if b.TimesBorrowed < 0 {
		return Book{}, fmt.Errorf("negative borrow count %d", b.TimesBorrowed)
	}
	return b, nil
}

func decodeMember(fields []string) (Member, error) {
	if len(fields) != 5 {
		return Member{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	r := fieldReader{fields: fields}
	m := Member{
		ID:         r.id(0),
		Name:       fields[1],
		Course:     fields[2],
		Phone:      fields[3],
		Registered: r.date(4),
	}
	return m, r.err
}

func decodeLoan(fields []string) (Loan, error) {
	if len(fields) != 6 {
		return Loan{}, fmt.Errorf("want 6 fields, got %d", len(fields))
	}
	r := fieldReader{fields: fields}
	l := Loan{
		ID:       r.id(0),
		MemberID: r.id(1),
		BookID:   r.id(2),
		LoanDate: r.date(3),
		DueDate:  r.date(4),
	}
	if r.err != nil {
		return Loan{}, r.err
	}
	status, err := ParseLoanStatus(strings.TrimSpace(fields[5]))
	if err != nil {
		return Loan{}, err
	}
	l.Status = status
	return l, nil
}

// decodeDate accepts D-M-Y and D/M/Y. Only the calendar shape is checked:
// due dates computed near MaxYear may legitimately fall outside the window.
func decodeDate(s string) (Date, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		n[i] = v
	}
	d := Date{Day: n[0], Month: n[1], Year: n[2]}
	if !d.wellFormed() {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save fully rewrites each file from snap. Every file is written to a
// temporary sibling and renamed into place, so a crash leaves either the old
// or the new version of that file. The three files are not updated atomically
// as a group. A file that failed to load is skipped and reported; the others
// are still written.
func (c *FileCodec) Save(snap Snapshot) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", ErrPersistence, err)
	}
	books := c.writeFile(BooksFile, snap.NextBookID, func(w io.Writer) error {
		for _, b := range snap.Books {
			if _, err := fmt.Fprintf(w, "%d;%s;%s;%s;%d;%d;%d;%d\n",
				b.ID, b.Title, b.Author, b.Publisher, b.Year,
				b.TotalCopies, b.LoanedCopies, b.TimesBorrowed); err != nil {
				return err
			}
		}
		return nil
	})
	members := c.writeFile(MembersFile, snap.NextMemberID, func(w io.Writer) error {
		for _, m := range snap.Members {
			if _, err := fmt.Fprintf(w, "%d;%s;%s;%s;%s\n",
				m.ID, m.Name, m.Course, m.Phone, m.Registered); err != nil {
				return err
			}
		}
		return nil
	})
	loans := c.writeFile(LoansFile, snap.NextLoanID, func(w io.Writer) error {
		for _, l := range snap.Loans {
			if _, err := fmt.Fprintf(w, "%d;%d;%d;%s;%s;%s\n",
				l.ID, l.MemberID, l.BookID, l.LoanDate, l.DueDate, l.Status); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Join(books, members, loans)
}

func (c *FileCodec) writeFile(name string, next int64, body func(io.Writer) error) (err error) {
	p := c.path(name)
	if c.unreadable[name] {
		return fmt.Errorf("%w: not overwriting %s, it failed to load", ErrPersistence, p)
	}
	tmp := p + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPersistence, tmp, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
			err = fmt.Errorf("%w: write %s: %w", ErrPersistence, p, err)
		}
	}()

	w := bufio.NewWriter(f)
	if next < 1 {
		next = 1
	}
	if _, err = fmt.Fprintf(w, "%s%s%d\n", headerPrefix, fieldSep, next); err != nil {
		return err
	}
	if err = body(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
