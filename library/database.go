package library

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// Database persists the store in a single SQLite file. Unlike the flat files,
// a save replaces all three collections in one transaction.
type Database struct {
	db   *sql.DB
	path string
	log  *slog.Logger

	// loadFailed blocks Save from replacing tables that could not be read.
	loadFailed bool

	insertBookStmt   *sql.Stmt
	insertMemberStmt *sql.Stmt
	insertLoanStmt   *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares the insert statements used by Save.
func NewDatabase(dbPath string, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %w", ErrPersistence, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrPersistence, err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	database := &Database{db: db, path: dbPath, log: logger}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("%w: prepare: %w", ErrPersistence, err)
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, st := range []*sql.Stmt{d.insertBookStmt, d.insertMemberStmt, d.insertLoanStmt} {
		if st != nil {
			st.Close()
		}
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

// Meta keys holding the id allocators.
const (
	metaNextBook   = "next_book_id"
	metaNextMember = "next_member_id"
	metaNextLoan   = "next_loan_id"
)

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// seq keeps store order independent of id order.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            seq INTEGER NOT NULL,
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL,
            year INTEGER NOT NULL,
            total_copies INTEGER NOT NULL,
            loaned_copies INTEGER NOT NULL,
            times_borrowed INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            seq INTEGER NOT NULL,
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            course TEXT NOT NULL,
            phone TEXT NOT NULL,
            registered TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            seq INTEGER NOT NULL,
            id INTEGER PRIMARY KEY,
            member_id INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            loan_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            status TEXT NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.insertBookStmt, err = d.db.Prepare(`INSERT INTO books(seq,id,title,author,publisher,year,total_copies,loaned_copies,times_borrowed) VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.insertMemberStmt, err = d.db.Prepare(`INSERT INTO members(seq,id,name,course,phone,registered) VALUES(?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.insertLoanStmt, err = d.db.Prepare(`INSERT INTO loans(seq,id,member_id,book_id,loan_date,due_date,status) VALUES(?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save replaces every table's content with snap in one transaction. It
// refuses to run after a failed Load.
func (d *Database) Save(snap Snapshot) error {
	if d.loadFailed {
		return fmt.Errorf("%w: not overwriting %s, it failed to load", ErrPersistence, d.path)
	}
	if err := d.save(snap); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, d.path, err)
	}
	return nil
}

func (d *Database) save(snap Snapshot) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"books", "members", "loans"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	books := tx.Stmt(d.insertBookStmt)
	for i, b := range snap.Books {
		if _, err := books.Exec(i, b.ID, b.Title, b.Author, b.Publisher, b.Year, b.TotalCopies, b.LoanedCopies, b.TimesBorrowed); err != nil {
			return fmt.Errorf("book %d: %w", b.ID, err)
		}
	}
	members := tx.Stmt(d.insertMemberStmt)
	for i, m := range snap.Members {
		if _, err := members.Exec(i, m.ID, m.Name, m.Course, m.Phone, m.Registered.String()); err != nil {
			return fmt.Errorf("member %d: %w", m.ID, err)
		}
	}
	loans := tx.Stmt(d.insertLoanStmt)
	for i, l := range snap.Loans {
		if _, err := loans.Exec(i, l.ID, l.MemberID, l.BookID, l.LoanDate.String(), l.DueDate.String(), l.Status.String()); err != nil {
			return fmt.Errorf("loan %d: %w", l.ID, err)
		}
	}

	for key, v := range map[string]int64{
		metaNextBook:   snap.NextBookID,
		metaNextMember: snap.NextMemberID,
		metaNextLoan:   snap.NextLoanID,
	} {
		if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, key, strconv.FormatInt(v, 10)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load reads the three tables in store order. Rows whose dates or status do
// not decode are dropped and counted, like malformed lines in the flat files.
func (d *Database) Load() (Snapshot, LoadReport, error) {
	snap, rep, err := d.load()
	d.loadFailed = err != nil
	if err != nil {
		return Snapshot{}, LoadReport{Dropped: map[string]int{}}, fmt.Errorf("%w: load %s: %w", ErrPersistence, d.path, err)
	}
	return snap, rep, nil
}

func (d *Database) load() (Snapshot, LoadReport, error) {
	var snap Snapshot
	rep := LoadReport{Dropped: make(map[string]int)}

	rows, err := d.db.Query(`SELECT id,title,author,publisher,year,total_copies,loaned_copies,times_borrowed FROM books ORDER BY seq`)
	if err != nil {
		return snap, rep, err
	}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.Year, &b.TotalCopies, &b.LoanedCopies, &b.TimesBorrowed); err != nil {
			rows.Close()
			return snap, rep, err
		}
		if b.TotalCopies < 1 || b.LoanedCopies < 0 || b.LoanedCopies > b.TotalCopies {
			rep.Dropped["books"]++
			d.log.Warn("dropping inconsistent book row", "book_id", b.ID)
			continue
		}
		snap.Books = append(snap.Books, b)
	}
	rows.Close()

	rows, err = d.db.Query(`SELECT id,name,course,phone,registered FROM members ORDER BY seq`)
	if err != nil {
		return snap, rep, err
	}
	for rows.Next() {
		var (
			m   Member
			reg string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Course, &m.Phone, &reg); err != nil {
			rows.Close()
			return snap, rep, err
		}
		if m.Registered, err = decodeDate(reg); err != nil {
			rep.Dropped["members"]++
			d.log.Warn("dropping member row", "member_id", m.ID, "err", err)
			continue
		}
		snap.Members = append(snap.Members, m)
	}
	rows.Close()

	rows, err = d.db.Query(`SELECT id,member_id,book_id,loan_date,due_date,status FROM loans ORDER BY seq`)
	if err != nil {
		return snap, rep, err
	}
	for rows.Next() {
		var (
			l                     Loan
			loanDate, due, status string
		)
		if err := rows.Scan(&l.ID, &l.MemberID, &l.BookID, &loanDate, &due, &status); err != nil {
			rows.Close()
			return snap, rep, err
		}
		l.LoanDate, err = decodeDate(loanDate)
		if err == nil {
			l.DueDate, err = decodeDate(due)
		}
		if err == nil {
			l.Status, err = ParseLoanStatus(status)
		}
		if err != nil {
			rep.Dropped["loans"]++
			d.log.Warn("dropping loan row", "loan_id", l.ID, "err", err)
			continue
		}
		snap.Loans = append(snap.Loans, l)
	}
	rows.Close()

	meta := map[string]*int64{
		metaNextBook:   &snap.NextBookID,
		metaNextMember: &snap.NextMemberID,
		metaNextLoan:   &snap.NextLoanID,
	}
	for key, dst := range meta {
		var v string
		err := d.db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return snap, rep, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			d.log.Warn("ignoring malformed id counter", "key", key, "value", v, "err", err)
			continue
		}
		*dst = n
	}

	rep.Books, rep.Members, rep.Loans = len(snap.Books), len(snap.Members), len(snap.Loans)
	return snap, rep, nil
}

// Files lists the database file.
func (d *Database) Files() []string { return []string{d.path} }

// Backup writes a consistent copy of the database to <path>.bak.
func (d *Database) Backup() ([]string, error) {
	dst := d.path + ".bak"
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: remove old backup: %w", ErrPersistence, err)
	}
	if _, err := d.db.Exec(`VACUUM INTO ?`, dst); err != nil {
		return nil, fmt.Errorf("%w: backup %s: %w", ErrPersistence, d.path, err)
	}
	return []string{dst}, nil
}
