package library

import (
	"errors"
	"fmt"
	"log/slog"
)

// LibraryManager is a thin façade over the store, the lending engine and the
// persister, keeping CLI code simple. State is loaded on open and saved after
// every mutating operation. Close saves only if a change is still unsaved, so
// a read-only session never rewrites the backing files.
type LibraryManager struct {
	cfg       Config
	store     *Store
	engine    *Engine
	persister Persister
	log       *slog.Logger

	// dirty is set by every successful mutation and cleared by a successful save.
	dirty bool
}

// NewLibraryManager opens the backend selected by cfg and loads its state.
// Unreadable files degrade to empty collections and the load error is logged,
// not returned.
func NewLibraryManager(cfg Config, logger *slog.Logger) (*LibraryManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p, err := OpenPersister(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newManager(cfg, p, logger), nil
}

// NewLibraryManagerWith uses an already opened persister.
func NewLibraryManagerWith(cfg Config, p Persister, logger *slog.Logger) *LibraryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return newManager(cfg, p, logger)
}

func newManager(cfg Config, p Persister, logger *slog.Logger) *LibraryManager {
	snap, rep, err := p.Load()
	if err != nil {
		logger.Error("loading catalog", "err", err)
	}
	if n := rep.totalDropped(); n > 0 {
		logger.Warn("dropped malformed records while loading", "count", n, "detail", rep.Dropped)
	}
	store := RestoreStore(cfg.Limits(), snap, logger)
	for _, issue := range store.CheckIntegrity() {
		logger.Warn("integrity warning", "issue", issue.String())
	}
	logger.Debug("catalog loaded", "books", rep.Books, "members", rep.Members, "loans", rep.Loans)

	return &LibraryManager{
		cfg:       cfg,
		store:     store,
		engine:    NewEngine(store, cfg.GraceDays, logger),
		persister: p,
		log:       logger,
	}
}

// Close flushes unsaved changes and releases the backend.
func (lm *LibraryManager) Close() error {
	return errors.Join(lm.flush(), lm.persister.Close())
}

// Dirty reports whether the catalog holds changes not yet saved.
func (lm *LibraryManager) Dirty() bool { return lm.dirty }

// Save writes the full catalog through the persister.
func (lm *LibraryManager) Save() error {
	if err := lm.persister.Save(lm.store.Snapshot()); err != nil {
		lm.log.Error("saving catalog", "err", err)
		return err
	}
	lm.dirty = false
	return nil
}

func (lm *LibraryManager) flush() error {
	if !lm.dirty {
		return nil
	}
	return lm.Save()
}

// changed marks a completed mutation and saves it.
func (lm *LibraryManager) changed() error {
	lm.dirty = true
	return lm.Save()
}

// Store exposes the record store for read-only queries.
func (lm *LibraryManager) Store() *Store { return lm.store }

// Engine exposes the lending engine for read-only queries.
func (lm *LibraryManager) Engine() *Engine { return lm.engine }

// Config returns the configuration the manager was opened with.
func (lm *LibraryManager) Config() Config { return lm.cfg }

// ------------------ Registration ------------------

// AddBook registers a book. A non-nil error wrapping ErrPersistence means the
// book was registered in memory but could not be saved.
func (lm *LibraryManager) AddBook(f BookFields) (int64, error) {
	id, err := lm.store.CreateBook(f)
	if err != nil {
		return 0, err
	}
	return id, lm.changed()
}

// AddMember registers a member; see AddBook for the meaning of ErrPersistence.
func (lm *LibraryManager) AddMember(f MemberFields) (int64, error) {
	id, err := lm.store.CreateMember(f)
	if err != nil {
		return 0, err
	}
	return id, lm.changed()
}

func (lm *LibraryManager) GetBook(id int64) (Book, error)     { return lm.store.FindBookByID(id) }
func (lm *LibraryManager) GetMember(id int64) (Member, error) { return lm.store.FindMemberByID(id) }
func (lm *LibraryManager) GetLoan(id int64) (Loan, error)     { return lm.store.FindLoanByID(id) }
func (lm *LibraryManager) GetAllBooks() []Book                { return lm.store.Books() }
func (lm *LibraryManager) GetAllMembers() []Member            { return lm.store.Members() }

// ------------------ Search ------------------

func (lm *LibraryManager) SearchBooksByTitle(q string) []Book  { return lm.store.SearchBooksByTitle(q) }
func (lm *LibraryManager) SearchBooksByAuthor(q string) []Book { return lm.store.SearchBooksByAuthor(q) }
func (lm *LibraryManager) SearchMembers(q string) []Member     { return lm.store.SearchMembersByName(q) }
func (lm *LibraryManager) AdvancedSearch(title string, year int) []Book {
	return AdvancedSearchBooks(lm.store, title, year)
}

// ------------------ Circulation ------------------

// Borrow lends bookID to memberID. On a save failure the loan is returned
// together with an error wrapping ErrPersistence.
func (lm *LibraryManager) Borrow(memberID, bookID int64, loanDate Date) (Loan, error) {
	loan, err := lm.engine.Borrow(memberID, bookID, loanDate)
	if err != nil {
		return Loan{}, err
	}
	lm.log.Info("loan created", "loan_id", loan.ID, "member_id", memberID, "book_id", bookID, "due", loan.DueDate.String())
	return loan, lm.changed()
}

// ReturnLoan closes an active loan as of today.
func (lm *LibraryManager) ReturnLoan(loanID int64, today Date) (ReturnResult, error) {
	res, err := lm.engine.Return(loanID, today)
	if err != nil {
		return ReturnResult{}, err
	}
	lm.log.Info("loan returned", "loan_id", loanID, "late", res.WasLate)
	return res, lm.changed()
}

// Renew extends an active loan by one grace period.
func (lm *LibraryManager) Renew(loanID int64, today Date) (Loan, error) {
	loan, err := lm.engine.Renew(loanID, today)
	if err != nil {
		return Loan{}, err
	}
	lm.log.Info("loan renewed", "loan_id", loanID, "due", loan.DueDate.String())
	return loan, lm.changed()
}

func (lm *LibraryManager) ActiveLoans() []Loan               { return lm.engine.ListActiveLoans() }
func (lm *LibraryManager) MemberLoans(memberID int64) []Loan { return lm.engine.LoansForMember(memberID) }
func (lm *LibraryManager) Overdue(today Date) []OverdueEntry { return OverdueReport(lm.engine, today) }
func (lm *LibraryManager) MostBorrowed(topN int) []Book      { return MostBorrowed(lm.store, topN) }
func (lm *LibraryManager) CheckIntegrity() []IntegrityIssue  { return lm.store.CheckIntegrity() }

// ------------------ Maintenance ------------------

// Backup flushes unsaved changes and then copies the persisted state aside.
func (lm *LibraryManager) Backup() ([]string, error) {
	if err := lm.flush(); err != nil {
		return nil, err
	}
	return lm.persister.Backup()
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-6d %-6d %-6d",
		b.ID, Truncate(b.Title, 30), Truncate(b.Author, 25), b.Year, b.Available(), b.TimesBorrowed)
}

// PrettyLoan formats a loan for lists.
func PrettyLoan(l Loan) string {
	return fmt.Sprintf("%-5d %-8d %-8d %-12s %-12s %-9s",
		l.ID, l.MemberID, l.BookID, l.LoanDate, l.DueDate, l.Status)
}

// Truncate shortens s to maxLength runes, marking the cut with "...".
func Truncate(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
