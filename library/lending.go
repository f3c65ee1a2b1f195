package library

import (
	"fmt"
	"log/slog"
)

// DefaultGraceDays is the loan period, and renewal extension, in days.
const DefaultGraceDays = 7

// UnknownRef stands in for a member name or book title that no longer resolves.
const UnknownRef = "unknown"

// Engine runs the loan lifecycle against a Store. It never reads the clock:
// every date comes from the caller.
type Engine struct {
	store     *Store
	graceDays int
	log       *slog.Logger
}

// NewEngine binds an engine to store. A graceDays below 1 falls back to DefaultGraceDays.
func NewEngine(store *Store, graceDays int, logger *slog.Logger) *Engine {
	if graceDays < 1 {
		graceDays = DefaultGraceDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, graceDays: graceDays, log: logger}
}

// GraceDays returns the configured loan period.
func (e *Engine) GraceDays() int { return e.graceDays }

// Borrow lends one copy of bookID to memberID on loanDate. All preconditions
// are checked before anything is mutated.
func (e *Engine) Borrow(memberID, bookID int64, loanDate Date) (Loan, error) {
	s := e.store
	if _, ok := s.memberIdx[memberID]; !ok {
		return Loan{}, fmt.Errorf("member %d: %w", memberID, ErrMemberNotFound)
	}
	bi, ok := s.bookIdx[bookID]
	if !ok {
		return Loan{}, fmt.Errorf("book %d: %w", bookID, ErrBookNotFound)
	}
	if !loanDate.Valid() {
		return Loan{}, fmt.Errorf("loan date %v: %w", loanDate, ErrInvalidDate)
	}
	if s.books[bi].Available() <= 0 {
		return Loan{}, fmt.Errorf("book %d: %w", bookID, ErrNoCopiesAvailable)
	}
	if s.limits.full(s.limits.MaxLoans, len(s.loans)) {
		return Loan{}, ErrCapacityExceeded
	}

	loan := Loan{
		ID:       s.nextLoanID,
		MemberID: memberID,
		BookID:   bookID,
		LoanDate: loanDate,
		DueDate:  loanDate.AddDays(e.graceDays),
		Status:   LoanActive,
	}
	s.nextLoanID++
	s.books[bi].LoanedCopies++
	s.books[bi].TimesBorrowed++
	s.loanIdx[loan.ID] = len(s.loans)
	s.loans = append(s.loans, loan)
	return loan, nil
}

// ReturnResult is the outcome of a successful return.
type ReturnResult struct {
	Loan    Loan            `json:"loan"`
	WasLate bool            `json:"was_late"`
	Warning *IntegrityIssue `json:"warning,omitempty"`
}

// Return closes the active loan loanID. Returned loans count as not found, so
// a second return of the same loan fails. When the loan's book is missing the
// return still completes and the inconsistency is reported in the result.
func (e *Engine) Return(loanID int64, today Date) (ReturnResult, error) {
	li, err := e.activeLoan(loanID)
	if err != nil {
		return ReturnResult{}, err
	}
	s := e.store
	loan := &s.loans[li]
	loan.Status = LoanReturned

	res := ReturnResult{Loan: *loan, WasLate: today.Compare(loan.DueDate) > 0}
	if bi, ok := s.bookIdx[loan.BookID]; ok {
		if s.books[bi].LoanedCopies > 0 {
			s.books[bi].LoanedCopies--
		} else {
			res.Warning = &IntegrityIssue{LoanID: loan.ID, BookID: loan.BookID, Message: "book had no loaned copies to release"}
		}
	} else {
		res.Warning = &IntegrityIssue{LoanID: loan.ID, BookID: loan.BookID, Message: "returned loan references a missing book"}
	}
	if res.Warning != nil {
		e.log.Warn("integrity warning on return",
			"loan_id", loan.ID, "book_id", loan.BookID, "issue", res.Warning.Message)
	}
	return res, nil
}

// Renew pushes the due date of the active loan loanID forward by one grace
// period, counted from the current due date rather than from today.
func (e *Engine) Renew(loanID int64, today Date) (Loan, error) {
	li, err := e.activeLoan(loanID)
	if err != nil {
		return Loan{}, err
	}
	loan := &e.store.loans[li]
	if today.Compare(loan.DueDate) > 0 {
		e.log.Debug("renewing overdue loan", "loan_id", loanID, "due", loan.DueDate.String(), "today", today.String())
	}
	loan.DueDate = loan.DueDate.AddDays(e.graceDays)
	return *loan, nil
}

func (e *Engine) activeLoan(loanID int64) (int, error) {
	li, ok := e.store.loanIdx[loanID]
	if !ok || !e.store.loans[li].Active() {
		return 0, fmt.Errorf("loan %d: %w", loanID, ErrLoanNotFound)
	}
	return li, nil
}

// ListActiveLoans returns every active loan in creation order.
func (e *Engine) ListActiveLoans() []Loan {
	out := []Loan{}
	for _, l := range e.store.loans {
		if l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// LoansForMember returns all loans of memberID, active and returned.
func (e *Engine) LoansForMember(memberID int64) []Loan {
	out := []Loan{}
	for _, l := range e.store.loans {
		if l.MemberID == memberID {
			out = append(out, l)
		}
	}
	return out
}

// OverdueEntry is an active loan past its due date, with display names resolved.
type OverdueEntry struct {
	Loan        Loan   `json:"loan"`
	MemberName  string `json:"member_name"`
	BookTitle   string `json:"book_title"`
	DaysOverdue int    `json:"days_overdue"`
}

// ListOverdue returns the active loans whose due date is strictly before today.
// Missing members or books render as UnknownRef.
func (e *Engine) ListOverdue(today Date) []OverdueEntry {
	s := e.store
	out := []OverdueEntry{}
	for _, l := range s.loans {
		if !l.Active() || today.Compare(l.DueDate) <= 0 {
			continue
		}
		entry := OverdueEntry{
			Loan:        l,
			MemberName:  UnknownRef,
			BookTitle:   UnknownRef,
			DaysOverdue: DaysBetween(l.DueDate, today),
		}
		if m, err := s.FindMemberByID(l.MemberID); err == nil {
			entry.MemberName = m.Name
		}
		if b, err := s.FindBookByID(l.BookID); err == nil {
			entry.BookTitle = b.Title
		}
		out = append(out, entry)
	}
	return out
}
