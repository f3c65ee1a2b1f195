package library

import "fmt"

// Book is a catalogued title. Availability is derived from TotalCopies and
// LoanedCopies and is never stored on its own.
type Book struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	Year          int    `json:"year"`
	TotalCopies   int    `json:"total_copies"`
	LoanedCopies  int    `json:"loaned_copies"`
	TimesBorrowed int    `json:"times_borrowed"`
}

// Available returns the number of copies that can still be lent.
func (b Book) Available() int { return b.TotalCopies - b.LoanedCopies }

// BookFields are the caller-supplied attributes of a new book.
type BookFields struct {
	Title       string
	Author      string
	Publisher   string
	Year        int
	TotalCopies int
}

// Member is a registered borrower.
type Member struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Course     string `json:"course"`
	Phone      string `json:"phone"`
	Registered Date   `json:"registered"`
}

// MemberFields are the caller-supplied attributes of a new member.
type MemberFields struct {
	Name       string
	Course     string
	Phone      string
	Registered Date
}

// LoanStatus is the lifecycle state of a loan: Active, then Returned.
type LoanStatus int

const (
	LoanActive LoanStatus = iota + 1
	LoanReturned
)

func (s LoanStatus) String() string {
	switch s {
	case LoanActive:
		return "Active"
	case LoanReturned:
		return "Returned"
	}
	return fmt.Sprintf("LoanStatus(%d)", int(s))
}

// MarshalText encodes the status by name for JSON output.
func (s LoanStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseLoanStatus accepts the English names and the legacy "Ativo"/"Devolvido".
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch s {
	case "Active", "Ativo":
		return LoanActive, nil
	case "Returned", "Devolvido":
		return LoanReturned, nil
	}
	return 0, fmt.Errorf("unknown loan status %q", s)
}

// Loan records one copy of a book lent to a member.
type Loan struct {
	ID       int64      `json:"id"`
	MemberID int64      `json:"member_id"`
	BookID   int64      `json:"book_id"`
	LoanDate Date       `json:"loan_date"`
	DueDate  Date       `json:"due_date"`
	Status   LoanStatus `json:"status"`
}

// Active reports whether the loan is still out.
func (l Loan) Active() bool { return l.Status == LoanActive }

// Snapshot is the full persisted state: the three collections in store order
// plus the next identifier of each allocator.
type Snapshot struct {
	Books        []Book
	Members      []Member
	Loans        []Loan
	NextBookID   int64
	NextMemberID int64
	NextLoanID   int64
}
