package library

import (
	"errors"
	"testing"
)

func newEngine(t *testing.T, limits Limits) (*Engine, *Store) {
	t.Helper()
	s := NewStore(limits)
	return NewEngine(s, DefaultGraceDays, nil), s
}

func mustBook(t *testing.T, s *Store, title string, copies int) int64 {
	t.Helper()
	f := bookFields(title)
	f.TotalCopies = copies
	id, err := s.CreateBook(f)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	return id
}

func mustMember(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateMember(memberFields(name))
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return id
}

func TestBorrowScenario(t *testing.T) {
	e, s := newEngine(t, Limits{})
	bookA := mustBook(t, s, "Book A", 2)
	m := mustMember(t, s, "Member M")

	first, err := e.Borrow(m, bookA, d(1, 1, 2024))
	if err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	if first.DueDate != d(8, 1, 2024) {
		t.Fatalf("first due: got %s", first.DueDate)
	}
	second, err := e.Borrow(m, bookA, d(2, 1, 2024))
	if err != nil {
		t.Fatalf("second borrow: %v", err)
	}
	if second.DueDate != d(9, 1, 2024) {
		t.Fatalf("second due: got %s", second.DueDate)
	}

	if _, err := e.Borrow(m, bookA, d(3, 1, 2024)); !errors.Is(err, ErrNoCopiesAvailable) {
		t.Fatalf("third borrow: want ErrNoCopiesAvailable, got %v", err)
	}
	b, _ := s.FindBookByID(bookA)
	if b.LoanedCopies != 2 || b.TimesBorrowed != 2 {
		t.Fatalf("counters changed by failed borrow: loaned=%d borrowed=%d", b.LoanedCopies, b.TimesBorrowed)
	}
	if got := len(s.Loans()); got != 2 {
		t.Fatalf("want 2 loans, got %d", got)
	}

	overdue := e.ListOverdue(d(10, 1, 2024))
	if len(overdue) != 2 {
		t.Fatalf("want 2 overdue loans, got %d", len(overdue))
	}
	if overdue[0].DaysOverdue != 2 || overdue[1].DaysOverdue != 1 {
		t.Fatalf("days overdue: got %d and %d", overdue[0].DaysOverdue, overdue[1].DaysOverdue)
	}
	if overdue[0].MemberName != "Member M" || overdue[0].BookTitle != "Book A" {
		t.Fatalf("unexpected names %q / %q", overdue[0].MemberName, overdue[0].BookTitle)
	}
}

func TestBorrowPostconditions(t *testing.T) {
	e, s := newEngine(t, Limits{})
	bookID := mustBook(t, s, "Book", 3)
	m := mustMember(t, s, "Member")

	for i, day := range []Date{d(30, 1, 2024), d(28, 2, 2023), d(27, 12, 2024)} {
		before, _ := s.FindBookByID(bookID)
		loan, err := e.Borrow(m, bookID, day)
		if err != nil {
			t.Fatalf("borrow %d: %v", i, err)
		}
		after, _ := s.FindBookByID(bookID)
		if after.LoanedCopies != before.LoanedCopies+1 || after.TimesBorrowed != before.TimesBorrowed+1 {
			t.Fatalf("borrow %d: counters %+v -> %+v", i, before, after)
		}
		if !loan.Active() || loan.DueDate != day.AddDays(7) {
			t.Fatalf("borrow %d: got loan %+v", i, loan)
		}
	}
}

func TestBorrowPreconditions(t *testing.T) {
	e, s := newEngine(t, Limits{MaxLoans: 1})
	bookID := mustBook(t, s, "Book", 5)
	m := mustMember(t, s, "Member")

	tests := []struct {
		name     string
		member   int64
		book     int64
		date     Date
		expected error
	}{
		{"unknown member", 99, bookID, d(1, 1, 2024), ErrMemberNotFound},
		{"unknown book", m, 99, d(1, 1, 2024), ErrBookNotFound},
		{"invalid date", m, bookID, d(31, 2, 2024), ErrInvalidDate},
		{"date outside window", m, bookID, d(1, 1, 1999), ErrInvalidDate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Borrow(tc.member, tc.book, tc.date); !errors.Is(err, tc.expected) {
				t.Fatalf("want %v, got %v", tc.expected, err)
			}
		})
	}
	b, _ := s.FindBookByID(bookID)
	if b.LoanedCopies != 0 || b.TimesBorrowed != 0 {
		t.Fatalf("failed borrows mutated the book: %+v", b)
	}

	if _, err := e.Borrow(m, bookID, d(1, 1, 2024)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := e.Borrow(m, bookID, d(1, 1, 2024)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
}

func TestReturn(t *testing.T) {
	e, s := newEngine(t, Limits{})
	bookID := mustBook(t, s, "Book", 1)
	m := mustMember(t, s, "Member")
	loan, _ := e.Borrow(m, bookID, d(1, 1, 2024))

	res, err := e.Return(loan.ID, d(8, 1, 2024))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if res.WasLate || res.Warning != nil || res.Loan.Status != LoanReturned {
		t.Fatalf("unexpected result %+v", res)
	}
	b, _ := s.FindBookByID(bookID)
	if b.Available() != 1 || b.TimesBorrowed != 1 {
		t.Fatalf("book after return: %+v", b)
	}

	if _, err := e.Return(loan.ID, d(9, 1, 2024)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("second return: want ErrLoanNotFound, got %v", err)
	}
	if _, err := e.Return(42, d(9, 1, 2024)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("unknown loan: want ErrLoanNotFound, got %v", err)
	}
	// the returned loan stays on record
	got, err := s.FindLoanByID(loan.ID)
	if err != nil || got.Status != LoanReturned {
		t.Fatalf("returned loan: %+v, %v", got, err)
	}
}

func TestReturnLate(t *testing.T) {
	e, s := newEngine(t, Limits{})
	bookID := mustBook(t, s, "Book", 1)
	m := mustMember(t, s, "Member")
	loan, _ := e.Borrow(m, bookID, d(1, 1, 2024))

	res, err := e.Return(loan.ID, d(9, 1, 2024))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if !res.WasLate {
		t.Fatalf("expected late return")
	}
}

func TestReturnWithMissingBook(t *testing.T) {
	s := RestoreStore(Limits{}, Snapshot{
		Members: []Member{{ID: 1, Name: "M", Registered: d(1, 1, 2024)}},
		Loans: []Loan{{
			ID: 1, MemberID: 1, BookID: 5,
			LoanDate: d(1, 1, 2024), DueDate: d(8, 1, 2024), Status: LoanActive,
		}},
	}, nil)
	e := NewEngine(s, 0, nil)

	overdue := e.ListOverdue(d(20, 1, 2024))
	if len(overdue) != 1 || overdue[0].BookTitle != UnknownRef {
		t.Fatalf("overdue: %+v", overdue)
	}

	res, err := e.Return(1, d(20, 1, 2024))
	if err != nil {
		t.Fatalf("return must complete despite the missing book: %v", err)
	}
	if res.Warning == nil || res.Warning.BookID != 5 {
		t.Fatalf("expected integrity warning, got %+v", res.Warning)
	}
	if l, _ := s.FindLoanByID(1); l.Status != LoanReturned {
		t.Fatalf("loan not returned: %+v", l)
	}
}

func TestRenew(t *testing.T) {
	e, s := newEngine(t, Limits{})
	bookID := mustBook(t, s, "Book", 1)
	m := mustMember(t, s, "Member")
	loan, _ := e.Borrow(m, bookID, d(20, 1, 2024))

	// today does not affect the new due date
	if _, err := e.Renew(loan.ID, d(1, 1, 2024)); err != nil {
		t.Fatalf("renew: %v", err)
	}
	renewed, err := e.Renew(loan.ID, d(30, 6, 2024))
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if want := d(27, 1, 2024).AddDays(14); renewed.DueDate != want {
		t.Fatalf("due after two renewals: got %s want %s", renewed.DueDate, want)
	}
	if renewed.DueDate != d(10, 2, 2024) {
		t.Fatalf("due after two renewals: got %s", renewed.DueDate)
	}

	e.Return(loan.ID, d(1, 2, 2024))
	if _, err := e.Renew(loan.ID, d(1, 2, 2024)); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("renew returned loan: want ErrLoanNotFound, got %v", err)
	}
}

func TestListsAndGraceDays(t *testing.T) {
	s := NewStore(Limits{})
	e := NewEngine(s, 14, nil)
	if e.GraceDays() != 14 {
		t.Fatalf("grace days: %d", e.GraceDays())
	}
	bookID := mustBook(t, s, "Book", 2)
	m1 := mustMember(t, s, "One")
	m2 := mustMember(t, s, "Two")

	l1, _ := e.Borrow(m1, bookID, d(1, 1, 2024))
	if l1.DueDate != d(15, 1, 2024) {
		t.Fatalf("due with 14 day grace: %s", l1.DueDate)
	}
	e.Borrow(m2, bookID, d(2, 1, 2024))
	e.Return(l1.ID, d(3, 1, 2024))

	if got := e.ListActiveLoans(); len(got) != 1 || got[0].MemberID != m2 {
		t.Fatalf("active loans: %+v", got)
	}
	if got := e.LoansForMember(m1); len(got) != 1 || got[0].Status != LoanReturned {
		t.Fatalf("member loans: %+v", got)
	}
	if got := e.ListOverdue(d(16, 1, 2024)); len(got) != 0 {
		t.Fatalf("loan due today is not overdue: %+v", got)
	}
	if got := e.ListOverdue(d(17, 1, 2024)); len(got) != 1 || got[0].MemberName != "Two" {
		t.Fatalf("overdue: %+v", got)
	}
	if got := NewEngine(s, 0, nil).GraceDays(); got != DefaultGraceDays {
		t.Fatalf("default grace days: %d", got)
	}
}
