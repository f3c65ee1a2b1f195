package library

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Field limits for registered text.
const (
	maxTitleLen     = 100
	maxAuthorLen    = 80
	maxPublisherLen = 60
	maxNameLen      = 100
	maxCourseLen    = 50
	maxPhoneLen     = 15

	minPublicationYear = 1500
	maxPublicationYear = 2050
)

// Limits caps each collection. Zero means unlimited.
type Limits struct {
	MaxBooks   int
	MaxMembers int
	MaxLoans   int
}

func (l Limits) full(max, n int) bool { return max > 0 && n >= max }

// Store holds books, members and loans in registration order with one
// monotonically increasing id allocator per collection. It is not safe for
// concurrent use.
type Store struct {
	limits Limits

	books   []Book
	members []Member
	loans   []Loan

	bookIdx   map[int64]int
	memberIdx map[int64]int
	loanIdx   map[int64]int

	nextBookID   int64
	nextMemberID int64
	nextLoanID   int64
}

// NewStore returns an empty store whose allocators start at 1.
func NewStore(limits Limits) *Store {
	return &Store{
		limits:       limits,
		bookIdx:      make(map[int64]int),
		memberIdx:    make(map[int64]int),
		loanIdx:      make(map[int64]int),
		nextBookID:   1,
		nextMemberID: 1,
		nextLoanID:   1,
	}
}

// ------------------ Registration ------------------

// CreateBook validates f, allocates the next book id and appends the book.
func (s *Store) CreateBook(f BookFields) (int64, error) {
	if err := validateBook(f); err != nil {
		return 0, err
	}
	if s.limits.full(s.limits.MaxBooks, len(s.books)) {
		return 0, ErrCapacityExceeded
	}
	id := s.nextBookID
	s.nextBookID++
	s.bookIdx[id] = len(s.books)
	s.books = append(s.books, Book{
		ID:          id,
		Title:       f.Title,
		Author:      f.Author,
		Publisher:   f.Publisher,
		Year:        f.Year,
		TotalCopies: f.TotalCopies,
	})
	return id, nil
}

// CreateMember validates f, allocates the next member id and appends the member.
// The registration date is always supplied by the caller.
func (s *Store) CreateMember(f MemberFields) (int64, error) {
	if err := validateMember(f); err != nil {
		return 0, err
	}
	if s.limits.full(s.limits.MaxMembers, len(s.members)) {
		return 0, ErrCapacityExceeded
	}
	id := s.nextMemberID
	s.nextMemberID++
	s.memberIdx[id] = len(s.members)
	s.members = append(s.members, Member{
		ID:         id,
		Name:       f.Name,
		Course:     f.Course,
		Phone:      f.Phone,
		Registered: f.Registered,
	})
	return id, nil
}

func validateBook(f BookFields) error {
	if strings.TrimSpace(f.Title) == "" {
		return invalid("title", "must be provided")
	}
	if err := checkText("title", f.Title, maxTitleLen); err != nil {
		return err
	}
	if err := checkText("author", f.Author, maxAuthorLen); err != nil {
		return err
	}
	if err := checkText("publisher", f.Publisher, maxPublisherLen); err != nil {
		return err
	}
	if f.Year < minPublicationYear || f.Year > maxPublicationYear {
		return invalid("year", "must be between %d and %d", minPublicationYear, maxPublicationYear)
	}
	if f.TotalCopies < 1 {
		return invalid("total_copies", "must be at least 1")
	}
	return nil
}

func validateMember(f MemberFields) error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("name", "must be provided")
	}
	if err := checkText("name", f.Name, maxNameLen); err != nil {
		return err
	}
	if err := checkText("course", f.Course, maxCourseLen); err != nil {
		return err
	}
	if err := checkText("phone", f.Phone, maxPhoneLen); err != nil {
		return err
	}
	if !f.Registered.Valid() {
		return invalid("registered", "%v is not a valid date", f.Registered)
	}
	return nil
}

// checkText enforces the length cap and keeps the record delimiter and line
// breaks out of free text so records survive the line format.
func checkText(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return invalid(field, "must not be more than %d characters", max)
	}
	if strings.ContainsAny(v, fieldSep+"\r\n") {
		return invalid(field, "must not contain %q or line breaks", fieldSep)
	}
	return nil
}

// ------------------ Lookup ------------------

// FindBookByID returns a copy of the book with id, or ErrBookNotFound.
func (s *Store) FindBookByID(id int64) (Book, error) {
	i, ok := s.bookIdx[id]
	if !ok {
		return Book{}, ErrBookNotFound
	}
	return s.books[i], nil
}

// FindMemberByID returns a copy of the member with id, or ErrMemberNotFound.
func (s *Store) FindMemberByID(id int64) (Member, error) {
	i, ok := s.memberIdx[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return s.members[i], nil
}

// FindLoanByID returns a copy of the loan with id in any status, or ErrLoanNotFound.
func (s *Store) FindLoanByID(id int64) (Loan, error) {
	i, ok := s.loanIdx[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return s.loans[i], nil
}

// Books returns every book in registration order.
func (s *Store) Books() []Book { return append([]Book(nil), s.books...) }

// Members returns every member in registration order.
func (s *Store) Members() []Member { return append([]Member(nil), s.members...) }

// Loans returns every loan, active or returned, in creation order.
func (s *Store) Loans() []Loan { return append([]Loan(nil), s.loans...) }

// ------------------ Search ------------------

// SearchBooksByTitle returns books whose title contains q (case-sensitive).
// An empty q matches every book.
func (s *Store) SearchBooksByTitle(q string) []Book {
	return s.filterBooks(func(b Book) bool { return strings.Contains(b.Title, q) })
}

// SearchBooksByAuthor returns books whose author contains q (case-sensitive).
func (s *Store) SearchBooksByAuthor(q string) []Book {
	return s.filterBooks(func(b Book) bool { return strings.Contains(b.Author, q) })
}

// SearchMembersByName returns members whose name contains q (case-sensitive).
func (s *Store) SearchMembersByName(q string) []Member {
	out := []Member{}
	for _, m := range s.members {
		if strings.Contains(m.Name, q) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) filterBooks(keep func(Book) bool) []Book {
	out := []Book{}
	for _, b := range s.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// ------------------ Snapshot ------------------

// Snapshot copies the store's state for persistence.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Books:        s.Books(),
		Members:      s.Members(),
		Loans:        s.Loans(),
		NextBookID:   s.nextBookID,
		NextMemberID: s.nextMemberID,
		NextLoanID:   s.nextLoanID,
	}
}

// RestoreStore rebuilds a store from a loaded snapshot. Records with a
// duplicate id or beyond the configured limits are dropped and logged.
// Allocators never move below max(id)+1, counting ids referenced by loans.
func RestoreStore(limits Limits, snap Snapshot, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := NewStore(limits)

	for _, b := range snap.Books {
		if _, dup := s.bookIdx[b.ID]; dup {
			logger.Warn("dropping duplicate book", "book_id", b.ID)
			continue
		}
		if limits.full(limits.MaxBooks, len(s.books)) {
			logger.Warn("book capacity reached while loading, dropping record", "book_id", b.ID)
			continue
		}
		s.bookIdx[b.ID] = len(s.books)
		s.books = append(s.books, b)
		s.nextBookID = max(s.nextBookID, b.ID+1)
	}
	for _, m := range snap.Members {
		if _, dup := s.memberIdx[m.ID]; dup {
			logger.Warn("dropping duplicate member", "member_id", m.ID)
			continue
		}
		if limits.full(limits.MaxMembers, len(s.members)) {
			logger.Warn("member capacity reached while loading, dropping record", "member_id", m.ID)
			continue
		}
		s.memberIdx[m.ID] = len(s.members)
		s.members = append(s.members, m)
		s.nextMemberID = max(s.nextMemberID, m.ID+1)
	}
	for _, l := range snap.Loans {
		if _, dup := s.loanIdx[l.ID]; dup {
			logger.Warn("dropping duplicate loan", "loan_id", l.ID)
			continue
		}
		if limits.full(limits.MaxLoans, len(s.loans)) {
			logger.Warn("loan capacity reached while loading, dropping record", "loan_id", l.ID)
			continue
		}
		s.loanIdx[l.ID] = len(s.loans)
		s.loans = append(s.loans, l)
		s.nextLoanID = max(s.nextLoanID, l.ID+1)
		// never hand out an id an orphaned loan still points at
		s.nextBookID = max(s.nextBookID, l.BookID+1)
		s.nextMemberID = max(s.nextMemberID, l.MemberID+1)
	}

	s.nextBookID = max(s.nextBookID, snap.NextBookID)
	s.nextMemberID = max(s.nextMemberID, snap.NextMemberID)
	s.nextLoanID = max(s.nextLoanID, snap.NextLoanID)
	return s
}

// CheckIntegrity lists loans whose book or member is missing and books whose
// loaned count disagrees with their number of active loans. Such states can
// appear when a save is interrupted between the three files.
func (s *Store) CheckIntegrity() []IntegrityIssue {
	var issues []IntegrityIssue
	active := make(map[int64]int)
	for _, l := range s.loans {
		if _, ok := s.bookIdx[l.BookID]; !ok {
			issues = append(issues, IntegrityIssue{LoanID: l.ID, BookID: l.BookID, Message: "references a missing book"})
		}
		if _, ok := s.memberIdx[l.MemberID]; !ok {
			issues = append(issues, IntegrityIssue{LoanID: l.ID, Message: "references a missing member"})
		}
		if l.Active() {
			active[l.BookID]++
		}
	}
	for _, b := range s.books {
		if b.LoanedCopies != active[b.ID] {
			issues = append(issues, IntegrityIssue{
				BookID:  b.ID,
				Message: "loaned count does not match active loans",
			})
		}
	}
	return issues
}
