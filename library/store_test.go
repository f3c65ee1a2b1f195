package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookFields(title string) BookFields {
	return BookFields{Title: title, Author: "Author", Publisher: "Pub", Year: 2001, TotalCopies: 1}
}

func memberFields(name string) MemberFields {
	return MemberFields{Name: name, Course: "CS", Phone: "555-0100", Registered: d(1, 1, 2024)}
}

func TestCreateBookAssignsIncreasingIDs(t *testing.T) {
	s := NewStore(Limits{})
	for want := int64(1); want <= 3; want++ {
		id, err := s.CreateBook(bookFields("Book"))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	b, err := s.FindBookByID(2)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Available())
	assert.Zero(t, b.TimesBorrowed)
}

func TestCreateBookValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*BookFields)
		field string
	}{
		{"empty title", func(f *BookFields) { f.Title = "  " }, "title"},
		{"long title", func(f *BookFields) { f.Title = strings.Repeat("x", maxTitleLen+1) }, "title"},
		{"separator in author", func(f *BookFields) { f.Author = "a;b" }, "author"},
		{"newline in publisher", func(f *BookFields) { f.Publisher = "a\nb" }, "publisher"},
		{"year too old", func(f *BookFields) { f.Year = 1499 }, "year"},
		{"zero copies", func(f *BookFields) { f.TotalCopies = 0 }, "total_copies"},
		{"negative copies", func(f *BookFields) { f.TotalCopies = -2 }, "total_copies"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(Limits{})
			f := bookFields("Valid")
			tc.edit(&f)
			_, err := s.CreateBook(f)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Empty(t, s.Books())

			// a rejected registration does not consume an id
			id, err := s.CreateBook(bookFields("Next"))
			require.NoError(t, err)
			assert.Equal(t, int64(1), id)
		})
	}
}

func TestCreateMemberValidation(t *testing.T) {
	s := NewStore(Limits{})

	f := memberFields("Ana")
	f.Registered = d(30, 2, 2024)
	_, err := s.CreateMember(f)
	assert.True(t, IsValidation(err))

	f = memberFields("")
	_, err = s.CreateMember(f)
	assert.True(t, IsValidation(err))

	f = memberFields("Ana")
	f.Phone = strings.Repeat("9", maxPhoneLen+1)
	_, err = s.CreateMember(f)
	assert.True(t, IsValidation(err))

	id, err := s.CreateMember(memberFields("Ana"))
	require.NoError(t, err)
	m, err := s.FindMemberByID(id)
	require.NoError(t, err)
	assert.Equal(t, d(1, 1, 2024), m.Registered)
}

func TestCapacity(t *testing.T) {
	s := NewStore(Limits{MaxBooks: 2, MaxMembers: 1})
	_, err := s.CreateBook(bookFields("A"))
	require.NoError(t, err)
	_, err = s.CreateBook(bookFields("B"))
	require.NoError(t, err)
	_, err = s.CreateBook(bookFields("C"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Len(t, s.Books(), 2)

	_, err = s.CreateMember(memberFields("M"))
	require.NoError(t, err)
	_, err = s.CreateMember(memberFields("N"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestFindNotFound(t *testing.T) {
	s := NewStore(Limits{})
	_, err := s.FindBookByID(1)
	assert.ErrorIs(t, err, ErrBookNotFound)
	_, err = s.FindMemberByID(1)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	_, err = s.FindLoanByID(1)
	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSearch(t *testing.T) {
	s := NewStore(Limits{})
	for _, f := range []BookFields{
		{Title: "The Hobbit", Author: "Tolkien", Publisher: "A&U", Year: 1937, TotalCopies: 1},
		{Title: "Dune", Author: "Herbert", Publisher: "Chilton", Year: 1965, TotalCopies: 2},
		{Title: "The Silmarillion", Author: "Tolkien", Publisher: "A&U", Year: 1977, TotalCopies: 1},
	} {
		_, err := s.CreateBook(f)
		require.NoError(t, err)
	}

	titles := func(books []Book) []string {
		var out []string
		for _, b := range books {
			out = append(out, b.Title)
		}
		return out
	}
	assert.Equal(t, []string{"The Hobbit", "The Silmarillion"}, titles(s.SearchBooksByTitle("The")))
	assert.Equal(t, []string{"The Hobbit", "The Silmarillion"}, titles(s.SearchBooksByAuthor("Tolk")))
	assert.Len(t, s.SearchBooksByTitle(""), 3)

	// case-sensitive
	none := s.SearchBooksByTitle("the hobbit")
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err := s.CreateMember(memberFields("Maria Silva"))
	require.NoError(t, err)
	assert.Len(t, s.SearchMembersByName("Silva"), 1)
	assert.Empty(t, s.SearchMembersByName("silva"))
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := NewStore(Limits{})
	id, err := s.CreateBook(bookFields("Before"))
	require.NoError(t, err)

	books := s.Books()
	books[0].Title = "Changed"
	b, err := s.FindBookByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Before", b.Title)
}

func TestRestoreStore(t *testing.T) {
	snap := Snapshot{
		Books: []Book{
			{ID: 4, Title: "A", TotalCopies: 1},
			{ID: 2, Title: "B", TotalCopies: 1},
			{ID: 4, Title: "dup", TotalCopies: 1},
		},
		Members:    []Member{{ID: 1, Name: "M", Registered: d(1, 1, 2024)}},
		NextBookID: 3,
		NextLoanID: 9,
	}
	s := RestoreStore(Limits{}, snap, nil)

	books := s.Books()
	require.Len(t, books, 2)
	assert.Equal(t, int64(4), books[0].ID)
	assert.Equal(t, int64(2), books[1].ID)

	// header below max id: max id wins
	id, err := s.CreateBook(bookFields("C"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	mid, err := s.CreateMember(memberFields("N"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), mid)

	assert.Equal(t, int64(9), s.Snapshot().NextLoanID)
}

func TestRestoreStoreTruncatesAtCapacity(t *testing.T) {
	snap := Snapshot{Books: []Book{
		{ID: 1, Title: "A", TotalCopies: 1},
		{ID: 2, Title: "B", TotalCopies: 1},
		{ID: 3, Title: "C", TotalCopies: 1},
	}}
	s := RestoreStore(Limits{MaxBooks: 2}, snap, nil)
	assert.Len(t, s.Books(), 2)
	_, err := s.FindBookByID(3)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCheckIntegrity(t *testing.T) {
	snap := Snapshot{
		Books:   []Book{{ID: 1, Title: "A", TotalCopies: 2, LoanedCopies: 2}},
		Members: []Member{{ID: 1, Name: "M", Registered: d(1, 1, 2024)}},
		Loans: []Loan{
			{ID: 1, MemberID: 1, BookID: 1, LoanDate: d(1, 1, 2024), DueDate: d(8, 1, 2024), Status: LoanActive},
			{ID: 2, MemberID: 7, BookID: 9, LoanDate: d(1, 1, 2024), DueDate: d(8, 1, 2024), Status: LoanActive},
		},
	}
	issues := RestoreStore(Limits{}, snap, nil).CheckIntegrity()
	require.Len(t, issues, 3)
	assert.Equal(t, "loan 2: references a missing book", issues[0].String())
	assert.Equal(t, "loan 2: references a missing member", issues[1].String())
	assert.Equal(t, int64(1), issues[2].BookID)
	assert.Equal(t, "book 1: loaned count does not match active loans", issues[2].String())
}
