package library

import (
	"sort"
	"strings"
)

// DefaultTopN is how many titles the most-borrowed report shows by default.
const DefaultTopN = 10

// MostBorrowed returns up to topN books ordered by times borrowed, highest
// first. Ties keep registration order.
func MostBorrowed(s *Store, topN int) []Book {
	if topN <= 0 {
		return []Book{}
	}
	books := s.Books()
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].TimesBorrowed > books[j].TimesBorrowed
	})
	if topN > len(books) {
		topN = len(books)
	}
	return books[:topN]
}

// OverdueReport lists overdue loans as of today.
func OverdueReport(e *Engine, today Date) []OverdueEntry {
	return e.ListOverdue(today)
}

// AdvancedSearchBooks matches books whose title contains title and, when year
// is non-zero, whose publication year equals year.
func AdvancedSearchBooks(s *Store, title string, year int) []Book {
	return s.filterBooks(func(b Book) bool {
		return strings.Contains(b.Title, title) && (year == 0 || b.Year == year)
	})
}
