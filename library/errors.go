package library

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the catalog.
var (
	// Lookup failures. The operation aborts without mutating anything.
	ErrBookNotFound   = errors.New("library: book not found")
	ErrMemberNotFound = errors.New("library: member not found")
	ErrLoanNotFound   = errors.New("library: active loan not found")

	// Validation failures.
	ErrValidation   = errors.New("library: validation failed")
	ErrInvalidDate  = errors.New("library: invalid date")
	ErrInvalidMonth = errors.New("library: invalid month")

	ErrCapacityExceeded  = errors.New("library: collection is full")
	ErrNoCopiesAvailable = errors.New("library: no copies available")

	// ErrPersistence wraps every failure to read or write a backing file.
	ErrPersistence = errors.New("library: persistence failure")
)

// ValidationError names the offending field of a rejected registration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("library: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is any of the lookup failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsValidation reports whether err was caused by rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidMonth)
}

// IntegrityIssue describes a cross-record inconsistency. Operations that meet
// one complete anyway and report it next to their result.
type IntegrityIssue struct {
	LoanID  int64  `json:"loan_id,omitempty"`
	BookID  int64  `json:"book_id,omitempty"`
	Message string `json:"message"`
}

func (i IntegrityIssue) String() string {
	switch {
	case i.LoanID != 0:
		return fmt.Sprintf("loan %d: %s", i.LoanID, i.Message)
	case i.BookID != 0:
		return fmt.Sprintf("book %d: %s", i.BookID, i.Message)
	}
	return i.Message
}
