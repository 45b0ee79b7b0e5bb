package billing

import (
	"errors"
	"fmt"
	"strings"
)

// Domain error taxonomy. Handlers map these onto HTTP statuses:
// ErrNotFound -> 404, ErrPrecondition -> 409, ErrOverBilled -> 400.
var (
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrOverBilled   = errors.New("task billed beyond contracted amount")
)

// NotFound and Precondition wrap the sentinel errors with context; they are
// shared with the services that sit on top of the ledger.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func Precondition(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrPrecondition)
}

func notFound(what string) error    { return NotFound(what) }
func precondition(msg string) error { return Precondition(msg) }

// isUniqueViolation matches the duplicate-key errors sqlite and postgres
// report when an invoice number collides under concurrency.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "duplicate key")
}
