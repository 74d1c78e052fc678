package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Callers check them with errors.Is.
var (
	ErrValidation = errors.New("quizdeck: invalid request")
	ErrNotFound   = errors.New("quizdeck: deck not found")
	ErrState      = errors.New("quizdeck: level not unlocked")
	ErrInternal   = errors.New("quizdeck: internal error")
	ErrEmptyDeck  = errors.New("quizdeck: deck has no cards")
)

// ParseError reports stored deck content that does not have the expected
// header or column layout.
type ParseError struct {
	Identifier string
	Line       int
	Reason     string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse deck %s line %d: %s", e.Identifier, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse deck %s: %s", e.Identifier, e.Reason)
}

// Validationf wraps ErrValidation with a message that is safe to show
// to the caller.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
