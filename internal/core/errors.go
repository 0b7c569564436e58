package core

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the data layer wraps exactly one
// of these so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
	ErrNetwork    = errors.New("network error")
)

var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidType     = fmt.Errorf("%w: type must be INCOME or EXPENSE", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid calendar date", ErrValidation)
	ErrDescriptionLong = fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	ErrEmptyName       = fmt.Errorf("%w: empty category name", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: default type must be INCOME, EXPENSE or BOTH", ErrValidation)
	ErrInvalidGroupBy  = fmt.Errorf("%w: group by must be category or day", ErrValidation)
)

// NotFound builds an ErrNotFound for the given entity kind and id.
func NotFound(kind string, id ID) error {
	return fmt.Errorf("%s %q: %w", kind, string(id), ErrNotFound)
}

// Kind returns a short label for the category of err, or "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "internal"
	}
}
