package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
	ErrTemporary    = errors.New("temporary failure")

	// ErrSlugTaken is returned by the submission store when a generated slug collides.
	ErrSlugTaken = errors.New("slug already taken")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PublicError is an error whose message is safe to return to API callers.
type PublicError struct {
	Kind    error
	Message string
}

func (e *PublicError) Error() string {
	return e.Message
}

func (e *PublicError) Unwrap() error {
	return e.Kind
}

// Fail builds a PublicError of the given kind.
func Fail(kind error, message string) error {
	return &PublicError{Kind: kind, Message: message}
}

// Failf is Fail with formatting.
func Failf(kind error, format string, args ...any) error {
	return &PublicError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PublicMessage returns the caller-facing message carried by err, if any.
func PublicMessage(err error) (string, bool) {
	var pub *PublicError
	if errors.As(err, &pub) {
		return pub.Message, true
	}
	return "", false
}
