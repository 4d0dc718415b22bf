// Package service implements the booking domain: the event catalog, seat
// inventory, booking engine, waitlist promoter, analytics and accounts.
//
// Services take an explicit session.Session for the caller and return
// *Error values whose Kind is one of the sentinels below, so transports can
// map them with errors.Is.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/evently/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrRateLimited  = errors.New("rate limited")
)

// Error is a domain failure with a client-facing detail message.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error     { return newErr(ErrNotFound, format, args...) }
func conflict(format string, args ...any) error     { return newErr(ErrConflict, format, args...) }
func invalid(format string, args ...any) error      { return newErr(ErrValidation, format, args...) }
func forbidden(format string, args ...any) error    { return newErr(ErrForbidden, format, args...) }
func unauthorized(format string, args ...any) error { return newErr(ErrUnauthorized, format, args...) }

// storeErr translates repository sentinels; what names the missing thing.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound("%s not found", what)
	case errors.Is(err, repository.ErrBusy):
		return conflict("%s is busy, please retry", what)
	case errors.Is(err, repository.ErrSeatTaken):
		return conflict("seat(s) no longer available")
	}
	return err
}

// Detail returns the client-facing message of a domain error.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return ""
}
