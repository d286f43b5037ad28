// Package apperr carries the error kinds surfaced to callers of the bookstore.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	InsufficientStock
	EmptyCart
	Unauthorized
	Forbidden
	Invalid
	Conflict
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InsufficientStock:
		return "insufficient_stock"
	case EmptyCart:
		return "empty_cart"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Invalid:
		return "invalid"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNotFound          = &Error{Kind: NotFound, Msg: "not found"}
	ErrInsufficientStock = &Error{Kind: InsufficientStock, Msg: "insufficient stock"}
	ErrEmptyCart         = &Error{Kind: EmptyCart, Msg: "cart is empty"}
	ErrUnauthorized      = &Error{Kind: Unauthorized, Msg: "unauthorized"}
	ErrForbidden         = &Error{Kind: Forbidden, Msg: "forbidden"}
	ErrInvalid           = &Error{Kind: Invalid, Msg: "invalid argument"}
	ErrConflict          = &Error{Kind: Conflict, Msg: "conflict"}
	ErrUnavailable       = &Error{Kind: Unavailable, Msg: "unavailable"}
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports Internal for errors that carry no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message is the caller-facing text; internal failures stay opaque.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	return "internal error"
}
