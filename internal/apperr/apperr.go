// Package apperr defines the error kinds surfaced by the trading core.
//
// Every error a service returns to its caller is either an *Error with one of
// the kinds below or an infrastructure failure, which KindOf reports as
// KindInternal.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an Error.
type Kind int

const (
	// KindInternal is anything not produced by the domain rules.
	KindInternal Kind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
	// KindConflict marks a violated uniqueness invariant or a lost concurrent race.
	KindConflict
	// KindState marks an operation that is invalid for the entity's lifecycle state.
	KindState
	// KindCapacity marks a requested quantity above the available stock.
	KindCapacity
	// KindInsufficientFunds marks a withdrawal that would drive a balance negative.
	KindInsufficientFunds
	// KindAuthorization marks a caller that does not own the resource.
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindCapacity:
		return "capacity"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindAuthorization:
		return "authorization"
	default:
		return "internal"
	}
}

// Error carries enough context to render a user-facing message.
type Error struct {
	Kind    Kind
	Entity  string
	ID      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: fmt.Sprint(id), Message: "not found"}
}

func Conflict(entity string, id any, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: idString(id), Message: fmt.Sprintf(format, args...)}
}

func State(entity string, id any, format string, args ...any) *Error {
	return &Error{Kind: KindState, Entity: entity, ID: idString(id), Message: fmt.Sprintf(format, args...)}
}

// Capacity reports a request for more units of a product than are in stock.
func Capacity(productID int64, requested, available int) *Error {
	return &Error{
		Kind:    KindCapacity,
		Entity:  "product",
		ID:      fmt.Sprint(productID),
		Field:   "quantity",
		Message: fmt.Sprintf("requested %d exceeds available %d", requested, available),
	}
}

func InsufficientFunds(hospitalID int64, balance, amount fmt.Stringer) *Error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Entity:  "hospital",
		ID:      fmt.Sprint(hospitalID),
		Field:   "amount",
		Message: fmt.Sprintf("withdrawal of %s exceeds balance %s", amount, balance),
	}
}

func Unauthorized(entity string, id any, format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Entity: entity, ID: idString(id), Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func idString(id any) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id)
}
