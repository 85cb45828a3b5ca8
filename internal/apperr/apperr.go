// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for retry and HTTP mapping decisions.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindTransient
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

var (
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrSplitNotFound     = errors.New("split record not found")
	ErrWalletMissing     = errors.New("affiliate wallet not configured")
)

type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if e.Field != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(field %s)", e.Field)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

func Validation(op, field, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Message: message}
}

func ValidationWrap(op, field string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: err}
}

func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: "temporary failure", Err: err}
}

func Consistency(op, message string) *Error {
	return &Error{Kind: KindConsistency, Op: op, Message: message}
}

func ConsistencyWrap(op, message string, err error) *Error {
	return &Error{Kind: KindConsistency, Op: op, Message: message, Err: err}
}

// AffiliateNotFound builds the validation error returned for unknown or deleted affiliates.
func AffiliateNotFound(op, id string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: "affiliate_id", Message: id, Err: ErrAffiliateNotFound}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsValidation(err error) bool  { return kindOf(err) == KindValidation }
func IsTransient(err error) bool   { return kindOf(err) == KindTransient }
func IsConsistency(err error) bool { return kindOf(err) == KindConsistency }

// PartialFailure records a side effect that failed after its primary state
// transition was already committed.
type PartialFailure struct {
	Step string
	Err  error
}

func (p PartialFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", p.Step, p.Err)
}

func (p PartialFailure) Unwrap() error { return p.Err }
