package dca

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a calculation failure.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindTickerNotFound       Kind = "ticker_not_found"
	KindPriceDataUnavailable Kind = "price_data_unavailable"
	KindUpstreamTimeout      Kind = "upstream_timeout"
	KindInternal             Kind = "internal_error"
	KindCanceled             Kind = "canceled"
)

// String returns the kind identifier
func (k Kind) String() string {
	return string(k)
}

// FieldError names one offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type returned by the simulation pipeline.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, dca.ErrTickerNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrTickerNotFound       = &Error{Kind: KindTickerNotFound}
	ErrPriceDataUnavailable = &Error{Kind: KindPriceDataUnavailable}
	ErrUpstreamTimeout      = &Error{Kind: KindUpstreamTimeout}
	ErrInternal             = &Error{Kind: KindInternal}
	ErrCanceled             = &Error{Kind: KindCanceled}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewInvalidInput builds an aggregate validation error from field errors.
func NewInvalidInput(fields []FieldError) *Error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return &Error{
		Kind:    KindInvalidInput,
		Message: strings.Join(msgs, "; "),
		Fields:  fields,
	}
}

// KindOf classifies any error. Context errors map to their calculation kinds,
// anything unrecognised is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindInternal
}

// fromContext converts a context failure into the matching pipeline error.
func fromContext(ctx context.Context, cause error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded) {
		return newError(KindUpstreamTimeout, cause, "price source did not respond within the calculation time budget")
	}
	return newError(KindCanceled, cause, "calculation canceled")
}
