package marketdata

import (
	"errors"
	"fmt"
)

var (
	// ErrTickerNotFound means the upstream has no such symbol.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrUpstream is a transient upstream failure worth retrying.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrBadResponse means the upstream answered with something unusable.
	ErrBadResponse = errors.New("bad upstream response")
)

// SourceError describes a failed price source call.
type SourceError struct {
	Source     string
	Ticker     string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Source, e.Ticker, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Ticker, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NotFound reports whether the symbol is unknown upstream.
func (e *SourceError) NotFound() bool { return errors.Is(e.Err, ErrTickerNotFound) }

// Temporary reports whether the call may succeed if retried.
func (e *SourceError) Temporary() bool { return errors.Is(e.Err, ErrUpstream) }

func sourceError(source, ticker string, status int, kind error, detail string) *SourceError {
	err := kind
	if detail != "" {
		err = fmt.Errorf("%w: %s", kind, detail)
	}
	return &SourceError{Source: source, Ticker: ticker, StatusCode: status, Err: err}
}

func preview(body []byte) string {
	const max = 120
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
