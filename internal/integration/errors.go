// Package integration handles external service interactions
package integration

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindTransport covers network and HTTP-level failures, including timeouts.
	KindTransport ErrorKind = "TRANSPORT"
	// KindEmpty means a well-formed response carried zero usable records.
	KindEmpty ErrorKind = "EMPTY"
	// KindParse means the body was present but fields were unrecognized.
	KindParse ErrorKind = "PARSE"
)

// FetchError is the typed failure raised by every fetch stage. Stages never
// retry; recovery belongs to the orchestrated fetch alone.
type FetchError struct {
	Kind   ErrorKind
	Source string // which stage raised it: "primary", "fallback", "bulletin"
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Source, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError for the named stage.
func NewFetchError(source string, kind ErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Source: source, Err: err}
}

// AggregateError is surfaced when every stage of the orchestrated fetch has
// failed. It keeps each stage's cause so operators can tell which upstream
// is the broken link.
type AggregateError struct {
	Causes []error
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, c.Error())
	}
	return "all sources failed: " + strings.Join(parts, "; ")
}

func (e *AggregateError) Unwrap() []error { return e.Causes }
