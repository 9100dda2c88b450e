// Copyright © 2023 The argweaver Authors.
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package argerr defines the error kinds used across the argweaver core
// and its file-format collaborators.
package argerr

import "fmt"

// Kind identifies the broad category of an [Error].
type Kind int

// Valid error kinds.
const (
	// ConfigError indicates a malformed or inconsistent model
	// configuration: a mismatched popsize vector length, a non-monotone
	// time grid, or a rate map with overlapping intervals.
	ConfigError Kind = iota

	// FormatError indicates a malformed sites, SMC, or rate-map line.
	FormatError

	// InvariantViolation indicates a broken tree or SPR chain. These are
	// bugs, not recoverable conditions.
	InvariantViolation

	// NumericFailure indicates every forward log-probability column
	// collapsed to -Inf, i.e. the data is incompatible with the model
	// under the infinite-sites penalty.
	NumericFailure

	// IoError is used by collaborators to tag transient I/O failures;
	// the core never produces it directly.
	IoError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case FormatError:
		return "format error"
	case InvariantViolation:
		return "invariant violation"
	case NumericFailure:
		return "numeric failure"
	case IoError:
		return "io error"
	default:
		return "unknown error"
	}
}

// Error is a kind-tagged error. Callers that need to branch on the kind
// of failure (e.g. a numeric failure during resampling is recoverable, an
// invariant violation is not) should use [errors.As] against *Error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error of the given kind.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(k Kind, msg string, err error) error {
	return &Error{Kind: k, Msg: msg, Err: err}
}
