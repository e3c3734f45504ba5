// Package errkind implements the error kinds from component design §7
// (ParseError, ScopeError, ValidationError, NotMonitored, PlatformError,
// Anomaly, Divergence) as a single Fault type, adapted from the
// teacher's infrastructure/database sentinel-error-plus-wrapper pattern.
package errkind

import (
	"errors"
	"fmt"
)

// Kind tags a Fault with one of the error kinds from §7.
type Kind string

const (
	KindParseError      Kind = "ParseError"
	KindScopeError      Kind = "ScopeError"
	KindValidationError Kind = "ValidationError"
	KindNotMonitored    Kind = "NotMonitored"
	KindPlatformError   Kind = "PlatformError"
	KindAnomaly         Kind = "Anomaly"
	KindDivergence      Kind = "Divergence"
)

// Fault is the error type every command-surface operation returns,
// matching the response envelope {status:"error", kind, message, extra}.
type Fault struct {
	Kind    Kind
	Message string
	Extra   map[string]any
	cause   error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.cause }

// New builds a Fault of the given kind.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Wrap builds a Fault of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Fault {
	return &Fault{Kind: kind, Message: message, cause: cause}
}

// WithExtra attaches structured detail (e.g. anomaly lists, failed-clause
// counts) to the fault's `extra` envelope field.
func (f *Fault) WithExtra(extra map[string]any) *Fault {
	f.Extra = extra
	return f
}

// Is supports errors.Is(err, errkind.NotMonitored) style checks against
// kind sentinels below.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return f.Kind == t.Kind
}

// Sentinel faults usable with errors.Is for kind-only matching.
var (
	NotMonitored    = &Fault{Kind: KindNotMonitored}
	ValidationError = &Fault{Kind: KindValidationError}
	PlatformError   = &Fault{Kind: KindPlatformError}
	Divergence      = &Fault{Kind: KindDivergence}
)

// KindOf extracts the Kind from err, defaulting to "" when err is not a
// *Fault (or wraps one).
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
