// Package xerrors is a drop-in-style replacement for parts of the stdlib
// errors package, grounded on xray-core's common/errors: a chainable *Error
// built with New(...), .Base(err) to wrap an inner cause, and severity
// markers consumed by internal/logging. Every protocol adapter in this
// module returns a *Error tagged with one of the Kind values from spec.md §7.
package xerrors

import (
	"fmt"
	"runtime"
	"strings"
)

// Severity mirrors the log levels the teacher's common/log package defines.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// Kind is one of the §7 error kinds every protocol handler emits exactly one
// of.
type Kind int

const (
	KindUnspecified Kind = iota
	KindNeedMore
	KindInvalidFraming
	KindAuthenticationFailed
	KindUnsupportedAddressType
	KindUnsupportedAlgorithm
	KindUnsupportedCommand
	KindUpstreamRejected
	KindTimeout
	KindResourceExhausted
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNeedMore:
		return "NeedMore"
	case KindInvalidFraming:
		return "InvalidFraming"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindUnsupportedAddressType:
		return "UnsupportedAddressType"
	case KindUnsupportedAlgorithm:
		return "UnsupportedAlgorithm"
	case KindUnsupportedCommand:
		return "UnsupportedCommand"
	case KindUpstreamRejected:
		return "UpstreamRejected"
	case KindTimeout:
		return "Timeout"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unspecified"
	}
}

type hasInnerError interface {
	Unwrap() error
}

type hasSeverity interface {
	Severity() Severity
}

// Error is an error object with an underlying (wrapped) error, a caller
// name, a severity and an optional protocol-meaningful Kind.
type Error struct {
	message  []interface{}
	caller   string
	inner    error
	severity Severity
	kind     Kind
	code     int
}

const trim = len("github.com/netbot-proxy/netbot/")

// New returns a new error object with a message built from the given
// arguments, recording the immediate caller for diagnostics.
func New(msg ...interface{}) *Error {
	pc, _, _, _ := runtime.Caller(1)
	details := runtime.FuncForPC(pc).Name()
	if len(details) >= trim {
		details = details[trim:]
	}
	if i := strings.Index(details, "."); i > 0 {
		details = details[:i]
	}
	return &Error{
		message:  msg,
		severity: SeverityInfo,
		caller:   details,
	}
}

// Error implements error.
func (err *Error) Error() string {
	var b strings.Builder
	if err.kind != KindUnspecified {
		b.WriteByte('[')
		b.WriteString(err.kind.String())
		b.WriteString("] ")
	}
	if len(err.caller) > 0 {
		b.WriteString(err.caller)
		b.WriteString(": ")
	}
	b.WriteString(concat(err.message...))
	if err.inner != nil {
		b.WriteString(" > ")
		b.WriteString(err.inner.Error())
	}
	return b.String()
}

// Unwrap implements hasInnerError, enabling errors.Is/errors.As.
func (err *Error) Unwrap() error {
	return err.inner
}

// Base sets the wrapped cause and returns err for chaining.
func (err *Error) Base(e error) *Error {
	err.inner = e
	return err
}

// WithKind tags err with one of the §7 error kinds.
func (err *Error) WithKind(k Kind) *Error {
	err.kind = k
	return err
}

// Kind returns the tagged §7 error kind, or KindUnspecified.
func (err *Error) Kind() Kind {
	return err.kind
}

// WithCode attaches a protocol status code, for KindUpstreamRejected(code).
func (err *Error) WithCode(code int) *Error {
	err.code = code
	return err
}

// Code returns the protocol status code attached via WithCode.
func (err *Error) Code() int {
	return err.code
}

func (err *Error) atSeverity(s Severity) *Error {
	err.severity = s
	return err
}

// AtDebug sets the severity to debug.
func (err *Error) AtDebug() *Error { return err.atSeverity(SeverityDebug) }

// AtInfo sets the severity to info.
func (err *Error) AtInfo() *Error { return err.atSeverity(SeverityInfo) }

// AtWarning sets the severity to warning.
func (err *Error) AtWarning() *Error { return err.atSeverity(SeverityWarning) }

// AtError sets the severity to error.
func (err *Error) AtError() *Error { return err.atSeverity(SeverityError) }

// Severity returns the effective severity, taking the inner error's
// severity into account when it is more severe.
func (err *Error) Severity() Severity {
	if err.inner == nil {
		return err.severity
	}
	if s, ok := err.inner.(hasSeverity); ok {
		if inner := s.Severity(); inner > err.severity {
			return inner
		}
	}
	return err.severity
}

// Cause returns the root cause of err by unwrapping to the end of the chain.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	for {
		inner, ok := err.(hasInnerError)
		if !ok {
			break
		}
		next := inner.Unwrap()
		if next == nil {
			break
		}
		err = next
	}
	return err
}

// GetSeverity reports the severity of err, or SeverityInfo if err does not
// carry one.
func GetSeverity(err error) Severity {
	if s, ok := err.(hasSeverity); ok {
		return s.Severity()
	}
	return SeverityInfo
}

func concat(v ...interface{}) string {
	var b strings.Builder
	for _, x := range v {
		if s, ok := x.(string); ok {
			b.WriteString(s)
			continue
		}
		b.WriteString(toString(x))
	}
	return b.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case interface{ String() string }:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
