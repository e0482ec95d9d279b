package mount

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Kind classifies an Error the way the underlying C library's error
// codes do. There is no Go analogue of "out of memory": Go reports
// allocation failure by panicking the process, not by a returned error
// a caller could branch on, so that kind is not represented here.
type Kind int

const (
	// InvalidArgument: a null or malformed parameter.
	InvalidArgument Kind = iota
	// ParseError: a single malformed line; recoverable via callback.
	ParseError
	// NotFound: a lookup or option-get came up empty; not exceptional.
	NotFound
	// StaleLock: the lock acquisition deadline expired.
	StaleLock
	// IOError: a passthrough of an underlying filesystem error.
	IOError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid-argument"
	case ParseError:
		return "parse-error"
	case NotFound:
		return "not-found"
	case StaleLock:
		return "stale-lock"
	case IOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// Error is the typed error this module's mutators and parsers return:
// a classification code plus an xerrors.Frame for stack-trace-on-
// format, wrapping an arbitrary underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	frame   xerrors.Frame
}

// NewError builds an Error of the given kind. Use Wrap instead when
// there is an underlying error to carry along (typically an I/O
// failure).
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, frame: xerrors.Caller(1)}
}

// Wrap attaches kind and message to an underlying error.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: goerrors.Wrap(cause, 1), frame: xerrors.Caller(1)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// FormatError implements xerrors.Formatter so %+v on an Error prints a
// stack trace frame alongside the message.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Print(e.Error())
	e.frame.Format(p)
	return e.Cause
}

func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
