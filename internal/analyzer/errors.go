package analyzer

import (
	"errors"
	"fmt"

	"github.com/zombar/textpipeline/internal/langdetect"
	"github.com/zombar/textpipeline/internal/readability"
	"github.com/zombar/textpipeline/internal/sentiment"
)

// ErrorKind classifies pipeline errors
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindConfiguration      ErrorKind = "configuration"
	KindDuplicateOperation ErrorKind = "duplicate_operation"
	KindUnknownOperation   ErrorKind = "unknown_operation"
	KindInvalidArgument    ErrorKind = "invalid_argument"
)

// Error is returned by sessions and handlers
type Error struct {
	Kind    ErrorKind
	Op      string // operation or method that failed
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrConfiguration      = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrDuplicateOperation = &Error{Kind: KindDuplicateOperation, Message: "duplicate operation"}
	ErrUnknownOperation   = &Error{Kind: KindUnknownOperation, Message: "unknown operation"}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
)

func newError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// wrapComponentError maps component input errors onto KindInvalidInput and
// passes everything else through
func wrapComponentError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, readability.ErrInvalidInput) ||
		errors.Is(err, sentiment.ErrInvalidInput) ||
		errors.Is(err, langdetect.ErrInvalidInput) {
		return &Error{Kind: KindInvalidInput, Op: op, Message: "text must be non-empty", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// KindOf returns the kind of a pipeline error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
