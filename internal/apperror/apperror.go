package apperror

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Error is a classified error. Op names the failing operation as
// <package>.<action>; Message is safe to show to API callers.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Message string
	Stack   []byte
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	default:
		return "unknown error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func New(kind Kind, op string, err error) *Error {
	e := &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
	if kind == Internal {
		e.Stack = debug.Stack()
	}
	return e
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Internal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// PublicMessage returns the caller-safe message for err, falling back to
// a generic text per kind.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case InvalidInput:
		return "invalid request"
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "storage unavailable"
	default:
		return "internal error"
	}
}
