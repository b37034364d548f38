// Package errs defines the structured error kinds used across the
// paging and transaction core, plus the push/assert-empty/drain
// diagnostic stack that the core's entry points use to accumulate
// failure context for the caller to drain.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a core failure the way spec §7 names them.
type Kind int

const (
	// InvalidArgument covers out-of-range pages, duplicate-allocate,
	// unknown flags, and mis-tagged metadata.
	InvalidArgument Kind = iota
	// OutOfMemory covers buffer or table allocation failure.
	OutOfMemory
	// IO covers PAL read/write/map failure.
	IO
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case OutOfMemory:
		return "out_of_memory"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the structured diagnostic record pushed onto a Stack and
// also returned directly by every fallible entry point.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Fields)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As and to
// github.com/pkg/errors' Cause().
func (e *Error) Unwrap() error { return e.cause }

// Cause satisfies github.com/pkg/errors' causer interface.
func (e *Error) Cause() error { return e.cause }

// New builds a structured Error with no cause.
func New(kind Kind, message string, kv ...any) *Error {
	return wrap(nil, kind, message, kv...)
}

// Wrap builds a structured Error around an underlying cause, the way
// refactor_code/pkg/errors.NewDatabaseError carries a Cause.
func Wrap(cause error, kind Kind, message string, kv ...any) *Error {
	return wrap(cause, kind, message, kv...)
}

func wrap(cause error, kind Kind, message string, kv ...any) *Error {
	e := &Error{Kind: kind, Message: message, cause: cause}
	if len(kv) > 0 {
		e.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			e.Fields[key] = kv[i+1]
		}
	}
	if cause != nil {
		// Preserve a stack trace at the wrap site the way pkg/errors does,
		// without discarding the original cause chain.
		e.cause = errors.Wrap(cause, message)
	}
	return e
}

// Is lets callers write errors.Is(err, errs.OutOfMemory) style checks
// by kind rather than by value.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
