package uringrt

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured runtime error carrying the operation that
// failed, an errno if one was involved, and a high-level category.
type Error struct {
	Op    string    // Operation that failed (e.g., "Submit", "Spawn", "Tick")
	Index int       // Op slab index, -1 if not applicable
	Code  ErrorCode // High-level error category
	Errno syscall.Errno
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Index >= 0 {
		parts = append(parts, fmt.Sprintf("index=%d", e.Index))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("uringrt: %s (%s)", msg, parts[0])
	}

	return fmt.Sprintf("uringrt: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by comparing error categories.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode represents the high-level error categories of §7: a caller
// submitted on the wrong thread, a transient or fatal submission failure,
// a completion reported a kernel-level error, or an internal invariant was
// violated.
type ErrorCode string

const (
	// ErrCodeNotOnDriver is returned when Submit/Prepare is called from a
	// context that has no installed Driver.
	ErrCodeNotOnDriver ErrorCode = "not on driver"
	// ErrCodeNotOnExecutor is returned when Spawn is called from a context
	// with no installed Executor. Spawn does not check the calling OS
	// thread: a call from another goroutine queues the task on the
	// executor's global injector queue.
	ErrCodeNotOnExecutor ErrorCode = "not on executor"
	// ErrCodeSubmitTransient marks a submission failure that a later flush
	// can clear. Submit does not return it: Prepare flushes and retries once
	// on a full submission queue, and a queue still full after that is
	// reported as ErrCodeSubmitFatal.
	ErrCodeSubmitTransient ErrorCode = "submit transient"
	// ErrCodeSubmitFatal is a submission failure that retrying will not fix.
	ErrCodeSubmitFatal ErrorCode = "submit fatal"
	// ErrCodeCompletion wraps a negative result reported by a completion
	// queue entry, translated from -errno.
	ErrCodeCompletion ErrorCode = "completion error"
	// ErrCodeInvariantViolation marks a bug: a condition the runtime's
	// concurrency model guarantees can never happen.
	ErrCodeInvariantViolation ErrorCode = "invariant violation"
)

// NewError creates a structured error with no errno attached.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Index: -1, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a structured error from a kernel errno.
func NewErrorWithErrno(op string, index int, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Index: index,
		Code:  ErrCodeCompletion,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// WrapError wraps an existing error with operation context, preserving an
// already-structured error's code instead of re-classifying it.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if ue, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Index: ue.Index,
			Code:  ue.Code,
			Errno: ue.Errno,
			Msg:   ue.Msg,
			Inner: ue.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op:    op,
			Index: -1,
			Code:  ErrCodeCompletion,
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Index: -1,
		Code:  ErrCodeSubmitFatal,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// IsCode reports whether err (or something it wraps) carries code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsErrno reports whether err (or something it wraps) carries errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno == errno
	}
	return false
}

// errnoFromResult converts a negative CQE result into the syscall.Errno it
// encodes. Callers must only pass results that are actually negative.
func errnoFromResult(result int32) syscall.Errno {
	return syscall.Errno(-result)
}
