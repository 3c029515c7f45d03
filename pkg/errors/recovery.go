package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a recovered panic. Model suppliers are opaque, so a panic
// in Fit or Score is turned into an error on its own fold.
type PanicError struct {
	// PanicValue is the value passed to panic.
	PanicValue interface{}
	// StackTrace is debug.Stack() at the point of recovery.
	StackTrace string
	// Operation names the guarded call, e.g. "fold 3 fit".
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the stack.
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// MarshalZerologObject はパニック情報をzerologのイベントに追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "PanicError").
		Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.PanicValue))
}

// NewPanicError captures the current stack.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover must be deferred directly. It stores a recovered panic in *err;
// an error already assigned is kept as the cause.
//
//	func (m *model) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "Fit")
//	    ...
//	}
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	pe := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.Wrapf(*err, "%s (original error)", pe.Error())
		return
	}
	*err = pe
}

// SafeExecute runs fn, returning a *PanicError if it panics.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
