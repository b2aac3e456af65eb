package ecs

import (
	"errors"
	"fmt"
)

// FatalError marks a structural ledger violation: duplicate singleton,
// missing singleton, or an unregistered non-numeric component. A FatalError
// aborts the tick that produced it; the ledger is left in its pre-tick state
// and the error propagates to the caller of the trader's run loop.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ecs: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err (or one it wraps) is a structural violation.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
