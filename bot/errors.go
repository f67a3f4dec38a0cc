package bot

import (
	"errors"
	"fmt"
)

// ErrExecuteDone stops the remaining handlers of a trigger without counting
// as a failure. Return it, or wrap it, from a handler.
var ErrExecuteDone = errors.New("execute done")

// PreExecuteError is a failure inside a pre-hook of an executor.
type PreExecuteError struct {
	Index int
	Err   error
}

func (e *PreExecuteError) Error() string {
	return fmt.Sprintf("pre-hook %d: %v", e.Index, e.Err)
}

func (e *PreExecuteError) Unwrap() error {
	return e.Err
}

// ExecuteError locates a failed handler.
type ExecuteError struct {
	Plugin  string
	Trigger string
	Handler int
	Err     error
}

func (e *ExecuteError) Error() string {
	return fmt.Sprintf("%s.%s handler %d: %v", e.Plugin, e.Trigger, e.Handler, e.Err)
}

func (e *ExecuteError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
