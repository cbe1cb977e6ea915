package control

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGlobals      = errors.New("control: invalid globals")
	ErrNoAliveNodes        = errors.New("control: no alive nodes")
	ErrCommandFailed       = errors.New("control: command failed")
	ErrInvalidBaseline     = errors.New("control: invalid baseline target")
	ErrIdleVerifyConflicts = errors.New("control: idle_verify reported conflicts")
	ErrIndexIssues         = errors.New("control: validate_indexes reported issues")
	ErrDumpPathMissing     = errors.New("control: idle_verify dump path not found in output")
)

// CommandError is returned when the resolved exit code of a control utility
// invocation is non-zero.
type CommandError struct {
	Account string
	Command string
	Code    int
	Output  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("control: %q on %s exited with code %d", e.Command, e.Account, e.Code)
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// OutputError carries the raw output of a command that ran but whose report
// signals a failed check.
type OutputError struct {
	Err    error
	Output string
}

func (e *OutputError) Error() string {
	return e.Err.Error()
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

func invalidGlobals(path, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidGlobals, path, reason)
}
