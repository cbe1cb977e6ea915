package tools

import (
	"context"
	"errors"
	"os/exec"
)

// CommandRunner abstracts local shell command execution.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, int, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run returns combined stdout/stderr and the process exit code. A non-zero
// exit is reported through the code, not the error; the error is reserved for
// failures to start or wait on the process.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, exitErr.ExitCode(), nil
	}

	exitCode := 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return out, exitCode, err
}
