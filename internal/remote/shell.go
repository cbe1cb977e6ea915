package remote

import (
	"context"

	"github.com/danmuck/gridctl/internal/tools"
)

// Shell runs one command line on a node. A command that ran and exited
// non-zero is not an error: the status is returned and err stays nil. err is
// reserved for channel failures (dial, auth, session setup).
type Shell interface {
	Exec(ctx context.Context, node Node, cmd string) (int, string, error)
}

// LocalShell runs every command on the local host regardless of node, for
// single-host development clusters. Cancelling ctx does not stop a command
// once it has been handed to the runner.
type LocalShell struct {
	Runner tools.CommandRunner
}

func (s LocalShell) Exec(ctx context.Context, node Node, cmd string) (int, string, error) {
	runner := s.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	out, code, err := runner.Run(context.WithoutCancel(ctx), "sh", "-c", cmd)
	if err != nil {
		return code, string(out), err
	}
	return code, string(out), nil
}
