package control

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cluster is the view of the cluster the control layer needs.
type Cluster interface {
	Globals() map[string]any
	CertificateDir() string
	Script(cmd string) string
	AliveNodes(ctx context.Context) ([]remote.Node, error)
	Exec(ctx context.Context, node remote.Node, cmd string) (int, string, error)
}

type CommandResult struct {
	Node     remote.Node
	ExitCode int
	Output   string
}

var trailerPattern = regexp.MustCompile(`Command \[[^\s]*\] finished with code: (\d+)`)

// ResolveExitCode returns the code from the utility's own trailer line when
// present, otherwise the shell exit status.
func ResolveExitCode(shellCode int, output string) int {
	m := trailerPattern.FindStringSubmatch(output)
	if m == nil {
		return shellCode
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return shellCode
	}
	return code
}

// PickNode selects one node uniformly at random. intn must return a value in
// [0, n).
func PickNode(nodes []remote.Node, intn func(int) int) (remote.Node, error) {
	if len(nodes) == 0 {
		return remote.Node{}, ErrNoAliveNodes
	}
	if intn == nil {
		intn = rand.Intn
	}
	return nodes[intn(len(nodes))], nil
}

// Executor runs composed commands against the cluster.
type Executor struct {
	cluster Cluster
	res     Resolution
	intn    func(int) int
}

func NewExecutor(cluster Cluster, res Resolution) *Executor {
	return &Executor{cluster: cluster, res: res, intn: rand.Intn}
}

// Run executes cmd on a node picked at random from the currently alive set.
func (e *Executor) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	alive, err := e.cluster.AliveNodes(ctx)
	if err != nil {
		return CommandResult{}, fmt.Errorf("control: alive nodes: %w", err)
	}
	node, err := PickNode(alive, e.intn)
	if err != nil {
		return CommandResult{}, err
	}
	return e.RunOn(ctx, node, cmd)
}

// RunOn executes cmd on node. A non-zero resolved code yields *CommandError
// together with the result.
func (e *Executor) RunOn(ctx context.Context, node remote.Node, cmd Command) (CommandResult, error) {
	id := uuid.NewString()
	line := Compose(e.cluster.Script, node.Address, cmd, e.res)
	logger := log.With().Str("command_id", id).Str("op", cmd.Op()).Str("node", node.Name).Logger()
	logger.Debug().Str("cmd", cmd.String()).Msg("control.Executor.RunOn start")

	start := time.Now()
	shellCode, output, err := e.cluster.Exec(ctx, node, line)
	elapsed := time.Since(start)
	if err != nil {
		observability.RecordControlCommand(cmd.Op(), node.Name, -1, elapsed)
		logger.Error().Err(err).Msg("control.Executor.RunOn channel failure")
		return CommandResult{Node: node, ExitCode: -1, Output: output}, err
	}

	code := ResolveExitCode(shellCode, output)
	observability.RecordControlCommand(cmd.Op(), node.Name, code, elapsed)
	result := CommandResult{Node: node, ExitCode: code, Output: output}
	logger.Debug().
		Int("shell_code", shellCode).
		Int("code", code).
		Dur("elapsed", elapsed).
		Str("output", output).
		Msg("control.Executor.RunOn done")

	if code != 0 {
		logger.Warn().Int("code", code).Msg("control.Executor.RunOn command failed")
		return result, &CommandError{
			Account: node.Account(),
			Command: cmd.String(),
			Code:    code,
			Output:  output,
		}
	}
	return result, nil
}
