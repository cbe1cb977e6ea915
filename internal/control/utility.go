package control

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/gridctl/internal/remote"
	"github.com/rs/zerolog/log"
)

// Utility is the control utility facade used by test scenarios.
type Utility struct {
	exec *Executor
	res  Resolution
}

// New resolves admin credentials and TLS material once against the cluster
// globals and returns a ready facade.
func New(cluster Cluster, opts Options) (*Utility, error) {
	res, err := Resolve(Globals(cluster.Globals()), cluster.CertificateDir(), opts)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Bool("auth", res.Auth.Enabled()).
		Bool("tls", res.TLS.Enabled()).
		Msg("control.New resolved admin access")
	return &Utility{exec: NewExecutor(cluster, res), res: res}, nil
}

func (u *Utility) Resolution() Resolution {
	return u.res
}

func (u *Utility) Executor() *Executor {
	return u.exec
}

func (u *Utility) ClusterState(ctx context.Context) (ClusterState, error) {
	res, err := u.exec.Run(ctx, BaselineQuery())
	if err != nil {
		return ClusterState{}, err
	}
	return ParseClusterState(res.Output), nil
}

// Baseline returns only the baseline nodes of the cluster state.
func (u *Utility) Baseline(ctx context.Context) ([]BaselineNode, error) {
	cs, err := u.ClusterState(ctx)
	if err != nil {
		return nil, err
	}
	return cs.Baseline, nil
}

// BaselineTarget is either a topology version or an explicit node list.
type BaselineTarget struct {
	version *int64
	nodes   []remote.Node
}

func ByVersion(version int64) BaselineTarget {
	return BaselineTarget{version: &version}
}

func ByNodes(nodes ...remote.Node) BaselineTarget {
	return BaselineTarget{nodes: append([]remote.Node(nil), nodes...)}
}

func (t BaselineTarget) command() (Command, error) {
	switch {
	case t.version != nil && len(t.nodes) > 0:
		return Command{}, fmt.Errorf("%w: both version and nodes set", ErrInvalidBaseline)
	case t.version != nil:
		return BaselineVersion(*t.version), nil
	case len(t.nodes) > 0:
		return BaselineSet(remote.Addresses(t.nodes)), nil
	default:
		return Command{}, fmt.Errorf("%w: empty target", ErrInvalidBaseline)
	}
}

func (u *Utility) SetBaseline(ctx context.Context, target BaselineTarget) (ClusterState, error) {
	cmd, err := target.command()
	if err != nil {
		return ClusterState{}, err
	}
	return u.runState(ctx, cmd)
}

func (u *Utility) AddToBaseline(ctx context.Context, nodes []remote.Node) (ClusterState, error) {
	if len(nodes) == 0 {
		return ClusterState{}, fmt.Errorf("%w: no nodes to add", ErrInvalidBaseline)
	}
	return u.runState(ctx, BaselineAdd(remote.Addresses(nodes)))
}

func (u *Utility) RemoveFromBaseline(ctx context.Context, nodes []remote.Node) (ClusterState, error) {
	if len(nodes) == 0 {
		return ClusterState{}, fmt.Errorf("%w: no nodes to remove", ErrInvalidBaseline)
	}
	return u.runState(ctx, BaselineRemove(remote.Addresses(nodes)))
}

// RemoveFromBaselineVia runs the removal on via, for when the removed nodes
// may still be picked as alive.
func (u *Utility) RemoveFromBaselineVia(ctx context.Context, via remote.Node, nodes []remote.Node) (ClusterState, error) {
	if len(nodes) == 0 {
		return ClusterState{}, fmt.Errorf("%w: no nodes to remove", ErrInvalidBaseline)
	}
	res, err := u.exec.RunOn(ctx, via, BaselineRemove(remote.Addresses(nodes)))
	if err != nil {
		return ClusterState{}, err
	}
	return ParseClusterState(res.Output), nil
}

func (u *Utility) EnableBaselineAutoAdjust(ctx context.Context, timeout *time.Duration) (string, error) {
	return u.runOutput(ctx, AutoAdjustEnable(timeout))
}

func (u *Utility) DisableBaselineAutoAdjust(ctx context.Context) (string, error) {
	return u.runOutput(ctx, AutoAdjustDisable())
}

func (u *Utility) Activate(ctx context.Context) (string, error) {
	return u.runOutput(ctx, Activate())
}

func (u *Utility) Deactivate(ctx context.Context) (string, error) {
	return u.runOutput(ctx, Deactivate())
}

// TxResult holds parsed transactions, or the verbatim output when nothing
// parsed. An empty listing and an unrecognised report both land in Raw; the
// caller decides which it was.
type TxResult struct {
	Transactions []TxInfo `json:"transactions,omitempty"`
	Raw          string   `json:"raw,omitempty"`
}

func (r TxResult) Parsed() bool {
	return len(r.Transactions) > 0
}

func (u *Utility) Tx(ctx context.Context, filter TxFilter) (TxResult, error) {
	return u.runTx(ctx, Tx(filter))
}

func (u *Utility) TxKill(ctx context.Context, filter TxFilter) (TxResult, error) {
	return u.runTx(ctx, TxKill(filter))
}

// TxInfo returns verbose info for xid, or nil when the report did not parse.
func (u *Utility) TxInfo(ctx context.Context, xid string) (*TxVerboseInfo, error) {
	res, err := u.exec.Run(ctx, TxInfoQuery(xid))
	if err != nil {
		return nil, err
	}
	return ParseTxInfo(res.Output), nil
}

// IdleVerify runs idle_verify and fails with ErrIdleVerifyConflicts unless
// the report states no conflicts were found.
func (u *Utility) IdleVerify(ctx context.Context) (string, error) {
	out, err := u.runOutput(ctx, IdleVerify())
	if err != nil {
		return out, err
	}
	if !IdleVerifyClean(out) {
		return out, &OutputError{Err: ErrIdleVerifyConflicts, Output: out}
	}
	return out, nil
}

// IdleVerifyDump runs idle_verify --dump on node and returns the dump file
// path on that node.
func (u *Utility) IdleVerifyDump(ctx context.Context, node remote.Node) (string, error) {
	res, err := u.exec.RunOn(ctx, node, IdleVerifyDump())
	if err != nil {
		return "", err
	}
	path, ok := ParseIdleVerifyDumpPath(res.Output)
	if !ok {
		return "", &OutputError{Err: ErrDumpPathMissing, Output: res.Output}
	}
	return path, nil
}

// ValidateIndexes fails with ErrIndexIssues unless the report states no
// issues were found.
func (u *Utility) ValidateIndexes(ctx context.Context) (string, error) {
	out, err := u.runOutput(ctx, ValidateIndexes())
	if err != nil {
		return out, err
	}
	if !IndexesClean(out) {
		return out, &OutputError{Err: ErrIndexIssues, Output: out}
	}
	return out, nil
}

func (u *Utility) SnapshotCreate(ctx context.Context, name string) (string, error) {
	return u.runOutput(ctx, SnapshotCreate(name))
}

func (u *Utility) runState(ctx context.Context, cmd Command) (ClusterState, error) {
	res, err := u.exec.Run(ctx, cmd)
	if err != nil {
		return ClusterState{}, err
	}
	return ParseClusterState(res.Output), nil
}

func (u *Utility) runOutput(ctx context.Context, cmd Command) (string, error) {
	res, err := u.exec.Run(ctx, cmd)
	return res.Output, err
}

func (u *Utility) runTx(ctx context.Context, cmd Command) (TxResult, error) {
	res, err := u.exec.Run(ctx, cmd)
	if err != nil {
		return TxResult{}, err
	}
	txs := ParseTxList(res.Output)
	if len(txs) == 0 {
		return TxResult{Raw: res.Output}, nil
	}
	return TxResult{Transactions: txs}, nil
}
