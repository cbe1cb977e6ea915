package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/danmuck/gridctl/internal/server"
	"github.com/spf13/cobra"
)

func newStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show cluster state, topology version and baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			cs, err := s.util.ClusterState(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cs, func(w io.Writer) { renderState(w, cs) })
		},
	}
}

func newBaselineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Show or change the baseline topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			nodes, err := s.util.Baseline(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(nodes, func(w io.Writer) { renderBaseline(w, nodes) })
		},
	}
	cmd.AddCommand(
		newBaselineSetCmd(a),
		newBaselineChangeCmd(a, "add", "Add nodes to the baseline"),
		newBaselineChangeCmd(a, "remove", "Remove nodes from the baseline"),
		newAutoAdjustCmd(a),
	)
	return cmd
}

func newBaselineSetCmd(a *app) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "set [node...]",
		Short: "Set the baseline to a topology version or to the given nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			var target control.BaselineTarget
			switch versionSet := cmd.Flags().Changed("version"); {
			case versionSet && len(args) > 0:
				return fmt.Errorf("%w: --version and nodes are exclusive", control.ErrInvalidBaseline)
			case versionSet:
				target = control.ByVersion(version)
			default:
				nodes, err := a.nodes(s, args)
				if err != nil {
					return err
				}
				target = control.ByNodes(nodes...)
			}
			cs, err := s.util.SetBaseline(cmd.Context(), target)
			if err != nil {
				return err
			}
			return a.emit(cs, func(w io.Writer) { renderState(w, cs) })
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "topology version to adopt as baseline")
	return cmd
}

func newBaselineChangeCmd(a *app, verb, short string) *cobra.Command {
	var via string
	cmd := &cobra.Command{
		Use:   verb + " node...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			nodes, err := a.nodes(s, args)
			if err != nil {
				return err
			}

			var cs control.ClusterState
			switch {
			case verb == "add":
				cs, err = s.util.AddToBaseline(cmd.Context(), nodes)
			case via != "":
				viaNode, ok := s.cluster.Node(via)
				if !ok {
					return fmt.Errorf("unknown node %q in cluster %s", via, s.cfg.Name)
				}
				cs, err = s.util.RemoveFromBaselineVia(cmd.Context(), viaNode, nodes)
			default:
				cs, err = s.util.RemoveFromBaseline(cmd.Context(), nodes)
			}
			if err != nil {
				return err
			}
			return a.emit(cs, func(w io.Writer) { renderState(w, cs) })
		},
	}
	if verb == "remove" {
		cmd.Flags().StringVar(&via, "via", "", "run the removal on this node")
	}
	return cmd
}

func newAutoAdjustCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-adjust",
		Short: "Enable or disable baseline auto adjustment",
	}

	var timeout time.Duration
	enable := &cobra.Command{
		Use:  "enable",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			var t *time.Duration
			if cmd.Flags().Changed("timeout") {
				t = &timeout
			}
			out, err := s.util.EnableBaselineAutoAdjust(cmd.Context(), t)
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	}
	enable.Flags().DurationVar(&timeout, "timeout", 0, "soft timeout before the baseline adjusts")

	disable := &cobra.Command{
		Use:  "disable",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			out, err := s.util.DisableBaselineAutoAdjust(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	}

	cmd.AddCommand(enable, disable)
	return cmd
}

func newActivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Activate the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			out, err := s.util.Activate(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	}
}

func newDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			out, err := s.util.Deactivate(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	}
}

type txFlags struct {
	xid         string
	clients     bool
	servers     bool
	minDuration int64
	minSize     int64
	label       string
	nodes       []string
	limit       int
	order       string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.xid, "xid", "", "transaction id")
	cmd.Flags().BoolVar(&f.clients, "clients", false, "client nodes only")
	cmd.Flags().BoolVar(&f.servers, "servers", false, "server nodes only")
	cmd.Flags().Int64Var(&f.minDuration, "min-duration", 0, "minimum duration in seconds")
	cmd.Flags().Int64Var(&f.minSize, "min-size", 0, "minimum transaction size")
	cmd.Flags().StringVar(&f.label, "label", "", "label regular expression")
	cmd.Flags().StringSliceVar(&f.nodes, "nodes", nil, "consistent ids of nodes to query")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum transactions per node")
	cmd.Flags().StringVar(&f.order, "order", "", "DURATION|SIZE|START_TIME")
}

func (f *txFlags) filter(cmd *cobra.Command) (control.TxFilter, error) {
	filter := control.TxFilter{
		XID:          f.xid,
		Clients:      f.clients,
		Servers:      f.servers,
		LabelPattern: f.label,
		Nodes:        f.nodes,
	}
	if cmd.Flags().Changed("min-duration") {
		filter.MinDuration = control.Ptr(f.minDuration)
	}
	if cmd.Flags().Changed("min-size") {
		filter.MinSize = control.Ptr(f.minSize)
	}
	if cmd.Flags().Changed("limit") {
		filter.Limit = control.Ptr(f.limit)
	}
	switch order := control.TxOrder(strings.ToUpper(f.order)); order {
	case "":
	case control.TxOrderDuration, control.TxOrderSize, control.TxOrderStartTime:
		filter.Order = order
	default:
		return control.TxFilter{}, fmt.Errorf("unknown --order %q", f.order)
	}
	return filter, nil
}

func newTxCmd(a *app) *cobra.Command {
	var listFlags txFlags
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "List transactions matching the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := listFlags.filter(cmd)
			if err != nil {
				return err
			}
			s, err := a.connect()
			if err != nil {
				return err
			}
			res, err := s.util.Tx(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.emit(res, func(w io.Writer) { renderTxResult(w, res) })
		},
	}
	listFlags.register(cmd)

	var killFlags txFlags
	kill := &cobra.Command{
		Use:   "kill",
		Short: "Kill transactions matching the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := killFlags.filter(cmd)
			if err != nil {
				return err
			}
			s, err := a.connect()
			if err != nil {
				return err
			}
			res, err := s.util.TxKill(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.emit(res, func(w io.Writer) { renderTxResult(w, res) })
		},
	}
	killFlags.register(kill)

	info := &cobra.Command{
		Use:   "info xid",
		Short: "Show verbose info for one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			ti, err := s.util.TxInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ti == nil {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			return a.emit(ti, func(w io.Writer) { renderTxInfo(w, ti) })
		},
	}

	cmd.AddCommand(kill, info)
	return cmd
}

func newIdleVerifyCmd(a *app) *cobra.Command {
	var (
		dump bool
		node string
	)
	cmd := &cobra.Command{
		Use:   "idle-verify",
		Short: "Check partition consistency, or dump it on one node with --dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			if !dump {
				out, err := s.util.IdleVerify(cmd.Context())
				if err != nil {
					return err
				}
				return a.emitOutput(out)
			}

			target, err := dumpNode(s, node)
			if err != nil {
				return err
			}
			path, err := s.util.IdleVerifyDump(cmd.Context(), target)
			if err != nil {
				return err
			}
			return a.emit(map[string]string{"node": target.Name, "path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "%s:%s\n", target.Name, path)
			})
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "write the partition hashes to a file on the node")
	cmd.Flags().StringVar(&node, "node", "", "node to dump on (default: first configured node)")
	return cmd
}

func dumpNode(s *session, key string) (remote.Node, error) {
	if key == "" {
		nodes := s.cluster.Nodes()
		if len(nodes) == 0 {
			return remote.Node{}, control.ErrNoAliveNodes
		}
		return nodes[0], nil
	}
	n, ok := s.cluster.Node(key)
	if !ok {
		return remote.Node{}, fmt.Errorf("unknown node %q in cluster %s", key, s.cfg.Name)
	}
	return n, nil
}

func newValidateIndexesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-indexes",
		Short: "Validate cache indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			out, err := s.util.ValidateIndexes(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	}
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage cluster snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create name",
		Short: "Create a named snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			out, err := s.util.SnapshotCreate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emitOutput(out)
		},
	})
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = s.cfg.HTTPAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := server.New(s.util, s.cluster, server.Config{
				Name:        s.cfg.Name,
				Addr:        addr,
				CorsOrigins: s.cfg.CorsOrigins,
				AuthToken:   s.cfg.HTTPToken,
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http_addr from config)")
	return cmd
}
