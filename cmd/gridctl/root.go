package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/danmuck/gridctl/internal/config"
	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/logging"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// session is everything a subcommand needs, opened from the harness file.
type session struct {
	cfg     config.Config
	cluster *remote.Cluster
	util    *control.Utility
}

type app struct {
	configPath string
	logLevel   string
	output     string
	out        io.Writer
	open       func(path string) (*session, error)
}

func newApp(out io.Writer) *app {
	return &app{out: out, open: openSession}
}

func openSession(path string) (*session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cluster, err := config.BuildCluster(cfg, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	util, err := control.New(cluster, config.AdminOptions(cfg.Admin))
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, cluster: cluster, util: util}, nil
}

func (a *app) connect() (*session, error) {
	return a.open(a.configPath)
}

func (a *app) nodes(s *session, keys []string) ([]remote.Node, error) {
	nodes := make([]remote.Node, 0, len(keys))
	for _, key := range keys {
		n, ok := s.cluster.Node(key)
		if !ok {
			return nil, fmt.Errorf("unknown node %q in cluster %s", key, s.cfg.Name)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// emit writes v as JSON when --output=json, otherwise calls table.
func (a *app) emit(v any, table func(io.Writer)) error {
	if a.output == outputJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(a.out)
	return nil
}

func (a *app) emitOutput(out string) error {
	return a.emit(map[string]string{"output": out}, func(w io.Writer) {
		fmt.Fprint(w, out)
	})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gridctl",
		Short: "Drive the cluster control utility across a provisioned cluster",
		Long: `gridctl runs the cluster control utility on a live node of a provisioned
cluster, adding TLS and admin credentials resolved from the cluster globals,
and parses the reports it prints.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.output != outputTable && a.output != outputJSON {
				return fmt.Errorf("unknown output format %q", a.output)
			}
			if a.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(a.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", a.logLevel)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "gridctl.toml", "harness config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (trace|debug|info|warn|error)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "output format: table|json")

	root.AddCommand(
		newStateCmd(a),
		newBaselineCmd(a),
		newActivateCmd(a),
		newDeactivateCmd(a),
		newTxCmd(a),
		newIdleVerifyCmd(a),
		newValidateIndexesCmd(a),
		newSnapshotCmd(a),
		newServeCmd(a),
	)
	return root
}
