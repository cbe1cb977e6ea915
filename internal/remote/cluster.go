package remote

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProbe      = "true"
	defaultProbeLimit = 8
)

// ClusterConfig describes a provisioned cluster.
type ClusterConfig struct {
	Name           string
	Home           string
	CertificateDir string
	Env            map[string]string
	Probe          string
	Nodes          []Node
	Globals        map[string]any
	Shell          Shell
}

// Cluster is the context the control layer runs against: nested globals,
// certificate directory, node list, script prefixing and liveness.
type Cluster struct {
	name    string
	home    string
	certDir string
	env     map[string]string
	probe   string
	nodes   []Node
	globals map[string]any
	shell   Shell
}

func NewCluster(cfg ClusterConfig) *Cluster {
	probe := strings.TrimSpace(cfg.Probe)
	if probe == "" {
		probe = DefaultProbe
	}
	shell := cfg.Shell
	if shell == nil {
		shell = LocalShell{}
	}
	globals := cfg.Globals
	if globals == nil {
		globals = map[string]any{}
	}
	env := make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		env[k] = v
	}
	return &Cluster{
		name:    cfg.Name,
		home:    cfg.Home,
		certDir: cfg.CertificateDir,
		env:     env,
		probe:   probe,
		nodes:   append([]Node(nil), cfg.Nodes...),
		globals: globals,
		shell:   shell,
	}
}

func (c *Cluster) Name() string {
	return c.name
}

func (c *Cluster) Globals() map[string]any {
	return c.globals
}

func (c *Cluster) CertificateDir() string {
	return c.certDir
}

func (c *Cluster) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// Node looks a node up by name or address.
func (c *Cluster) Node(key string) (Node, bool) {
	for _, n := range c.nodes {
		if n.Name == key || n.Address == key {
			return n, true
		}
	}
	return Node{}, false
}

// Script prefixes cmd with the environment exports and the bin directory of
// the product home.
func (c *Cluster) Script(cmd string) string {
	var b strings.Builder
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("export ")
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(shellescape.Quote(c.env[k]))
		b.WriteString("; ")
	}
	if c.home != "" {
		b.WriteString(path.Join(c.home, "bin"))
		b.WriteByte('/')
	}
	b.WriteString(cmd)
	return b.String()
}

func (c *Cluster) Exec(ctx context.Context, node Node, cmd string) (int, string, error) {
	return c.shell.Exec(ctx, node, cmd)
}

// Alive runs the probe command on node and reports whether it exited zero.
func (c *Cluster) Alive(ctx context.Context, node Node) bool {
	code, _, err := c.shell.Exec(ctx, node, c.probe)
	if err != nil {
		log.Debug().Str("node", node.Name).Err(err).Msg("remote.Cluster.Alive probe failed")
		return false
	}
	return code == 0
}

// AliveNodes probes every node and returns the alive ones in cluster order.
func (c *Cluster) AliveNodes(ctx context.Context) ([]Node, error) {
	alive := make([]bool, len(c.nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultProbeLimit)
	for i, n := range c.nodes {
		i, n := i, n
		g.Go(func() error {
			alive[i] = c.Alive(gctx, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Node, 0, len(c.nodes))
	for i, n := range c.nodes {
		if alive[i] {
			out = append(out, n)
		}
	}
	log.Debug().Str("cluster", c.name).Int("alive", len(out)).Int("total", len(c.nodes)).Msg("remote.Cluster.AliveNodes")
	return out, nil
}
