package control

import (
	"context"
	"strings"
	"sync"

	"github.com/danmuck/gridctl/internal/remote"
)

type fakeResponse struct {
	code   int
	output string
	err    error
}

type fakeCluster struct {
	mu       sync.Mutex
	globals  map[string]any
	certDir  string
	nodes    []remote.Node
	aliveErr error
	// responses keyed by a substring of the composed line; first match wins.
	responses []struct {
		match string
		resp  fakeResponse
	}
	lines []string
	ran   []string
}

func newFakeCluster(nodes ...remote.Node) *fakeCluster {
	if len(nodes) == 0 {
		nodes = []remote.Node{{Name: "ignite-1", Address: "10.0.0.1"}}
	}
	return &fakeCluster{globals: map[string]any{}, certDir: "/opt/certs", nodes: nodes}
}

func (c *fakeCluster) on(match string, code int, output string) *fakeCluster {
	c.responses = append(c.responses, struct {
		match string
		resp  fakeResponse
	}{match: match, resp: fakeResponse{code: code, output: output}})
	return c
}

func (c *fakeCluster) Globals() map[string]any { return c.globals }
func (c *fakeCluster) CertificateDir() string  { return c.certDir }
func (c *fakeCluster) Script(cmd string) string {
	return "/opt/ignite/bin/" + cmd
}

func (c *fakeCluster) AliveNodes(context.Context) ([]remote.Node, error) {
	if c.aliveErr != nil {
		return nil, c.aliveErr
	}
	return append([]remote.Node(nil), c.nodes...), nil
}

func (c *fakeCluster) Exec(_ context.Context, node remote.Node, cmd string) (int, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, cmd)
	c.ran = append(c.ran, node.Name)
	for _, r := range c.responses {
		if strings.Contains(cmd, r.match) {
			return r.resp.code, r.resp.output, r.resp.err
		}
	}
	return 0, "", nil
}

func (c *fakeCluster) lastLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}
