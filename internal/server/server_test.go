package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/danmuck/gridctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type scriptedShell struct {
	mu    sync.Mutex
	rules []struct {
		match  string
		code   int
		output string
	}
	lines []string
	hosts []string
}

func (s *scriptedShell) on(match string, code int, output string) *scriptedShell {
	s.rules = append(s.rules, struct {
		match  string
		code   int
		output string
	}{match, code, output})
	return s
}

func (s *scriptedShell) Exec(_ context.Context, node remote.Node, cmd string) (int, string, error) {
	if cmd == remote.DefaultProbe {
		return 0, "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, cmd)
	s.hosts = append(s.hosts, node.Name)
	for _, r := range s.rules {
		if strings.Contains(cmd, r.match) {
			return r.code, r.output, nil
		}
	}
	return 0, "", nil
}

func (s *scriptedShell) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

func newTestServer(t *testing.T, shell *scriptedShell) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cluster := remote.NewCluster(remote.ClusterConfig{
		Name: "test",
		Home: "/opt/ignite",
		Nodes: []remote.Node{
			{Name: "ignite-1", Address: "10.0.0.1"},
			{Name: "ignite-2", Address: "10.0.0.2"},
		},
		Shell: shell,
	})
	util, err := control.New(cluster, control.Options{})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	return New(util, cluster, Config{Name: "gridctl-test"})
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)

	out := map[string]any{}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v body=%s", method, path, err, rr.Body.String())
		}
	}
	return rr, out
}

func TestHealthAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, &scriptedShell{})

	rr, body := do(t, s, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["service"] != "gridctl-test" {
		t.Fatalf("unexpected health %d %v", rr.Code, body)
	}

	rr, _ = do(t, s, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "gridctl_http_requests_total") {
		t.Fatalf("expected gridctl metrics, got %d", rr.Code)
	}
}

func TestStateRoute(t *testing.T) {
	testlog.Start(t)
	shell := (&scriptedShell{}).on("--baseline", 0,
		"Cluster state: ACTIVE\nCurrent topology version: 5\n"+
			"ConsistentId=node1, Address=10.0.0.1, State=ONLINE, Order=1\n"+
			"Command [BASELINE] finished with code: 0\n")
	s := newTestServer(t, shell)

	rr, body := do(t, s, http.MethodGet, "/v1/state", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if body["state"] != "ACTIVE" || body["topology_version"] != float64(5) {
		t.Fatalf("unexpected state %v", body)
	}
	baseline := body["baseline"].([]any)
	if len(baseline) != 1 || baseline[0].(map[string]any)["consistent_id"] != "node1" {
		t.Fatalf("unexpected baseline %v", baseline)
	}
	if !strings.HasPrefix(shell.last(), "/opt/ignite/bin/control.sh --host 10.0.0.") {
		t.Fatalf("unexpected line %q", shell.last())
	}
}

func TestPutBaseline(t *testing.T) {
	testlog.Start(t)
	shell := &scriptedShell{}
	s := newTestServer(t, shell)

	rr, _ := do(t, s, http.MethodPut, "/v1/baseline", map[string]any{"version": 3})
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "--baseline version 3 --yes") {
		t.Fatalf("unexpected version set %d %q", rr.Code, shell.last())
	}

	rr, _ = do(t, s, http.MethodPut, "/v1/baseline", map[string]any{"nodes": []string{"ignite-1", "ignite-2"}})
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "--baseline set 10.0.0.1,10.0.0.2 --yes") {
		t.Fatalf("unexpected node set %d %q", rr.Code, shell.last())
	}

	for _, body := range []map[string]any{
		{},
		{"version": 1, "nodes": []string{"ignite-1"}},
		{"nodes": []string{"nope"}},
	} {
		rr, _ = do(t, s, http.MethodPut, "/v1/baseline", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rr.Code)
		}
	}
}

func TestRemoveBaselineVia(t *testing.T) {
	testlog.Start(t)
	shell := &scriptedShell{}
	s := newTestServer(t, shell)

	rr, _ := do(t, s, http.MethodPost, "/v1/baseline/remove", map[string]any{"nodes": []string{"ignite-2"}, "via": "ignite-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if shell.hosts[len(shell.hosts)-1] != "ignite-1" || !strings.Contains(shell.last(), "--baseline remove 10.0.0.2 --yes") {
		t.Fatalf("unexpected remove %v %q", shell.hosts, shell.last())
	}
}

func TestCommandFailureMapsToBadGateway(t *testing.T) {
	testlog.Start(t)
	shell := (&scriptedShell{}).on("--activate", 0, "Command [ACTIVATE] finished with code: 4\n")
	s := newTestServer(t, shell)

	rr, body := do(t, s, http.MethodPost, "/v1/activate", nil)
	if rr.Code != http.StatusBadGateway || body["code"] != float64(4) {
		t.Fatalf("expected 502 with code 4, got %d %v", rr.Code, body)
	}
}

func TestAutoAdjustRoute(t *testing.T) {
	testlog.Start(t)
	shell := &scriptedShell{}
	s := newTestServer(t, shell)

	rr, _ := do(t, s, http.MethodPost, "/v1/baseline/auto-adjust", map[string]any{"enabled": true, "timeout_ms": 5000})
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "auto_adjust enable timeout 5000 --yes") {
		t.Fatalf("unexpected enable %d %q", rr.Code, shell.last())
	}
	rr, _ = do(t, s, http.MethodPost, "/v1/baseline/auto-adjust", map[string]any{"enabled": false})
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "auto_adjust disable --yes") {
		t.Fatalf("unexpected disable %d %q", rr.Code, shell.last())
	}
}

func TestTxRoutes(t *testing.T) {
	testlog.Start(t)
	shell := (&scriptedShell{}).
		on("--info", 0, "No transactions found.\n").
		on("--tx", 0, "Nothing found.\n")
	s := newTestServer(t, shell)

	rr, body := do(t, s, http.MethodGet, "/v1/tx?label=etl&limit=5&order=DURATION&nodes=n1&nodes=n2", nil)
	if rr.Code != http.StatusOK || body["raw"] != "Nothing found.\n" {
		t.Fatalf("unexpected tx list %d %v", rr.Code, body)
	}
	if !strings.HasSuffix(shell.last(), "--tx --label etl --nodes n1,n2 --limit 5 --order DURATION") {
		t.Fatalf("unexpected tx line %q", shell.last())
	}

	rr, _ = do(t, s, http.MethodGet, "/v1/tx?order=RANDOM", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad order, got %d", rr.Code)
	}

	rr, _ = do(t, s, http.MethodPost, "/v1/tx/kill", map[string]any{"xid": "abc"})
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "--tx --xid abc --kill --yes") {
		t.Fatalf("unexpected kill %d %q", rr.Code, shell.last())
	}

	rr, _ = do(t, s, http.MethodGet, "/v1/tx/abc", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unparsed info, got %d", rr.Code)
	}
}

func TestChecksMapToConflict(t *testing.T) {
	testlog.Start(t)
	shell := (&scriptedShell{}).
		on("--dump", 0, "VisorIdleVerifyDumpTask successfully written output to '/tmp/dump.txt'\n").
		on("idle_verify", 0, "idle_verify check has finished, found 3 conflict partitions\n").
		on("validate_indexes", 0, "validate_indexes has finished, no issues found.\n")
	s := newTestServer(t, shell)

	rr, body := do(t, s, http.MethodPost, "/v1/idle-verify", nil)
	if rr.Code != http.StatusConflict || !strings.Contains(body["output"].(string), "conflict partitions") {
		t.Fatalf("expected 409 with output, got %d %v", rr.Code, body)
	}

	rr, _ = do(t, s, http.MethodPost, "/v1/validate-indexes", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr, body = do(t, s, http.MethodPost, "/v1/idle-verify/dump", map[string]any{"node": "ignite-2"})
	if rr.Code != http.StatusOK || body["path"] != "/tmp/dump.txt" || body["node"] != "ignite-2" {
		t.Fatalf("unexpected dump %d %v", rr.Code, body)
	}
	rr, _ = do(t, s, http.MethodPost, "/v1/idle-verify/dump", map[string]any{"node": "nope"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown node, got %d", rr.Code)
	}
}

func TestSnapshotRoute(t *testing.T) {
	testlog.Start(t)
	shell := &scriptedShell{}
	s := newTestServer(t, shell)

	rr, _ := do(t, s, http.MethodPost, "/v1/snapshots/snap_1", nil)
	if rr.Code != http.StatusOK || !strings.HasSuffix(shell.last(), "--snapshot create snap_1") {
		t.Fatalf("unexpected snapshot %d %q", rr.Code, shell.last())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s := newTestServer(t, &scriptedShell{})
	s.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestTokenGuardsV1Only(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	cluster := remote.NewCluster(remote.ClusterConfig{
		Nodes: []remote.Node{{Name: "ignite-1", Address: "10.0.0.1"}},
		Shell: &scriptedShell{},
	})
	util, err := control.New(cluster, control.Options{})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	s := New(util, cluster, Config{AuthToken: "s3cret"})

	rr, _ := do(t, s, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected open health, got %d", rr.Code)
	}
	rr, _ = do(t, s, http.MethodGet, "/v1/state", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	ok := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", ok.Code)
	}
}
