package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/gridctl/internal/config"
	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/danmuck/gridctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

type recordingShell struct {
	replies map[string]string
	codes   map[string]int
	lines   []string
	hosts   []string
}

func (s *recordingShell) Exec(_ context.Context, node remote.Node, cmd string) (int, string, error) {
	if cmd == remote.DefaultProbe {
		return 0, "", nil
	}
	s.lines = append(s.lines, cmd)
	s.hosts = append(s.hosts, node.Name)
	for match, out := range s.replies {
		if strings.Contains(cmd, match) {
			return s.codes[match], out, nil
		}
	}
	return 0, "", nil
}

func (s *recordingShell) last() string {
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

func testApp(t *testing.T, shell *recordingShell) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out)
	a.open = func(string) (*session, error) {
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
			return nil, err
		}
		return &session{cfg: config.Config{Name: "test"}, cluster: cluster, util: util}, nil
	}
	return a, &out
}

func run(a *app, args ...string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

const stateOutput = "Cluster state: ACTIVE\nCurrent topology version: 7\n" +
	"ConsistentId=node1, Address=10.0.0.1, State=ONLINE, Order=1\n" +
	"Command [BASELINE] finished with code: 0\n"

func TestStateRendersTable(t *testing.T) {
	testlog.Start(t)
	a, out := testApp(t, &recordingShell{replies: map[string]string{"--baseline": stateOutput}})

	require.NoError(t, run(a, "state"))
	rendered := out.String()
	require.Contains(t, rendered, "ACTIVE")
	require.Contains(t, rendered, "node1")
	require.Contains(t, rendered, "CONSISTENT ID")
}

func TestStateJSON(t *testing.T) {
	testlog.Start(t)
	a, out := testApp(t, &recordingShell{replies: map[string]string{"--baseline": stateOutput}})

	require.NoError(t, run(a, "-o", "json", "state"))
	var cs control.ClusterState
	require.NoError(t, json.Unmarshal(out.Bytes(), &cs))
	require.Equal(t, "ACTIVE", *cs.State)
	require.Equal(t, int64(7), *cs.TopologyVersion)
}

func TestBaselineCommands(t *testing.T) {
	testlog.Start(t)
	shell := &recordingShell{}
	a, _ := testApp(t, shell)

	require.NoError(t, run(a, "baseline", "set", "--version", "4"))
	require.True(t, strings.HasSuffix(shell.last(), "--baseline version 4 --yes"), shell.last())

	require.NoError(t, run(a, "baseline", "set", "ignite-1", "10.0.0.2"))
	require.True(t, strings.HasSuffix(shell.last(), "--baseline set 10.0.0.1,10.0.0.2 --yes"), shell.last())

	require.NoError(t, run(a, "baseline", "add", "ignite-2"))
	require.True(t, strings.HasSuffix(shell.last(), "--baseline add 10.0.0.2 --yes"), shell.last())

	require.NoError(t, run(a, "baseline", "remove", "ignite-2", "--via", "ignite-1"))
	require.True(t, strings.HasSuffix(shell.last(), "--baseline remove 10.0.0.2 --yes"), shell.last())
	require.Equal(t, "ignite-1", shell.hosts[len(shell.hosts)-1])

	require.NoError(t, run(a, "baseline", "auto-adjust", "enable", "--timeout", "30s"))
	require.True(t, strings.HasSuffix(shell.last(), "auto_adjust enable timeout 30000 --yes"), shell.last())

	require.NoError(t, run(a, "baseline", "auto-adjust", "disable"))
	require.True(t, strings.HasSuffix(shell.last(), "auto_adjust disable --yes"), shell.last())

	err := run(a, "baseline", "set", "--version", "4", "ignite-1")
	require.ErrorIs(t, err, control.ErrInvalidBaseline)
	require.Error(t, run(a, "baseline", "add", "nope"))
}

func TestTxFlagsBuildFilter(t *testing.T) {
	testlog.Start(t)
	shell := &recordingShell{}
	a, _ := testApp(t, shell)

	require.NoError(t, run(a, "tx", "--servers", "--min-duration", "0", "--limit", "3", "--order", "size", "--nodes", "a,b"))
	require.True(t, strings.HasSuffix(shell.last(), "--tx --servers --min-duration 0 --nodes a,b --limit 3 --order SIZE"), shell.last())

	require.NoError(t, run(a, "tx", "kill", "--xid", "abc"))
	require.True(t, strings.HasSuffix(shell.last(), "--tx --xid abc --kill --yes"), shell.last())

	require.Error(t, run(a, "tx", "--order", "bogus"))
	require.Error(t, run(a, "tx", "info", "missing"))
}

func TestCheckFailuresMapToExitCodes(t *testing.T) {
	testlog.Start(t)
	shell := &recordingShell{
		replies: map[string]string{
			"idle_verify":  "found 1 conflict partitions\n",
			"--activate":   "Killed\n",
			"--snapshot":   "Snapshot operation started\n",
			"--deactivate": "ok\n",
		},
		codes: map[string]int{"--activate": 137},
	}
	a, out := testApp(t, shell)

	err := run(a, "idle-verify")
	require.ErrorIs(t, err, control.ErrIdleVerifyConflicts)
	require.Equal(t, exitCheckFailed, exitCode(err))

	err = run(a, "activate")
	require.ErrorIs(t, err, control.ErrCommandFailed)
	require.Equal(t, exitCommandError, exitCode(err))

	require.Equal(t, exitError, exitCode(errors.New("boom")))

	require.NoError(t, run(a, "snapshot", "create", "nightly"))
	require.True(t, strings.HasSuffix(shell.last(), "--snapshot create nightly"), shell.last())
	require.Contains(t, out.String(), "Snapshot operation started")
}

func TestIdleVerifyDumpOnNode(t *testing.T) {
	testlog.Start(t)
	shell := &recordingShell{replies: map[string]string{
		"--dump": "VisorIdleVerifyDumpTask successfully written output to '/opt/ignite/work/dump.txt'\n",
	}}
	a, out := testApp(t, shell)

	require.NoError(t, run(a, "idle-verify", "--dump", "--node", "ignite-2"))
	require.Equal(t, "ignite-2", shell.hosts[len(shell.hosts)-1])
	require.Contains(t, out.String(), "ignite-2:/opt/ignite/work/dump.txt")
}

func TestRejectsUnknownOutputAndLevel(t *testing.T) {
	testlog.Start(t)
	a, _ := testApp(t, &recordingShell{})
	require.Error(t, run(a, "-o", "yaml", "state"))
	require.Error(t, run(a, "--log-level", "loud", "state"))
}

func TestOpenSessionFromFiles(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "globals.yaml"), []byte("use_auth: true\n"), 0o600))
	path := filepath.Join(dir, "gridctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
globals_file = "globals.yaml"

[ssh]
local = true

[[nodes]]
name = "local"
address = "127.0.0.1"
`), 0o600))

	s, err := openSession(path)
	require.NoError(t, err)
	require.True(t, s.util.Resolution().Auth.Enabled())
	_, ok := s.cluster.Node("local")
	require.True(t, ok)
}
