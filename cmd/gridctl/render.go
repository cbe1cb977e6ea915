package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatUpper
	return t
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func int64OrDash(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func renderState(w io.Writer, cs control.ClusterState) {
	t := newTable(w)
	t.AppendHeader(table.Row{"State", "Topology version", "Baseline nodes"})
	t.AppendRow(table.Row{orDash(cs.State), int64OrDash(cs.TopologyVersion), len(cs.Baseline)})
	t.Render()
	if len(cs.Baseline) > 0 {
		renderBaseline(w, cs.Baseline)
	}
}

func renderBaseline(w io.Writer, nodes []control.BaselineNode) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Consistent ID", "Address", "State", "Order"})
	for _, n := range nodes {
		t.AppendRow(table.Row{n.ConsistentID, orDash(n.Address), n.State, int64OrDash(n.Order)})
	}
	t.Render()
}

func renderTxResult(w io.Writer, res control.TxResult) {
	if !res.Parsed() {
		fmt.Fprint(w, res.Raw)
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"XID", "Label", "State", "Start", "Duration ms", "Isolation", "Concurrency", "Size", "Top ver"})
	for _, tx := range res.Transactions {
		t.AppendRow(table.Row{
			tx.XID,
			tx.Label,
			tx.State,
			tx.StartTime.Format(control.StartTimeLayout),
			tx.DurationMs,
			tx.Isolation,
			tx.Concurrency,
			tx.SizeBytes,
			fmt.Sprintf("%d.%d", tx.TopologyVersion.Major, tx.TopologyVersion.Minor),
		})
	}
	t.Render()
}

func renderTxInfo(w io.Writer, info *control.TxVerboseInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"XID", info.XID},
		{"Near XID version", info.XIDFull},
		{"Label", info.Label},
		{"Isolation", info.Isolation},
		{"Concurrency", info.Concurrency},
		{"Timeout ms", info.TimeoutMs},
		{"Topology version", fmt.Sprintf("%d.%d", info.TopologyVersion.Major, info.TopologyVersion.Minor)},
		{"Initiator", info.InitiatorID},
		{"Initiator consistent ID", info.InitiatorConsistentID},
		{"Caches", pairs(info.Caches)},
		{"Cache groups", pairs(info.CacheGroups)},
		{"States", strings.Join(info.States, ", ")},
	})
	t.Render()
}

func pairs(p control.Pairs) string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		parts = append(parts, kv.Key+"="+kv.Value)
	}
	return strings.Join(parts, ", ")
}
