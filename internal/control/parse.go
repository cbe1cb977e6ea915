package control

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// StartTimeLayout is the transaction start time format in utility reports.
const StartTimeLayout = "2006-01-02 15:04:05.000"

type BaselineNode struct {
	ConsistentID string  `json:"consistent_id"`
	State        string  `json:"state"`
	Address      *string `json:"address,omitempty"`
	Order        *int64  `json:"order,omitempty"`
}

type ClusterState struct {
	State           *string        `json:"state"`
	TopologyVersion *int64         `json:"topology_version"`
	Baseline        []BaselineNode `json:"baseline"`
}

// TopologyVersion is an affinity topology version (major, minor).
type TopologyVersion struct {
	Major int64 `json:"major"`
	Minor int64 `json:"minor"`
}

type TxInfo struct {
	XID             string          `json:"xid"`
	NearXID         string          `json:"near_xid"`
	Label           string          `json:"label"`
	State           string          `json:"state"`
	StartTime       time.Time       `json:"start_time"`
	DurationMs      int64           `json:"duration_ms"`
	Isolation       string          `json:"isolation"`
	Concurrency     string          `json:"concurrency"`
	TopologyVersion TopologyVersion `json:"topology_version"`
	TimeoutMs       int64           `json:"timeout_ms"`
	SizeBytes       int64           `json:"size"`
	DHTNodes        []string        `json:"dht_nodes"`
	ParentNodes     []string        `json:"parent_nodes"`
}

type TxVerboseInfo struct {
	XID                   string          `json:"xid"`
	XIDFull               string          `json:"xid_full"`
	Label                 string          `json:"label"`
	Isolation             string          `json:"isolation"`
	Concurrency           string          `json:"concurrency"`
	TimeoutMs             int64           `json:"timeout_ms"`
	TopologyVersion       TopologyVersion `json:"topology_version"`
	InitiatorID           string          `json:"initiator_id"`
	InitiatorConsistentID string          `json:"initiator_consistent_id"`
	Caches                Pairs           `json:"caches"`
	CacheGroups           Pairs           `json:"cache_groups"`
	States                []string        `json:"states"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pairs is an insertion-ordered string mapping.
type Pairs []KeyValue

func (p Pairs) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func (p Pairs) Map() map[string]string {
	out := make(map[string]string, len(p))
	for _, kv := range p {
		out[kv.Key] = kv.Value
	}
	return out
}

var (
	clusterStatePattern = regexp.MustCompile(`Cluster state: (?P<state>[^\s]+)`)
	topologyPattern     = regexp.MustCompile(`Current topology version: (?P<version>\d+)`)
	baselinePattern     = regexp.MustCompile(
		`Consistent(?:Id|ID)=(?P<consistent_id>[^\s,]+)` +
			`(?:,\sA(?:ddress|DDRESS)=(?P<address>[^\s,]+))?` +
			`,\sS(?:tate|TATE)=(?P<state>[^\s,]+)` +
			`(?:,\sOrder=(?P<order>\d+))?`)

	txPattern = regexp.MustCompile(
		`Tx: \[xid=(?P<xid>[^\s]+), ` +
			`label=(?P<label>[^\s]+), state=(?P<state>[^\s]+), ` +
			`startTime=(?P<start_time>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}), duration=(?P<duration>\d+), ` +
			`isolation=(?P<isolation>[^\s]+), concurrency=(?P<concurrency>[^\s]+), ` +
			`topVer=AffinityTopologyVersion \[topVer=(?P<top_ver>\d+), minorTopVer=(?P<minor_top_ver>\d+)\], ` +
			`timeout=(?P<timeout>\d+), size=(?P<size>\d+), dhtNodes=\[(?P<dht_nodes>.*)\], ` +
			`nearXid=(?P<near_xid>[^\s]+), parentNodeIds=\[(?P<parent_nodes>.*)\]\]`)

	txInfoPattern = regexp.MustCompile(
		`Near XID version: (?P<xid_full>GridCacheVersion \[topVer=\d+, order=\d+, nodeOrder=\d+\])\n\s+` +
			`Near XID version \(UUID\): (?P<xid>[^\s]+)\n\s+` +
			`Isolation: (?P<isolation>[^\s]+)\n\s+` +
			`Concurrency: (?P<concurrency>[^\s]+)\n\s+` +
			`Timeout: (?P<timeout>\d+)\n\s+` +
			`Initiator node: (?P<initiator_id>[^\s]+)\n\s+` +
			`Initiator node \(consistent ID\): (?P<initiator_consistent_id>[^\s+]+)\n\s+` +
			`Label: (?P<label>[^\s]+)\n\s+Topology version: AffinityTopologyVersion ` +
			`\[topVer=(?P<top_ver>\d+), minorTopVer=(?P<minor_top_ver>\d+)\]\n\s+` +
			`Used caches \(ID to name\): \{(?P<caches>.*)\}\n\s+` +
			`Used cache groups \(ID to name\): \{(?P<cache_groups>.*)\}\n\s+` +
			`States across the cluster: \[(?P<states>.*)\]`)

	dumpPathPattern = regexp.MustCompile(`(/[^\s]*\.txt)`)
)

const (
	idleVerifyCleanPhrase = "no conflicts have been found"
	indexesCleanPhrase    = "no issues found"
	dumpDonePhrase        = "VisorIdleVerifyDumpTask successfully"
)

// ParseClusterState extracts state, topology version and baseline entries
// from a --baseline report. Missing tokens yield nil fields.
func ParseClusterState(out string) ClusterState {
	var cs ClusterState
	if m := clusterStatePattern.FindStringSubmatch(out); m != nil {
		state := m[clusterStatePattern.SubexpIndex("state")]
		cs.State = &state
	}
	if m := topologyPattern.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseInt(m[topologyPattern.SubexpIndex("version")], 10, 64); err == nil {
			cs.TopologyVersion = &v
		}
	}

	cs.Baseline = []BaselineNode{}
	for _, m := range baselinePattern.FindAllStringSubmatch(out, -1) {
		node := BaselineNode{
			ConsistentID: m[baselinePattern.SubexpIndex("consistent_id")],
			State:        m[baselinePattern.SubexpIndex("state")],
		}
		if addr := m[baselinePattern.SubexpIndex("address")]; addr != "" {
			node.Address = &addr
		}
		if raw := m[baselinePattern.SubexpIndex("order")]; raw != "" {
			if order, err := strconv.ParseInt(raw, 10, 64); err == nil {
				node.Order = &order
			}
		}
		cs.Baseline = append(cs.Baseline, node)
	}
	return cs
}

// ParseTxList returns one TxInfo per well-formed "Tx: [...]" record in
// source order. No match yields an empty slice. A start time that does not
// parse leaves StartTime zero.
func ParseTxList(out string) []TxInfo {
	matches := txPattern.FindAllStringSubmatch(out, -1)
	txs := make([]TxInfo, 0, len(matches))
	for _, m := range matches {
		g := groups(txPattern, m)
		start, err := time.Parse(StartTimeLayout, g["start_time"])
		if err != nil {
			log.Debug().Err(err).Str("xid", g["xid"]).Msg("control.ParseTxList bad start time")
			start = time.Time{}
		}
		txs = append(txs, TxInfo{
			XID:         g["xid"],
			NearXID:     g["near_xid"],
			Label:       g["label"],
			State:       g["state"],
			StartTime:   start,
			DurationMs:  atoi64(g["duration"]),
			Isolation:   g["isolation"],
			Concurrency: g["concurrency"],
			TopologyVersion: TopologyVersion{
				Major: atoi64(g["top_ver"]),
				Minor: atoi64(g["minor_top_ver"]),
			},
			TimeoutMs:   atoi64(g["timeout"]),
			SizeBytes:   atoi64(g["size"]),
			DHTNodes:    ParseList(g["dht_nodes"]),
			ParentNodes: ParseList(g["parent_nodes"]),
		})
	}
	return txs
}

// ParseTxInfo parses a --tx --info report; nil when the report does not match.
func ParseTxInfo(out string) *TxVerboseInfo {
	m := txInfoPattern.FindStringSubmatch(out)
	if m == nil {
		return nil
	}
	g := groups(txInfoPattern, m)
	return &TxVerboseInfo{
		XID:         g["xid"],
		XIDFull:     g["xid_full"],
		Label:       g["label"],
		Isolation:   g["isolation"],
		Concurrency: g["concurrency"],
		TimeoutMs:   atoi64(g["timeout"]),
		TopologyVersion: TopologyVersion{
			Major: atoi64(g["top_ver"]),
			Minor: atoi64(g["minor_top_ver"]),
		},
		InitiatorID:           g["initiator_id"],
		InitiatorConsistentID: g["initiator_consistent_id"],
		Caches:                ParseMap(g["caches"]),
		CacheGroups:           ParseMap(g["cache_groups"]),
		States:                ParseList(g["states"]),
	}
}

// ParseMap parses a "k1=v1, k2=v2" run. A token without '=' maps to an empty
// value.
func ParseMap(raw string) Pairs {
	out := Pairs{}
	for _, token := range ParseList(raw) {
		key, value, _ := strings.Cut(token, "=")
		out = append(out, KeyValue{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return out
}

// ParseList parses a "a, b, c" run. Blank input yields an empty slice.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// ParseIdleVerifyDumpPath returns the dump file path reported by
// idle_verify --dump.
func ParseIdleVerifyDumpPath(out string) (string, bool) {
	if !strings.Contains(out, dumpDonePhrase) {
		return "", false
	}
	m := dumpPathPattern.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func IdleVerifyClean(out string) bool {
	return strings.Contains(out, idleVerifyCleanPhrase)
}

func IndexesClean(out string) bool {
	return strings.Contains(out, indexesCleanPhrase)
}

func groups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out
}

// atoi64 is only applied to \d+ groups.
func atoi64(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}
