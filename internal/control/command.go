package control

import (
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
)

const BaseCommand = "control.sh"

const confirmFlag = "--yes"

// Command is one logical control utility invocation, without host, TLS or
// auth flags.
type Command struct {
	op   string
	args []string
}

func newCommand(op string, args ...string) Command {
	return Command{op: op, args: args}
}

// Op is a short stable label for metrics and logs.
func (c Command) Op() string {
	return c.op
}

func (c Command) Args() []string {
	return append([]string(nil), c.args...)
}

func (c Command) String() string {
	return strings.Join(c.args, " ")
}

func BaselineQuery() Command {
	return newCommand("baseline", "--baseline")
}

func BaselineVersion(version int64) Command {
	return newCommand("baseline_version", "--baseline", "version", strconv.FormatInt(version, 10), confirmFlag)
}

func BaselineSet(addrs []string) Command {
	return newCommand("baseline_set", "--baseline", "set", strings.Join(addrs, ","), confirmFlag)
}

func BaselineAdd(addrs []string) Command {
	return newCommand("baseline_add", "--baseline", "add", strings.Join(addrs, ","), confirmFlag)
}

func BaselineRemove(addrs []string) Command {
	return newCommand("baseline_remove", "--baseline", "remove", strings.Join(addrs, ","), confirmFlag)
}

// AutoAdjustEnable enables baseline auto adjust. A nil timeout, or one that
// rounds down to zero milliseconds, leaves the server default in place.
func AutoAdjustEnable(timeout *time.Duration) Command {
	args := []string{"--baseline", "auto_adjust", "enable"}
	if timeout != nil && timeout.Milliseconds() > 0 {
		args = append(args, "timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	}
	return newCommand("auto_adjust_enable", append(args, confirmFlag)...)
}

func AutoAdjustDisable() Command {
	return newCommand("auto_adjust_disable", "--baseline", "auto_adjust", "disable", confirmFlag)
}

func Activate() Command {
	return newCommand("activate", "--activate", confirmFlag)
}

func Deactivate() Command {
	return newCommand("deactivate", "--deactivate", confirmFlag)
}

type TxOrder string

const (
	TxOrderDuration  TxOrder = "DURATION"
	TxOrderSize      TxOrder = "SIZE"
	TxOrderStartTime TxOrder = "START_TIME"
)

// TxFilter narrows transaction listing and kill. Zero fields are omitted from
// the command line.
type TxFilter struct {
	XID          string
	Clients      bool
	Servers      bool
	MinDuration  *int64
	MinSize      *int64
	LabelPattern string
	Nodes        []string
	Limit        *int
	Order        TxOrder
}

func Tx(f TxFilter) Command {
	return newCommand("tx", txArgs(f)...)
}

func TxKill(f TxFilter) Command {
	return newCommand("tx_kill", append(txArgs(f), "--kill", confirmFlag)...)
}

func txArgs(f TxFilter) []string {
	args := []string{"--tx"}
	if f.XID != "" {
		args = append(args, "--xid", f.XID)
	}
	if f.Clients {
		args = append(args, "--clients")
	}
	if f.Servers {
		args = append(args, "--servers")
	}
	if f.MinDuration != nil {
		args = append(args, "--min-duration", strconv.FormatInt(*f.MinDuration, 10))
	}
	if f.MinSize != nil {
		args = append(args, "--min-size", strconv.FormatInt(*f.MinSize, 10))
	}
	if f.LabelPattern != "" {
		args = append(args, "--label", f.LabelPattern)
	}
	if len(f.Nodes) > 0 {
		args = append(args, "--nodes", strings.Join(f.Nodes, ","))
	}
	if f.Limit != nil {
		args = append(args, "--limit", strconv.Itoa(*f.Limit))
	}
	if f.Order != "" {
		args = append(args, "--order", string(f.Order))
	}
	return args
}

func TxInfoQuery(xid string) Command {
	return newCommand("tx_info", "--tx", "--info", xid)
}

func IdleVerify() Command {
	return newCommand("idle_verify", "--cache", "idle_verify")
}

func IdleVerifyDump() Command {
	return newCommand("idle_verify_dump", "--cache", "idle_verify", "--dump")
}

func ValidateIndexes() Command {
	return newCommand("validate_indexes", "--cache", "validate_indexes")
}

func SnapshotCreate(name string) Command {
	return newCommand("snapshot_create", "--snapshot", "create", name)
}

// Compose renders the full control utility line for host, with TLS and auth
// flags appended when enabled, and hands it to script for environment
// prefixing.
func Compose(script func(string) string, host string, cmd Command, res Resolution) string {
	parts := []string{BaseCommand, "--host", host}
	parts = append(parts, cmd.args...)
	if m, ok := res.TLS.Material(); ok {
		parts = append(parts,
			"--keystore", m.KeyStorePath,
			"--keystore-password", m.KeyStorePassword,
			"--truststore", m.TrustStorePath,
			"--truststore-password", m.TrustStorePassword,
		)
	}
	if c, ok := res.Auth.Credentials(); ok {
		parts = append(parts, "--user", c.Login)
		if c.Password != "" {
			parts = append(parts, "--password", c.Password)
		}
	}

	line := shellescape.QuoteCommand(parts)
	if script == nil {
		return line
	}
	return script(line)
}

// Ptr returns a pointer to v, for optional filter fields.
func Ptr[T any](v T) *T {
	return &v
}
