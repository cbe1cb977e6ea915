package control

import (
	"strings"
	"testing"
	"time"
)

func TestBaselineCommands(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{cmd: BaselineQuery(), want: "--baseline"},
		{cmd: BaselineVersion(3), want: "--baseline version 3 --yes"},
		{cmd: BaselineSet([]string{"10.0.0.1", "10.0.0.2"}), want: "--baseline set 10.0.0.1,10.0.0.2 --yes"},
		{cmd: BaselineAdd([]string{"10.0.0.3"}), want: "--baseline add 10.0.0.3 --yes"},
		{cmd: BaselineRemove([]string{"10.0.0.3", "10.0.0.4"}), want: "--baseline remove 10.0.0.3,10.0.0.4 --yes"},
		{cmd: AutoAdjustDisable(), want: "--baseline auto_adjust disable --yes"},
		{cmd: AutoAdjustEnable(nil), want: "--baseline auto_adjust enable --yes"},
		{cmd: AutoAdjustEnable(Ptr(30 * time.Second)), want: "--baseline auto_adjust enable timeout 30000 --yes"},
		{cmd: AutoAdjustEnable(Ptr(time.Duration(0))), want: "--baseline auto_adjust enable --yes"},
		{cmd: AutoAdjustEnable(Ptr(500 * time.Microsecond)), want: "--baseline auto_adjust enable --yes"},
		{cmd: AutoAdjustEnable(Ptr(1500 * time.Microsecond)), want: "--baseline auto_adjust enable timeout 1 --yes"},
		{cmd: Activate(), want: "--activate --yes"},
		{cmd: Deactivate(), want: "--deactivate --yes"},
		{cmd: TxInfoQuery("abc"), want: "--tx --info abc"},
		{cmd: IdleVerify(), want: "--cache idle_verify"},
		{cmd: IdleVerifyDump(), want: "--cache idle_verify --dump"},
		{cmd: ValidateIndexes(), want: "--cache validate_indexes"},
		{cmd: SnapshotCreate("snap1"), want: "--snapshot create snap1"},
	}
	for _, tc := range cases {
		if got := tc.cmd.String(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.cmd.Op(), got, tc.want)
		}
	}
}

func TestTxCommandFlagsOnlyWhenSupplied(t *testing.T) {
	if got := Tx(TxFilter{}).String(); got != "--tx" {
		t.Fatalf("bare tx: %q", got)
	}

	full := TxFilter{
		XID:          "xid1",
		Clients:      true,
		Servers:      true,
		MinDuration:  Ptr(int64(0)),
		MinSize:      Ptr(int64(10)),
		LabelPattern: "tx.*",
		Nodes:        []string{"n1", "n2"},
		Limit:        Ptr(5),
		Order:        TxOrderSize,
	}
	want := "--tx --xid xid1 --clients --servers --min-duration 0 --min-size 10 --label tx.* --nodes n1,n2 --limit 5 --order SIZE"
	if got := Tx(full).String(); got != want {
		t.Fatalf("full tx:\n got %q\nwant %q", got, want)
	}
	if got := TxKill(TxFilter{XID: "xid1"}).String(); got != "--tx --xid xid1 --kill --yes" {
		t.Fatalf("tx kill: %q", got)
	}
}

func TestComposeAppendsTLSAndAuthFlags(t *testing.T) {
	res := Resolution{
		Auth: AuthEnabled(Credentials{Login: "admin", Password: "s3cret"}),
		TLS: TLSEnabled(TLSMaterial{
			KeyStorePath: "/opt/certs/admin.jks", KeyStorePassword: "123456",
			TrustStorePath: "/opt/certs/truststore.jks", TrustStorePassword: "123456",
		}),
	}
	script := func(cmd string) string { return "/opt/ignite/bin/" + cmd }
	got := Compose(script, "10.0.0.1", Activate(), res)
	want := "/opt/ignite/bin/control.sh --host 10.0.0.1 --activate --yes" +
		" --keystore /opt/certs/admin.jks --keystore-password 123456" +
		" --truststore /opt/certs/truststore.jks --truststore-password 123456" +
		" --user admin --password s3cret"
	if got != want {
		t.Fatalf("compose:\n got %q\nwant %q", got, want)
	}
}

func TestComposeOmitsDisabledFlags(t *testing.T) {
	got := Compose(nil, "10.0.0.1", BaselineQuery(), Resolution{})
	if got != "control.sh --host 10.0.0.1 --baseline" {
		t.Fatalf("compose: %q", got)
	}
	for _, flag := range []string{"--keystore", "--truststore", "--user", "--password"} {
		if strings.Contains(got, flag) {
			t.Fatalf("unexpected %s in %q", flag, got)
		}
	}

	loginOnly := Compose(nil, "10.0.0.1", BaselineQuery(), Resolution{Auth: AuthEnabled(Credentials{Login: "admin"})})
	if loginOnly != "control.sh --host 10.0.0.1 --baseline --user admin" {
		t.Fatalf("login only: %q", loginOnly)
	}
}

func TestComposeQuotesUnsafeValues(t *testing.T) {
	got := Compose(nil, "10.0.0.1", Tx(TxFilter{LabelPattern: "my label"}), Resolution{
		Auth: AuthEnabled(Credentials{Login: "admin", Password: "pa ss'word"}),
	})
	if !strings.Contains(got, "--label 'my label'") {
		t.Fatalf("label not quoted: %q", got)
	}
	if !strings.Contains(got, `--password 'pa ss'"'"'word'`) {
		t.Fatalf("password not quoted: %q", got)
	}
}
