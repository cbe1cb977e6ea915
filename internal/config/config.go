package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid config")

const (
	DefaultName       = "gridctl"
	DefaultIgniteHome = "/opt/ignite"
	DefaultHTTPAddr   = ":9300"
	DefaultSSHTimeout = 10 * time.Second
)

// Config is the harness description of one provisioned cluster.
type Config struct {
	Name           string
	IgniteHome     string
	CertificateDir string
	GlobalsFile    string
	Probe          string
	HTTPAddr       string
	HTTPToken      string
	CorsOrigins    []string
	Env            map[string]string
	SSH            SSHConfig
	Admin          AdminConfig
	Globals        map[string]any
	Nodes          []NodeConfig
}

type SSHConfig struct {
	User           string
	KeyPath        string
	KnownHostsPath string
	Insecure       bool
	Timeout        time.Duration
	// Local runs every command through the local shell instead of SSH.
	Local bool
}

// AdminConfig holds explicit admin access used when the globals leave
// authentication or TLS off.
type AdminConfig struct {
	Login              string
	Password           string
	KeyStoreJKS        string
	KeyStorePath       string
	KeyStorePassword   string
	TrustStoreJKS      string
	TrustStorePath     string
	TrustStorePassword string
}

type NodeConfig struct {
	Name    string
	Address string
	Port    int
}

type fileConfig struct {
	Name           string            `toml:"name"`
	IgniteHome     string            `toml:"ignite_home"`
	CertificateDir string            `toml:"certificate_dir"`
	GlobalsFile    string            `toml:"globals_file,omitempty"`
	Probe          string            `toml:"probe,omitempty"`
	HTTPAddr       string            `toml:"http_addr"`
	HTTPToken      string            `toml:"http_token,omitempty"`
	CorsOrigins    []string          `toml:"cors_origins"`
	Env            map[string]string `toml:"env,omitempty"`
	SSH            sshFile           `toml:"ssh"`
	Admin          adminFile         `toml:"admin,omitempty"`
	Globals        map[string]any    `toml:"globals,omitempty"`
	Nodes          []nodeFile        `toml:"nodes"`
}

type sshFile struct {
	User           string `toml:"user"`
	KeyPath        string `toml:"key_path"`
	KnownHostsPath string `toml:"known_hosts_path,omitempty"`
	Insecure       bool   `toml:"insecure"`
	Timeout        string `toml:"timeout"`
	Local          bool   `toml:"local"`
}

type adminFile struct {
	Login              string `toml:"login,omitempty"`
	Password           string `toml:"password,omitempty"`
	KeyStoreJKS        string `toml:"key_store_jks,omitempty"`
	KeyStorePath       string `toml:"key_store_path,omitempty"`
	KeyStorePassword   string `toml:"key_store_password,omitempty"`
	TrustStoreJKS      string `toml:"trust_store_jks,omitempty"`
	TrustStorePath     string `toml:"trust_store_path,omitempty"`
	TrustStorePassword string `toml:"trust_store_password,omitempty"`
}

type nodeFile struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	Port    int    `toml:"port,omitempty"`
}

func Default() Config {
	return Config{
		Name:       DefaultName,
		IgniteHome: DefaultIgniteHome,
		HTTPAddr:   DefaultHTTPAddr,
		Env:        map[string]string{},
		SSH:        SSHConfig{Timeout: DefaultSSHTimeout},
		Globals:    map[string]any{},
	}
}

// Load decodes a harness TOML file over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("ignite_home") {
		cfg.IgniteHome = strings.TrimSpace(raw.IgniteHome)
	}
	if meta.IsDefined("certificate_dir") {
		cfg.CertificateDir = strings.TrimSpace(raw.CertificateDir)
	}
	if meta.IsDefined("globals_file") {
		cfg.GlobalsFile = strings.TrimSpace(raw.GlobalsFile)
	}
	if meta.IsDefined("probe") {
		cfg.Probe = strings.TrimSpace(raw.Probe)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("http_token") {
		cfg.HTTPToken = strings.TrimSpace(raw.HTTPToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	for k, v := range raw.Env {
		cfg.Env[k] = v
	}

	if meta.IsDefined("ssh", "user") {
		cfg.SSH.User = strings.TrimSpace(raw.SSH.User)
	}
	if meta.IsDefined("ssh", "key_path") {
		cfg.SSH.KeyPath = strings.TrimSpace(raw.SSH.KeyPath)
	}
	if meta.IsDefined("ssh", "known_hosts_path") {
		cfg.SSH.KnownHostsPath = strings.TrimSpace(raw.SSH.KnownHostsPath)
	}
	if meta.IsDefined("ssh", "insecure") {
		cfg.SSH.Insecure = raw.SSH.Insecure
	}
	if meta.IsDefined("ssh", "local") {
		cfg.SSH.Local = raw.SSH.Local
	}
	if meta.IsDefined("ssh", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SSH.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse ssh.timeout: %w", err)
		}
		cfg.SSH.Timeout = d
	}

	cfg.Admin = AdminConfig(raw.Admin)
	if raw.Globals != nil {
		cfg.Globals = raw.Globals
	}
	for _, n := range raw.Nodes {
		cfg.Nodes = append(cfg.Nodes, NodeConfig{
			Name:    strings.TrimSpace(n.Name),
			Address: strings.TrimSpace(n.Address),
			Port:    n.Port,
		})
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.IgniteHome) == "" {
		return fmt.Errorf("%w: missing ignite_home", ErrInvalidConfig)
	}
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("%w: at least one [[nodes]] entry is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if err := ValidateNode(n); err != nil {
			return fmt.Errorf("%w: nodes[%d]: %v", ErrInvalidConfig, i, err)
		}
		if _, dup := seen[n.Name]; dup {
			return fmt.Errorf("%w: nodes[%d]: duplicate name %q", ErrInvalidConfig, i, n.Name)
		}
		seen[n.Name] = struct{}{}
	}
	if !cfg.SSH.Local {
		if strings.TrimSpace(cfg.SSH.User) == "" {
			return fmt.Errorf("%w: ssh.user is required unless ssh.local is set", ErrInvalidConfig)
		}
		if strings.TrimSpace(cfg.SSH.KeyPath) == "" {
			return fmt.Errorf("%w: ssh.key_path is required unless ssh.local is set", ErrInvalidConfig)
		}
	}
	if cfg.SSH.Timeout < 0 {
		return fmt.Errorf("%w: ssh.timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

func ValidateNode(n NodeConfig) error {
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	if n.Address == "" {
		return fmt.Errorf("address is required")
	}
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("port %d out of range", n.Port)
	}
	return nil
}

// LoadGlobals decodes a YAML or JSON globals document into a nested map.
func LoadGlobals(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("globals load failed (%s): %w", path, err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("globals parse failed (%s): %w", path, err)
	}
	return out, nil
}

// MergeGlobals overlays src onto dst recursively; scalar values in src win.
func MergeGlobals(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcOK := v.(map[string]any)
		dstMap, dstOK := out[k].(map[string]any)
		if srcOK && dstOK {
			out[k] = MergeGlobals(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
