package config

import (
	"path/filepath"
	"strconv"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/remote"
)

func Nodes(entries []NodeConfig) []remote.Node {
	nodes := make([]remote.Node, 0, len(entries))
	for _, entry := range entries {
		node := remote.Node{Name: entry.Name, Address: entry.Address}
		if entry.Port > 0 {
			node.Port = strconv.Itoa(entry.Port)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func Shell(cfg SSHConfig) remote.Shell {
	if cfg.Local {
		return remote.LocalShell{}
	}
	return remote.SSHShell{
		User:                        cfg.User,
		KeyPath:                     cfg.KeyPath,
		KnownHostsPath:              cfg.KnownHostsPath,
		InsecureSkipHostKeyChecking: cfg.Insecure,
		Timeout:                     cfg.Timeout,
	}
}

// BuildCluster loads the globals file, if any, under the inline [globals]
// table and assembles the cluster. A relative globals_file resolves against
// baseDir.
func BuildCluster(cfg Config, baseDir string) (*remote.Cluster, error) {
	globals := map[string]any{}
	if cfg.GlobalsFile != "" {
		path := cfg.GlobalsFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		loaded, err := LoadGlobals(path)
		if err != nil {
			return nil, err
		}
		globals = loaded
	}
	globals = MergeGlobals(globals, cfg.Globals)

	return remote.NewCluster(remote.ClusterConfig{
		Name:           cfg.Name,
		Home:           cfg.IgniteHome,
		CertificateDir: cfg.CertificateDir,
		Env:            cfg.Env,
		Probe:          cfg.Probe,
		Nodes:          Nodes(cfg.Nodes),
		Globals:        globals,
		Shell:          Shell(cfg.SSH),
	}), nil
}

func AdminOptions(cfg AdminConfig) control.Options {
	return control.Options{
		Login:              cfg.Login,
		Password:           cfg.Password,
		KeyStoreJKS:        cfg.KeyStoreJKS,
		KeyStorePath:       cfg.KeyStorePath,
		KeyStorePassword:   cfg.KeyStorePassword,
		TrustStoreJKS:      cfg.TrustStoreJKS,
		TrustStorePath:     cfg.TrustStorePath,
		TrustStorePassword: cfg.TrustStorePassword,
	}
}
