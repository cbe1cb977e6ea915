package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	KindHarness = "harness"
	KindGlobals = "globals"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHarness:
		data, err := toml.Marshal(harnessSample())
		if err != nil {
			return "", fmt.Errorf("render harness template: %w", err)
		}
		return string(data), nil
	case KindGlobals:
		data, err := yaml.Marshal(globalsSample())
		if err != nil {
			return "", fmt.Errorf("render globals template: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// ValidateFile loads path as kind and reports the first problem found.
func ValidateFile(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHarness:
		_, err := Load(path)
		return err
	case KindGlobals:
		_, err := LoadGlobals(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

func harnessSample() fileConfig {
	return fileConfig{
		Name:           DefaultName,
		IgniteHome:     DefaultIgniteHome,
		CertificateDir: "/opt/ignite/certs",
		GlobalsFile:    "globals.yaml",
		HTTPAddr:       DefaultHTTPAddr,
		CorsOrigins:    []string{"http://localhost:3000"},
		Env:            map[string]string{"JVM_OPTS": "-Xmx1g"},
		SSH: sshFile{
			User:    "ignite",
			KeyPath: "~/.ssh/id_ed25519",
			Timeout: DefaultSSHTimeout.String(),
		},
		Nodes: []nodeFile{
			{Name: "ignite-1", Address: "10.0.0.1"},
			{Name: "ignite-2", Address: "10.0.0.2"},
		},
	}
}

func globalsSample() map[string]any {
	return map[string]any{
		"use_auth": false,
		"use_ssl":  false,
		"admin": map[string]any{
			"creds": map[string]any{
				"login":    "ignite",
				"password": "ignite",
			},
			"ssl": map[string]any{
				"key_store_jks":        "admin.jks",
				"key_store_password":   "123456",
				"trust_store_jks":      "truststore.jks",
				"trust_store_password": "123456",
			},
		},
	}
}
