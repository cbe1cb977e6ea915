package control

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultLogin          = "ignite"
	DefaultPassword       = "ignite"
	DefaultStorePassword  = "123456"
	DefaultAdminKeyStore  = "admin.jks"
	DefaultTrustStore     = "truststore.jks"
	globalUseAuth         = "use_auth"
	globalUseSSL          = "use_ssl"
	globalAdmin           = "admin"
	adminCreds            = "creds"
	adminSSL              = "ssl"
	keyLogin              = "login"
	keyPassword           = "password"
	keyKeyStorePath       = "key_store_path"
	keyKeyStoreJKS        = "key_store_jks"
	keyKeyStorePassword   = "key_store_password"
	keyTrustStorePath     = "trust_store_path"
	keyTrustStoreJKS      = "trust_store_jks"
	keyTrustStorePassword = "trust_store_password"
)

// Globals is the cluster-wide nested configuration.
type Globals map[string]any

// Options are the explicit per-utility arguments. Empty means not supplied.
type Options struct {
	Login    string
	Password string

	KeyStoreJKS        string
	KeyStorePath       string
	KeyStorePassword   string
	TrustStoreJKS      string
	TrustStorePath     string
	TrustStorePassword string
}

type Credentials struct {
	Login    string
	Password string
}

type TLSMaterial struct {
	KeyStorePath       string
	KeyStorePassword   string
	TrustStorePath     string
	TrustStorePassword string
}

// AuthMode is either disabled (zero value) or enabled with complete
// credentials.
type AuthMode struct {
	enabled bool
	creds   Credentials
}

func AuthEnabled(c Credentials) AuthMode {
	return AuthMode{enabled: true, creds: c}
}

func (m AuthMode) Enabled() bool {
	return m.enabled
}

func (m AuthMode) Credentials() (Credentials, bool) {
	return m.creds, m.enabled
}

// TLSMode is either disabled (zero value) or enabled with complete material.
type TLSMode struct {
	enabled  bool
	material TLSMaterial
}

func TLSEnabled(m TLSMaterial) TLSMode {
	return TLSMode{enabled: true, material: m}
}

func (m TLSMode) Enabled() bool {
	return m.enabled
}

func (m TLSMode) Material() (TLSMaterial, bool) {
	return m.material, m.enabled
}

// Resolution is the effective auth and TLS setup, computed once.
type Resolution struct {
	Auth AuthMode
	TLS  TLSMode
}

// Resolve evaluates auth and TLS independently: enabled globals win, then
// explicit options, else the feature is disabled.
func Resolve(globals Globals, certDir string, opts Options) (Resolution, error) {
	auth, err := ResolveAuth(globals, opts)
	if err != nil {
		return Resolution{}, err
	}
	tls, err := ResolveTLS(globals, certDir, opts)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Auth: auth, TLS: tls}, nil
}

func ResolveAuth(globals Globals, opts Options) (AuthMode, error) {
	on, err := globalFlag(globals, globalUseAuth)
	if err != nil {
		return AuthMode{}, err
	}
	if on {
		section, path, err := adminSection(globals, adminCreds)
		if err != nil {
			return AuthMode{}, err
		}
		login, err := stringOr(section, path, keyLogin, DefaultLogin)
		if err != nil {
			return AuthMode{}, err
		}
		password, err := stringOr(section, path, keyPassword, DefaultPassword)
		if err != nil {
			return AuthMode{}, err
		}
		return AuthEnabled(Credentials{Login: login, Password: password}), nil
	}

	if opts.Login != "" {
		return AuthEnabled(Credentials{Login: opts.Login, Password: opts.Password}), nil
	}
	return AuthMode{}, nil
}

func ResolveTLS(globals Globals, certDir string, opts Options) (TLSMode, error) {
	on, err := globalFlag(globals, globalUseSSL)
	if err != nil {
		return TLSMode{}, err
	}
	if on {
		section, path, err := adminSection(globals, adminSSL)
		if err != nil {
			return TLSMode{}, err
		}
		var m TLSMaterial
		if m.KeyStorePath, err = storePath(section, path, certDir, keyKeyStorePath, keyKeyStoreJKS, DefaultAdminKeyStore); err != nil {
			return TLSMode{}, err
		}
		if m.KeyStorePassword, err = stringOr(section, path, keyKeyStorePassword, DefaultStorePassword); err != nil {
			return TLSMode{}, err
		}
		if m.TrustStorePath, err = storePath(section, path, certDir, keyTrustStorePath, keyTrustStoreJKS, DefaultTrustStore); err != nil {
			return TLSMode{}, err
		}
		if m.TrustStorePassword, err = stringOr(section, path, keyTrustStorePassword, DefaultStorePassword); err != nil {
			return TLSMode{}, err
		}
		return TLSEnabled(m), nil
	}

	if opts.KeyStoreJKS == "" && opts.KeyStorePath == "" {
		return TLSMode{}, nil
	}
	return TLSEnabled(TLSMaterial{
		KeyStorePath:       pathOr(opts.KeyStorePath, certDir, opts.KeyStoreJKS, DefaultAdminKeyStore),
		KeyStorePassword:   valueOr(opts.KeyStorePassword, DefaultStorePassword),
		TrustStorePath:     pathOr(opts.TrustStorePath, certDir, opts.TrustStoreJKS, DefaultTrustStore),
		TrustStorePassword: valueOr(opts.TrustStorePassword, DefaultStorePassword),
	}), nil
}

func globalFlag(globals Globals, key string) (bool, error) {
	raw, ok := globals[key]
	if !ok || raw == nil {
		return false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, invalidGlobals(key, fmt.Sprintf("not a boolean: %q", v))
		}
		return b, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case uint64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, invalidGlobals(key, fmt.Sprintf("not a boolean: %T", raw))
	}
}

// adminSection returns globals.admin, indexed one level into sub when that
// key is present.
func adminSection(globals Globals, sub string) (map[string]any, string, error) {
	admin, err := asMap(globals[globalAdmin], globalAdmin)
	if err != nil {
		return nil, "", err
	}
	raw, ok := admin[sub]
	if !ok {
		return admin, globalAdmin, nil
	}
	path := globalAdmin + "." + sub
	nested, err := asMap(raw, path)
	if err != nil {
		return nil, "", err
	}
	return nested, path, nil
}

func asMap(raw any, path string) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case Globals:
		return v, nil
	default:
		return nil, invalidGlobals(path, fmt.Sprintf("expected a map, got %T", raw))
	}
}

func stringOr(section map[string]any, path, key, fallback string) (string, error) {
	raw, ok := section[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case int, int64, float64:
		return fmt.Sprint(v), nil
	default:
		return "", invalidGlobals(path+"."+key, fmt.Sprintf("expected a string, got %T", raw))
	}
}

func storePath(section map[string]any, path, certDir, pathKey, jksKey, fallbackJKS string) (string, error) {
	full, err := stringOr(section, path, pathKey, "")
	if err != nil {
		return "", err
	}
	if full != "" {
		return full, nil
	}
	name, err := stringOr(section, path, jksKey, fallbackJKS)
	if err != nil {
		return "", err
	}
	return jksPath(certDir, name), nil
}

func pathOr(full, certDir, name, fallbackJKS string) string {
	if full != "" {
		return full
	}
	return jksPath(certDir, valueOr(name, fallbackJKS))
}

func jksPath(certDir, name string) string {
	return filepath.Join(certDir, name)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
