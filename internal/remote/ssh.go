package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHShell executes commands on nodes over SSH with public key auth.
type SSHShell struct {
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

func (s SSHShell) Exec(ctx context.Context, node Node, cmd string) (int, string, error) {
	client, err := s.dial(ctx, node)
	if err != nil {
		return -1, "", fmt.Errorf("remote: dial %s: %w", node.Account(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return -1, "", fmt.Errorf("remote: session %s: %w", node.Account(), err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err == nil {
		return 0, string(out), nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		log.Debug().Str("node", node.Name).Int("status", exitErr.ExitStatus()).Msg("remote.SSHShell.Exec non-zero exit")
		return exitErr.ExitStatus(), string(out), nil
	}
	return -1, string(out), fmt.Errorf("remote: exec on %s: %w", node.Account(), err)
}

func (s SSHShell) dial(ctx context.Context, node Node) (*ssh.Client, error) {
	address, err := node.SSHAddress()
	if err != nil {
		return nil, err
	}

	config, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (s SSHShell) clientConfig() (*ssh.ClientConfig, error) {
	if s.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	signer, err := s.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if s.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := s.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.Timeout,
	}, nil
}

func (s SSHShell) signer() (ssh.Signer, error) {
	if s.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(expandHome(s.KeyPath))
	if err != nil {
		return nil, err
	}

	if len(s.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, s.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (s SSHShell) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(s.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(expandHome(path))
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
