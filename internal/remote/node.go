package remote

import (
	"fmt"
	"net"
	"strings"
)

// Node is one cluster host. Address is the externally routable address used
// both for SSH and for the control utility --host flag.
type Node struct {
	Name    string
	Address string
	Port    string
}

// Account identifies the node in errors and logs.
func (n Node) Account() string {
	if n.Name == "" || n.Name == n.Address {
		return n.Address
	}
	return fmt.Sprintf("%s@%s", n.Name, n.Address)
}

// SSHAddress returns host:port, defaulting to port 22.
func (n Node) SSHAddress() (string, error) {
	host := strings.TrimSpace(n.Address)
	if host == "" {
		return "", fmt.Errorf("remote: node %q has no address", n.Name)
	}

	if n.Port != "" {
		return net.JoinHostPort(host, n.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

// Addresses renders the externally routable address of every node in order.
func Addresses(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Address)
	}
	return out
}
