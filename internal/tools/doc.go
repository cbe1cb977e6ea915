// Package tools provides local command execution shared by the harness
// packages.
package tools
