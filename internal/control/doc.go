// Package control drives the cluster control utility (control.sh).
//
// Ownership boundary:
// - admin credential and TLS material resolution
// - command line construction per administrative operation
// - target node selection, execution and exit code resolution
// - parsing of the utility's textual reports into typed records
//
// Every Utility call is synchronous: build, run on one randomly chosen alive
// node, parse, return. Nothing is retried here.
package control
