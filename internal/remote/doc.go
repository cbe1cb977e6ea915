// Package remote owns the execution channel to cluster hosts.
//
// Ownership boundary:
// - node identity and addressing
// - shell execution over SSH or the local host
// - cluster context (globals, certificate dir, script prefixing, liveness)
package remote
