// Package device holds the registry of cuckoo devices: the remote clients
// that fetch and play scheduled sound files.
package device
