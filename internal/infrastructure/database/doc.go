// Package database manages the SQLite connection and schema migrations for
// Cuckoo Core.
//
// The database is the sole shared mutable resource in the system: every
// repository operates over the single *sql.DB it exposes, and all bookkeeping
// updates (grant changes, schedule firings) run as transactions or atomic
// conditional updates against it.
package database
