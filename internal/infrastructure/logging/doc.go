// Package logging provides structured logging for Cuckoo Core.
//
// It wraps log/slog with configuration-driven format and level selection
// plus default service fields, so every component logs consistently.
package logging
