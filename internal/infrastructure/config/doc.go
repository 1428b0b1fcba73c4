// Package config loads and validates Cuckoo Core configuration.
//
// Configuration is sourced from a YAML file, with defaults applied first and
// CUCKOO_* environment variables applied last. The loaded Config is immutable
// after startup; components receive the sections they need by value.
package config
