// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure for talking to Redis compatible servers.
//
// The package is organized into several subpackages:
//
//   - kv: Raw commands, pipelines, transactions, pub/sub and key-value helpers (get, set, del, etc.)
//   - lock: Commands for locking operations (acquire, release)
//   - slot: Offline helpers for hash slots and key extraction
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Connection settings are read from flags, RKV_* environment variables and .env files.
// See rkv -help for a list of all commands.
package cmd
