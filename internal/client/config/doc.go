// Package config loads runtime configuration for the technician console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the sync backend
//	-d string   path to the local SQLite database file
//	-i int      connectivity probe interval (seconds)
//	-s int      periodic sync interval while online (seconds)
//	-b int      mutations per push batch
//	-m int      transient upload failures before a mutation is parked
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "15s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://api.fieldops.example",
//	  "database_path": "techsync.db",
//	  "online_check_interval": "15s",
//	  "sync_interval": "3m",
//	  "batch_size": 50,
//	  "max_attempts": 5,
//	  "http_timeout": "30s"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
