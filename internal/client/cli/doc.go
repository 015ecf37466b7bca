// Package cli provides the interactive technician console.
//
// It wires configuration, the local store, the sync engine, and an
// interactive REPL that keeps working with or without connectivity. Typical
// flow: prompt for credentials, start the background sync scheduler, and
// execute user commands against the local cache.
//
// Key features:
//   - Login (token persisted locally, commands work offline afterwards)
//   - List / Show cached work orders
//   - Start / Complete work orders, record expenses, attach photos
//   - Inspect pending and rejected changes; retry or discard rejections
//   - Manual sync on demand; automatic sync on reconnect
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL, and the services package for details.
package cli
