// Package app is the composition root of the explorer.
//
// # Overview
//
// Run loads configuration, builds a Context holding every long-lived
// component, starts background revalidation and hands control to the
// terminal UI until the user quits or the process is signalled.
//
// # Initialization
//
//  1. Load .env, the TOML config file and EXPLORER_* overrides
//  2. Build the zap logger (file output, the terminal belongs to the UI)
//  3. Open the storage backend: memory, sqlite or redis
//  4. Build the API client and the two query caches (lists, records)
//  5. Load favourites and the theme preference from storage
//  6. Wire the list sync to an in-process history
//  7. Start the metrics server when metrics_addr is set
//
// # Components
//
//   - app.go: Context, New, Start, Close and Run
//   - storage.go: backend selection
//   - poller.go: periodic eviction and revalidation of the caches
//
// # Shutdown
//
// Close stops the revalidator first, then the sync, favourites watch and
// caches, the metrics server and finally the storage backend. It tolerates a
// partially built Context so New can clean up after a failed step.
package app
