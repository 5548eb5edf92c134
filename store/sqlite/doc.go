// Package sqlite opens an embedded SQLite database and serves it through
// the Bun backend with the SQLite dialect. Suitable for single-node
// deployments, CLI tools and tests that should not need a database server.
//
// Unlike bunstore, the Store returned by Open owns its handle and closes it
// on Close:
//
//	store, err := sqlite.Open("file:jobrow.db")
//	if err != nil { ... }
//	defer store.Close()
//	store.Migrate(ctx)
//
// The mattn/go-sqlite3 driver requires cgo.
package sqlite
