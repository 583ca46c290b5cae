// Package sqlite implements storage.StructuredStore and storage.RunLog on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Every snapshot gets its own document table; the fixed
// schema (schema_migrations, build_runs) is managed through versioned
// migrations stored in the migrations/ directory.
//
// # Ids
//
// SQLite integers are signed, so document ids are stored with their top bit
// flipped. This keeps ORDER BY id consistent with ascending core.ID order.
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite locking in WAL
// mode with a busy timeout.
package sqlite
