// Package database manages the SQLite connection and schema migrations.
//
// The event log and stay repositories sit on top of the *DB returned by
// Open. SQLite is opened with a single-writer connection pool, WAL mode
// (when configured) and foreign keys enabled. Schema migrations are
// embedded into the binary by the migrations package and applied on
// startup with Migrate.
package database
