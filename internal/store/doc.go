// Package store persists glucose records exactly once per identity.
//
// Backends:
//   - Postgres: pgxpool, unique (ts, source_sensor) index, ON CONFLICT DO NOTHING
//   - SQLite: single writer connection, WAL mode, same schema
//   - Memory: mutex-serialized transactions for tests and local runs
//
// Records are append-only: this package never updates or deletes a row.
package store
