// Package database opens the configured glucose store.
//
// Drivers:
//   - postgres: shared pgx pool, schema applied on open
//   - sqlite: local file, one writer connection
//   - memory: process-local, for tests and dry runs
package database
