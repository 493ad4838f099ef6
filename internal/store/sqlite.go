package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rickgao/cgm-ingest/internal/model"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite stores records in a local SQLite database.
// A single connection serializes writers, so transactions never interleave.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// It is idempotent.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates the schema if it does not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in a transaction on the single connection.
func (s *SQLite) RunInTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the record stored under id.
func (s *SQLite) Get(ctx context.Context, id model.Identity) (model.GlucoseRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, value, raw, noise, trend_arrow, source_sensor
		FROM glucose_values
		WHERE ts = ? AND source_sensor = ?
	`, id.Timestamp, string(id.SourceSensor))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GlucoseRecord{}, false, nil
	}
	if err != nil {
		return model.GlucoseRecord{}, false, err
	}
	return rec, true, nil
}

// Count returns the number of stored records.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM glucose_values`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Exists(ctx context.Context, id model.Identity) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM glucose_values WHERE ts = ? AND source_sensor = ?)
	`, id.Timestamp, string(id.SourceSensor)).Scan(&exists)
	return exists, err
}

func (t *sqliteTx) Insert(ctx context.Context, rec model.GlucoseRecord) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO glucose_values (id, ts, value, raw, noise, trend_arrow, source_sensor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts, source_sensor) DO NOTHING
	`, rec.ID.String(), rec.Timestamp, rec.Value, rec.Raw, rec.Noise, rec.TrendArrow.String(), string(rec.SourceSensor))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
