package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/cgm-ingest/internal/model"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores records in PostgreSQL through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres wraps an open pool. The Postgres store owns the pool from then on.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RunInTx runs fn in a read committed transaction. The unique identity
// constraint makes concurrent inserts of one identity resolve to a single winner.
func (p *Postgres) RunInTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// No-op after a successful commit
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			p.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the record stored under id.
func (p *Postgres) Get(ctx context.Context, id model.Identity) (model.GlucoseRecord, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, ts, value, raw, noise, trend_arrow, source_sensor
		FROM glucose_values
		WHERE ts = $1 AND source_sensor = $2
	`, id.Timestamp, string(id.SourceSensor))

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GlucoseRecord{}, false, nil
	}
	if err != nil {
		return model.GlucoseRecord{}, false, err
	}
	return rec, true, nil
}

// Count returns the number of stored records.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM glucose_values`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping verifies the connection is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exists(ctx context.Context, id model.Identity) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM glucose_values WHERE ts = $1 AND source_sensor = $2)
	`, id.Timestamp, string(id.SourceSensor)).Scan(&exists)
	return exists, err
}

func (t *pgTx) Insert(ctx context.Context, rec model.GlucoseRecord) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO glucose_values (id, ts, value, raw, noise, trend_arrow, source_sensor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ts, source_sensor) DO NOTHING
	`, rec.ID, rec.Timestamp, rec.Value, rec.Raw, rec.Noise, rec.TrendArrow.String(), string(rec.SourceSensor))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// rowScanner is satisfied by pgx.Row and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.GlucoseRecord, error) {
	var (
		rec    model.GlucoseRecord
		trend  string
		sensor string
	)
	if err := row.Scan(&rec.ID, &rec.Timestamp, &rec.Value, &rec.Raw, &rec.Noise, &trend, &sensor); err != nil {
		return model.GlucoseRecord{}, err
	}
	rec.TrendArrow = model.ParseTrendArrow(trend)
	rec.SourceSensor = model.SourceSensor(sensor)
	return rec, nil
}
