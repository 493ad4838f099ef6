package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// ErrStorage matches every *StorageError via errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports a transaction that did not commit.
// No record of the batch is visible when it is returned.
type StorageError struct {
	Records []model.GlucoseRecord // The batch that was being stored
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %d record(s): %v", len(e.Records), e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Tx is the view of the store inside one transaction.
type Tx interface {
	// Exists reports whether a record with the identity is committed.
	Exists(ctx context.Context, id model.Identity) (bool, error)

	// Insert stores rec. inserted is false when the identity was taken,
	// either by a concurrent transaction or earlier in this one.
	Insert(ctx context.Context, rec model.GlucoseRecord) (inserted bool, err error)
}

// Backend runs functions atomically against persistent storage.
type Backend interface {
	// RunInTx commits if fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(Tx) error) error
}

// Store is a Backend with read helpers and a lifecycle.
type Store interface {
	Backend

	// Get returns the record stored under id.
	Get(ctx context.Context, id model.Identity) (model.GlucoseRecord, bool, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Upsert inserts every candidate whose identity is not yet stored and
// returns the newly inserted ones. Existing identities are skipped without
// error. The batch commits as a whole; on failure a *StorageError is
// returned and nothing is persisted.
func Upsert(ctx context.Context, b Backend, candidates []model.GlucoseRecord) (model.IngestionResult, error) {
	if len(candidates) == 0 {
		return model.IngestionResult{}, nil
	}

	var result model.IngestionResult
	err := b.RunInTx(ctx, func(tx Tx) error {
		result = model.IngestionResult{}

		for _, c := range candidates {
			exists, err := tx.Exists(ctx, c.Identity())
			if err != nil {
				return fmt.Errorf("check %s: %w", c.Identity(), err)
			}
			if exists {
				result.Skipped++
				continue
			}

			rec := c
			if rec.ID == uuid.Nil {
				rec.ID = uuid.New()
			}

			inserted, err := tx.Insert(ctx, rec)
			if err != nil {
				return fmt.Errorf("insert %s: %w", c.Identity(), err)
			}
			if !inserted {
				result.Skipped++
				continue
			}
			result.Inserted = append(result.Inserted, rec)
		}
		return nil
	})
	if err != nil {
		return model.IngestionResult{}, &StorageError{Records: candidates, Err: err}
	}

	return result, nil
}
