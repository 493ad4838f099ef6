package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/rickgao/cgm-ingest/internal/model"
)

func glimpRecord(ts int64, value float64) model.GlucoseRecord {
	return model.GlucoseRecord{
		Timestamp:    ts,
		Value:        value,
		TrendArrow:   model.TrendFlat,
		SourceSensor: model.SensorGlimp,
	}
}

func TestUpsert_InsertsNew(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	result, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1700000000000, 120)})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if len(result.Inserted) != 1 {
		t.Fatalf("Inserted = %d, want 1", len(result.Inserted))
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", result.Skipped)
	}
	if result.Inserted[0].ID == uuid.Nil {
		t.Error("inserted record has no ID")
	}

	got, ok, _ := m.Get(ctx, result.Inserted[0].Identity())
	if !ok {
		t.Fatal("record not stored")
	}
	if got.Value != 120 {
		t.Errorf("stored Value = %v, want 120", got.Value)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1700000000000, 120)})
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if len(first.Inserted) != 1 {
		t.Fatalf("first Inserted = %d, want 1", len(first.Inserted))
	}

	// Same identity, different value
	second, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1700000000000, 95)})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if !second.Empty() {
		t.Errorf("second Inserted = %d, want 0", len(second.Inserted))
	}
	if second.Skipped != 1 {
		t.Errorf("second Skipped = %d, want 1", second.Skipped)
	}

	n, _ := m.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	got, _, _ := m.Get(ctx, first.Inserted[0].Identity())
	if got.Value != 120 {
		t.Errorf("stored Value = %v, want original 120", got.Value)
	}
}

func TestUpsert_DuplicateWithinBatch(t *testing.T) {
	m := NewMemory()

	result, err := Upsert(context.Background(), m, []model.GlucoseRecord{
		glimpRecord(1700000000000, 120),
		glimpRecord(1700000000000, 121),
		glimpRecord(1700000300000, 118),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(result.Inserted) != 2 {
		t.Errorf("Inserted = %d, want 2", len(result.Inserted))
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Inserted[0].Value != 120 {
		t.Errorf("first inserted Value = %v, want 120", result.Inserted[0].Value)
	}
}

func TestUpsert_SameTimestampOtherSensor(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	other := glimpRecord(1700000000000, 120)
	other.SourceSensor = model.SensorDexcom

	result, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1700000000000, 120), other})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(result.Inserted) != 2 {
		t.Errorf("Inserted = %d, want 2", len(result.Inserted))
	}
}

func TestUpsert_Empty(t *testing.T) {
	b := &failingBackend{err: errors.New("must not be called")}

	result, err := Upsert(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !result.Empty() {
		t.Error("result not empty")
	}
	if b.calls != 0 {
		t.Errorf("RunInTx calls = %d, want 0", b.calls)
	}
}

func TestUpsert_RollbackOnFailure(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Fail on the second insert of the batch
	b := &flakyBackend{inner: m, failAt: 2}
	batch := []model.GlucoseRecord{
		glimpRecord(1700000000000, 120),
		glimpRecord(1700000300000, 125),
	}

	result, err := Upsert(ctx, b, batch)
	if err == nil {
		t.Fatal("Upsert succeeded, want error")
	}
	if !errors.Is(err, ErrStorage) {
		t.Errorf("errors.Is(err, ErrStorage) = false for %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("cause not wrapped: %v", err)
	}

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not *StorageError", err)
	}
	if len(se.Records) != 2 {
		t.Errorf("StorageError.Records = %d, want 2", len(se.Records))
	}
	if !result.Empty() {
		t.Error("result not empty on failure")
	}

	n, _ := m.Count(ctx)
	if n != 0 {
		t.Errorf("Count = %d after rollback, want 0", n)
	}
}

func TestUpsert_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1, 100)})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
}

func TestUpsert_ConcurrentSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			result, err := Upsert(ctx, m, []model.GlucoseRecord{glimpRecord(1700000000000, v)})
			if err != nil {
				t.Errorf("Upsert failed: %v", err)
				return
			}
			mu.Lock()
			total += len(result.Inserted)
			mu.Unlock()
		}(float64(100 + i))
	}
	wg.Wait()

	if total != 1 {
		t.Errorf("total inserted = %d, want exactly 1", total)
	}
}

var errInjected = errors.New("injected failure")

// failingBackend fails every transaction.
type failingBackend struct {
	err   error
	calls int
}

func (b *failingBackend) RunInTx(context.Context, func(Tx) error) error {
	b.calls++
	return b.err
}

// flakyBackend fails the failAt-th Insert inside a transaction.
type flakyBackend struct {
	inner  Backend
	failAt int
}

func (b *flakyBackend) RunInTx(ctx context.Context, fn func(Tx) error) error {
	return b.inner.RunInTx(ctx, func(tx Tx) error {
		return fn(&flakyTx{Tx: tx, failAt: b.failAt})
	})
}

type flakyTx struct {
	Tx
	failAt  int
	inserts int
}

func (t *flakyTx) Insert(ctx context.Context, rec model.GlucoseRecord) (bool, error) {
	t.inserts++
	if t.inserts == t.failAt {
		return false, errInjected
	}
	return t.Tx.Insert(ctx, rec)
}
