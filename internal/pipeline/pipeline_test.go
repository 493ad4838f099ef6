package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/cgm-ingest/internal/decode"
	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/sink"
	"github.com/rickgao/cgm-ingest/internal/store"
)

// recordingSink captures relay and upload calls.
type recordingSink struct {
	mu        sync.Mutex
	relayed   []model.GlucoseRecord
	uploaded  []model.GlucoseRecord
	relayErr  error
	uploadErr error
}

func (s *recordingSink) Relay(_ context.Context, rec model.GlucoseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayed = append(s.relayed, rec)
	return s.relayErr
}

func (s *recordingSink) Upload(_ context.Context, rec model.GlucoseRecord, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, rec)
	return s.uploadErr
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.relayed), len(s.uploaded)
}

type failingBackend struct{}

func (failingBackend) RunInTx(context.Context, func(store.Tx) error) error {
	return errors.New("disk full")
}

type harness struct {
	p     *Pipeline
	store *store.Memory
	sinks *recordingSink
	gate  *Toggle
}

func newHarness(t *testing.T, backend store.Backend) *harness {
	t.Helper()
	mem := store.NewMemory()
	if backend == nil {
		backend = mem
	}
	sinks := &recordingSink{}
	gate := NewToggle(true)
	fan := sink.NewFanout(sinks, sinks, "AndroidAPS-Glimp")
	p := New(DefaultConfig(), gate, decode.New(model.SensorGlimp, decode.GlimpFields()), backend, fan)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	})

	return &harness{p: p, store: mem, sinks: sinks, gate: gate}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// settle waits until every queued record has been stored or failed.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	waitFor(t, "queue to drain", func() bool {
		s := h.p.Stats()
		done := s.Inserted + s.Duplicates + s.StoreFailed
		return done >= s.Queued && s.Notified >= s.Inserted
	})
}

func glimpPayload(value float64, trend string, ts int64) model.Payload {
	return model.Payload{"mySGV": value, "myTrend": trend, "myTimestamp": ts}
}

func TestPipeline_StoresAndNotifies(t *testing.T) {
	h := newHarness(t, nil)

	if got := h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000)); got != OutcomeQueued {
		t.Fatalf("Handle() = %v, want queued", got)
	}
	h.settle(t)

	rec, ok, err := h.store.Get(context.Background(), model.Identity{Timestamp: 1700000000000, SourceSensor: model.SensorGlimp})
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want stored record", ok, err)
	}
	if rec.Value != 120.0 || rec.TrendArrow != model.TrendFlat || rec.Raw != nil {
		t.Errorf("stored %+v", rec)
	}

	relayed, uploaded := h.sinks.counts()
	if relayed != 1 || uploaded != 1 {
		t.Errorf("sink calls relay=%d upload=%d, want 1 each", relayed, uploaded)
	}
	if h.sinks.relayed[0].ID != rec.ID {
		t.Errorf("relayed ID = %v, want stored ID %v", h.sinks.relayed[0].ID, rec.ID)
	}
}

func TestPipeline_DuplicateIdentity(t *testing.T) {
	h := newHarness(t, nil)

	h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000))
	h.settle(t)
	h.p.Handle(glimpPayload(95.0, "FortyFiveUp", 1700000000000))
	h.settle(t)

	n, _ := h.store.Count(context.Background())
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	rec, _, _ := h.store.Get(context.Background(), model.Identity{Timestamp: 1700000000000, SourceSensor: model.SensorGlimp})
	if rec.Value != 120.0 {
		t.Errorf("stored value = %v, want first write 120", rec.Value)
	}

	relayed, uploaded := h.sinks.counts()
	if relayed != 1 || uploaded != 1 {
		t.Errorf("sink calls relay=%d upload=%d, want 1 each", relayed, uploaded)
	}
	if s := h.p.Stats(); s.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", s.Duplicates)
	}
}

func TestPipeline_MissingField(t *testing.T) {
	h := newHarness(t, nil)

	got := h.p.Handle(model.Payload{"mySGV": 120.0, "myTrend": "Flat"})
	if got != OutcomeRejected {
		t.Fatalf("Handle() = %v, want rejected", got)
	}

	time.Sleep(20 * time.Millisecond)
	n, _ := h.store.Count(context.Background())
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
	if relayed, uploaded := h.sinks.counts(); relayed+uploaded != 0 {
		t.Errorf("sinks called %d times, want 0", relayed+uploaded)
	}
}

func TestPipeline_UnrecognizedTrend(t *testing.T) {
	h := newHarness(t, nil)

	h.p.Handle(glimpPayload(110.0, "SOMETHING_UNRECOGNIZED", 1700000300000))
	h.settle(t)

	rec, ok, _ := h.store.Get(context.Background(), model.Identity{Timestamp: 1700000300000, SourceSensor: model.SensorGlimp})
	if !ok {
		t.Fatal("record not stored")
	}
	if rec.TrendArrow != model.TrendUnknown {
		t.Errorf("TrendArrow = %v, want Unknown", rec.TrendArrow)
	}
}

func TestPipeline_Gated(t *testing.T) {
	h := newHarness(t, nil)
	h.gate.Disable()

	if got := h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000)); got != OutcomeGated {
		t.Fatalf("Handle() = %v, want gated", got)
	}
	if got := h.p.Handle(model.Payload{}); got != OutcomeGated {
		t.Errorf("Handle(empty) = %v, want gated before decode", got)
	}
	if got := h.p.HandleRaw([]byte(`not json`)); got != OutcomeGated {
		t.Errorf("HandleRaw(garbage) = %v, want gated", got)
	}

	time.Sleep(20 * time.Millisecond)
	if n, _ := h.store.Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}

	h.gate.Enable()
	if got := h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000)); got != OutcomeQueued {
		t.Errorf("Handle() after enable = %v, want queued", got)
	}

	s := h.p.Stats()
	if s.Gated != 3 || s.Received != 4 {
		t.Errorf("Gated = %d Received = %d, want 3 and 4", s.Gated, s.Received)
	}
}

func TestPipeline_StoreFailure(t *testing.T) {
	h := newHarness(t, failingBackend{})

	if got := h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000)); got != OutcomeQueued {
		t.Fatalf("Handle() = %v, want queued", got)
	}
	h.settle(t)

	if s := h.p.Stats(); s.StoreFailed != 1 {
		t.Errorf("StoreFailed = %d, want 1", s.StoreFailed)
	}
	if relayed, uploaded := h.sinks.counts(); relayed+uploaded != 0 {
		t.Errorf("sinks called %d times after store failure, want 0", relayed+uploaded)
	}
}

func TestPipeline_SinkFailureKeepsRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.sinks.relayErr = errors.New("no consumers")
	h.sinks.uploadErr = errors.New("503")

	h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000))
	h.settle(t)

	if _, ok, _ := h.store.Get(context.Background(), model.Identity{Timestamp: 1700000000000, SourceSensor: model.SensorGlimp}); !ok {
		t.Error("record missing after sink failure")
	}
	relayed, uploaded := h.sinks.counts()
	if relayed != 1 || uploaded != 1 {
		t.Errorf("sink calls relay=%d upload=%d, want 1 each", relayed, uploaded)
	}

	// A later payload is still processed.
	h.p.Handle(glimpPayload(125.0, "Flat", 1700000300000))
	h.settle(t)
	if n, _ := h.store.Count(context.Background()); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestPipeline_HandleRaw(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		data string
		want Outcome
	}{
		{"glimp json", `{"mySGV": 120, "myTrend": "Flat", "myTimestamp": 1700000000000, "myRaw": 0}`, OutcomeQueued},
		{"malformed", `{"mySGV": `, OutcomeRejected},
		{"array", `[{"mySGV": 120}]`, OutcomeRejected},
		{"fractional timestamp", `{"mySGV": 120, "myTrend": "Flat", "myTimestamp": 1700000000000.5}`, OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.p.HandleRaw([]byte(tt.data)); got != tt.want {
				t.Errorf("HandleRaw() = %v, want %v", got, tt.want)
			}
		})
	}

	h.settle(t)
	rec, ok, _ := h.store.Get(context.Background(), model.Identity{Timestamp: 1700000000000, SourceSensor: model.SensorGlimp})
	if !ok {
		t.Fatal("record not stored")
	}
	if rec.Raw == nil || *rec.Raw != 0 {
		t.Errorf("Raw = %v, want 0", rec.Raw)
	}
}

func TestPipeline_ConcurrentDuplicates(t *testing.T) {
	h := newHarness(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.p.Handle(glimpPayload(120.0, "Flat", 1700000000000))
		}()
	}
	wg.Wait()
	h.settle(t)

	if n, _ := h.store.Count(context.Background()); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	relayed, uploaded := h.sinks.counts()
	if relayed != 1 || uploaded != 1 {
		t.Errorf("sink calls relay=%d upload=%d, want 1 each", relayed, uploaded)
	}
}

func TestPipeline_HandleAfterStop(t *testing.T) {
	p := New(DefaultConfig(), nil, decode.New(model.SensorGlimp, decode.GlimpFields()), store.NewMemory(), nil)
	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)

	if got := p.Handle(glimpPayload(120.0, "Flat", 1700000000000)); got != OutcomeDropped {
		t.Errorf("Handle() after Stop = %v, want dropped", got)
	}
}

func TestPipeline_StopDropsQueued(t *testing.T) {
	mem := store.NewMemory()
	// Not started: everything stays queued.
	p := New(Config{Workers: 1}, nil, decode.New(model.SensorGlimp, decode.GlimpFields()), mem, nil)
	for i := int64(0); i < 5; i++ {
		p.Handle(glimpPayload(100, "Flat", 1700000000000+i*300000))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	p.Stop(stopCtx)

	if n, _ := mem.Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d, want 0 (queued work dropped)", n)
	}
	if s := p.Stats(); s.Dropped != 5 {
		t.Errorf("Dropped = %d, want 5", s.Dropped)
	}
}

func TestPipeline_StopWithoutStart(t *testing.T) {
	p := New(DefaultConfig(), nil, decode.New(model.SensorGlimp, decode.GlimpFields()), store.NewMemory(), nil)
	for i := int64(0); i < 3; i++ {
		p.Handle(glimpPayload(110, "Flat", 1700000000000+i*300000))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)

	s := p.Stats()
	if s.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", s.Dropped)
	}
	if s.Queue.Depth != 0 || s.Queue.Peak != 3 {
		t.Errorf("Queue = %+v, want depth 0 peak 3", s.Queue)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeGated, "gated"},
		{OutcomeRejected, "rejected"},
		{OutcomeQueued, "queued"},
		{OutcomeDropped, "dropped"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(tt.o), got, tt.want)
		}
	}
}
