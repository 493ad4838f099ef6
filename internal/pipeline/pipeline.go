package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/cgm-ingest/internal/decode"
	"github.com/rickgao/cgm-ingest/internal/metrics"
	"github.com/rickgao/cgm-ingest/internal/model"
	"github.com/rickgao/cgm-ingest/internal/router"
	"github.com/rickgao/cgm-ingest/internal/store"
)

// Outcome is the synchronous result of handing a payload to the pipeline.
type Outcome int

const (
	OutcomeGated    Outcome = iota // Source disabled, payload ignored
	OutcomeRejected                // Payload did not decode
	OutcomeQueued                  // Record accepted for storage
	OutcomeDropped                 // Pipeline stopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGated:
		return "gated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Notifier receives every newly stored record.
type Notifier interface {
	Notify(ctx context.Context, rec model.GlucoseRecord)
}

// Config holds orchestrator settings.
type Config struct {
	Workers       int           // Default: 4
	QueueSize     int           // Initial queue capacity, grows on demand
	StoreTimeout  time.Duration // Bound on one upsert transaction
	NotifyTimeout time.Duration // Bound on one fan-out
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     256,
		StoreTimeout:  10 * time.Second,
		NotifyTimeout: 30 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Received    int64
	Gated       int64
	Rejected    int64
	Queued      int64
	Dropped     int64
	Inserted    int64
	Duplicates  int64
	StoreFailed int64
	Notified    int64
	Queue       QueueStats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

type task struct {
	rec        model.GlucoseRecord
	receivedAt time.Time
}

// Pipeline gates, decodes, stores and fans out inbound payloads.
type Pipeline struct {
	cfg      Config
	gate     Gate
	decoder  *decode.Decoder
	backend  store.Backend
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	queue *queue[task]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received    atomic.Int64
	gated       atomic.Int64
	rejected    atomic.Int64
	queued      atomic.Int64
	dropped     atomic.Int64
	inserted    atomic.Int64
	duplicates  atomic.Int64
	storeFailed atomic.Int64
	notified    atomic.Int64
}

// New creates a pipeline. Payloads handled before Start are queued and
// processed once workers run.
func New(cfg Config, gate Gate, decoder *decode.Decoder, backend store.Backend, notifier Notifier, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
	if gate == nil {
		gate = StaticGate(true)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	p := &Pipeline{
		cfg:      cfg,
		gate:     gate,
		decoder:  decoder,
		backend:  backend,
		notifier: notifier,
		logger:   slog.Default(),
		queue:    newQueue[task](cfg.QueueSize),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With("source_sensor", string(decoder.Sensor()))
	return p
}

// Handle gates and decodes p, then queues the record for storage.
func (p *Pipeline) Handle(payload model.Payload) Outcome {
	p.received.Add(1)

	if !p.gate.Enabled() {
		p.gated.Add(1)
		p.logger.Debug("source disabled, ignoring payload")
		return p.outcome(OutcomeGated)
	}

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.Debug("received bundle", "bundle", payload)
	}

	rec, err := p.decoder.Decode(payload)
	if err != nil {
		p.rejected.Add(1)
		p.logger.Info("rejected payload", "error", err)
		return p.outcome(OutcomeRejected)
	}

	if !p.queue.push(task{rec: rec, receivedAt: time.Now()}) {
		p.dropped.Add(1)
		p.logger.Warn("pipeline stopped, dropping record", "identity", rec.Identity().String())
		return p.outcome(OutcomeDropped)
	}

	p.queued.Add(1)
	p.metrics.QueueDepth(p.queue.len())
	return p.outcome(OutcomeQueued)
}

// HandleRaw parses a JSON object and handles it. Malformed JSON is rejected.
func (p *Pipeline) HandleRaw(data []byte) Outcome {
	if !p.gate.Enabled() {
		p.received.Add(1)
		p.gated.Add(1)
		return p.outcome(OutcomeGated)
	}

	payload, err := router.ParsePayload(data)
	if err != nil {
		p.received.Add(1)
		p.rejected.Add(1)
		p.logger.Info("rejected payload", "error", err)
		return p.outcome(OutcomeRejected)
	}
	return p.Handle(payload)
}

func (p *Pipeline) outcome(o Outcome) Outcome {
	p.metrics.Payload(o.String())
	return o
}

// Start spawns the workers.
func (p *Pipeline) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("pipeline started",
		"workers", p.cfg.Workers,
		"queue_size", p.cfg.QueueSize,
	)
	return nil
}

// Stop closes intake, cancels queued work and waits for in-flight
// transactions up to ctx's deadline. Commits already begun complete or
// roll back; their notifications are skipped.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.logger.Info("stopping pipeline")

	p.queue.close()
	if p.cancel != nil {
		p.cancel()
	}

	if discarded := p.queue.drain(); len(discarded) > 0 {
		p.dropped.Add(int64(len(discarded)))
		for range discarded {
			p.metrics.Payload(OutcomeDropped.String())
		}
		p.metrics.QueueDepth(0)
		p.logger.Info("discarded queued records", "count", len(discarded))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("pipeline stopped")
	case <-ctx.Done():
		p.logger.Warn("pipeline stop timed out")
	}
	return nil
}

// Stats returns current statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:    p.received.Load(),
		Gated:       p.gated.Load(),
		Rejected:    p.rejected.Load(),
		Queued:      p.queued.Load(),
		Dropped:     p.dropped.Load(),
		Inserted:    p.inserted.Load(),
		Duplicates:  p.duplicates.Load(),
		StoreFailed: p.storeFailed.Load(),
		Notified:    p.notified.Load(),
		Queue:       p.queue.stats(),
	}
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()

	for {
		t, ok := p.queue.pop()
		if !ok {
			return
		}
		p.metrics.QueueDepth(p.queue.len())

		if p.ctx.Err() != nil {
			p.dropped.Add(1)
			p.metrics.Payload(OutcomeDropped.String())
			p.logger.Debug("pipeline stopping, dropping queued record",
				"worker", id,
				"identity", t.rec.Identity().String(),
			)
			continue
		}

		p.process(t)
	}
}

// process stores one record and notifies the sinks if it was new.
func (p *Pipeline) process(t task) {
	// The transaction must finish even if Stop cancels p.ctx mid-commit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.cfg.StoreTimeout)
	start := time.Now()
	result, err := store.Upsert(ctx, p.backend, []model.GlucoseRecord{t.rec})
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		p.storeFailed.Add(1)
		p.metrics.StoreFailed(elapsed)
		p.logger.Error("failed to store record",
			"identity", t.rec.Identity().String(),
			"timestamp", t.rec.Timestamp,
			"value", t.rec.Value,
			"trend_arrow", t.rec.TrendArrow.String(),
			"raw", rawValue(t.rec.Raw),
			"error", err,
		)
		return
	}

	p.inserted.Add(int64(len(result.Inserted)))
	p.duplicates.Add(int64(result.Skipped))
	p.metrics.Stored(len(result.Inserted), result.Skipped, elapsed)

	if result.Skipped > 0 {
		p.logger.Debug("record already stored", "identity", t.rec.Identity().String())
	}

	for _, rec := range result.Inserted {
		if p.ctx.Err() != nil {
			p.logger.Debug("pipeline stopping, skipping notification", "identity", rec.Identity().String())
			return
		}

		nctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.cfg.NotifyTimeout)
		p.notifier.Notify(nctx, rec)
		cancel()
		p.notified.Add(1)

		p.logger.Debug("record stored",
			"identity", rec.Identity().String(),
			"value", rec.Value,
			"latency", time.Since(t.receivedAt),
		)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.GlucoseRecord) {}

func rawValue(raw *float64) any {
	if raw == nil {
		return nil
	}
	return *raw
}
