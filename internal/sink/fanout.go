package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/cgm-ingest/internal/metrics"
	"github.com/rickgao/cgm-ingest/internal/model"
)

const (
	sinkRelay  = "relay"
	sinkUpload = "upload"
)

// Fanout notifies the relay and upload sinks of a stored record.
type Fanout struct {
	relay   RelaySink
	upload  UploadSink
	label   string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithTimeout bounds each sink invocation. Zero means no bound.
func WithTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		f.timeout = d
	}
}

// WithMetrics records sink results.
func WithMetrics(m *metrics.Metrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

// NewFanout creates a Fanout. A nil sink is replaced by its no-op.
func NewFanout(relay RelaySink, upload UploadSink, sourceLabel string, opts ...FanoutOption) *Fanout {
	if relay == nil {
		relay = NopRelay{}
	}
	if upload == nil {
		upload = NopUploader{}
	}

	f := &Fanout{
		relay:  relay,
		upload: upload,
		label:  sourceLabel,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Notify invokes both sinks concurrently and waits for them. Errors and
// panics are logged and counted, never returned.
func (f *Fanout) Notify(ctx context.Context, rec model.GlucoseRecord) {
	// Plain Group: one sink failing must not cancel the other.
	var g errgroup.Group

	g.Go(func() error {
		err := f.invoke(ctx, func(ctx context.Context) error {
			return f.relay.Relay(ctx, rec)
		})
		f.report(sinkRelay, rec, err)
		return nil
	})

	g.Go(func() error {
		err := f.invoke(ctx, func(ctx context.Context) error {
			return f.upload.Upload(ctx, rec, f.label)
		})
		f.report(sinkUpload, rec, err)
		return nil
	})

	g.Wait()
}

func (f *Fanout) invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}

func (f *Fanout) report(name string, rec model.GlucoseRecord, err error) {
	f.metrics.SinkResult(name, err)
	if err == nil {
		return
	}

	attrs := []any{
		"sink", name,
		"identity", rec.Identity().String(),
		"value", rec.Value,
	}

	switch name {
	case sinkRelay:
		f.logger.Warn("relay failed", append(attrs, "error", fmt.Errorf("%w: %w", ErrRelay, err))...)
	default:
		f.logger.Error("upload failed", append(attrs, "error", fmt.Errorf("%w: %w", ErrUpload, err))...)
	}
}
