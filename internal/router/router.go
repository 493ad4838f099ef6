package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/cgm-ingest/internal/intake"
)

// Router parses raw feed messages and hands each payload to the pipeline.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	PayloadsRouted   int64
	ParseErrors      int64
}

type router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	handler PayloadHandler

	input <-chan intake.RawMessage

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	routed      int64
	parseErrors int64
}

// NewRouter creates a new Message Router.
func NewRouter(cfg RouterConfig, input <-chan intake.RawMessage, handler PayloadHandler, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		input:   input,
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started", "max_batch", r.cfg.MaxBatch)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	return nil
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		PayloadsRouted:   r.routed,
		ParseErrors:      r.parseErrors,
	}
}

func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses one message and hands its payloads to the handler.
func (r *router) route(raw intake.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	payloads, err := ParsePayloads(raw.Data, r.cfg.MaxBatch)
	if err != nil {
		r.logger.Warn("failed to parse payload", "origin", raw.Origin, "error", err)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	for _, p := range payloads {
		r.handler(p)
	}

	r.mu.Lock()
	r.routed += int64(len(payloads))
	r.mu.Unlock()
}
