package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Feed keeps a websocket client connected and forwards its frames.
type Feed struct {
	cfg       FeedConfig
	logger    *slog.Logger
	newClient func(ClientConfig, *slog.Logger) Client

	out chan RawMessage

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	connected  bool
	connects   int64
	failures   int64
	forwarded  int64
	lastConnAt time.Time
}

// FeedStats contains runtime statistics.
type FeedStats struct {
	Connected  bool
	Connects   int64
	Failures   int64
	Forwarded  int64
	LastConnAt time.Time
}

// NewFeed creates a feed for cfg.Client.URL.
func NewFeed(cfg FeedConfig, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = time.Second
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}
	if cfg.OutputBuffer < 1 {
		cfg.OutputBuffer = 1
	}

	return &Feed{
		cfg:       cfg,
		logger:    logger.With("feed", cfg.Client.URL),
		newClient: NewClient,
		out:       make(chan RawMessage, cfg.OutputBuffer),
	}
}

// Output returns the forwarded messages. It is closed after Stop.
func (f *Feed) Output() <-chan RawMessage {
	return f.out
}

// Start begins connecting in the background.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run()

	f.logger.Info("intake feed started")
	return nil
}

// Stop disconnects and waits for the feed goroutine.
func (f *Feed) Stop(ctx context.Context) error {
	f.logger.Info("stopping intake feed")

	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("intake feed stopped")
	case <-ctx.Done():
		f.logger.Warn("intake feed stop timed out")
	}
	return nil
}

// Stats returns current statistics.
func (f *Feed) Stats() FeedStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FeedStats{
		Connected:  f.connected,
		Connects:   f.connects,
		Failures:   f.failures,
		Forwarded:  f.forwarded,
		LastConnAt: f.lastConnAt,
	}
}

// run connects, pumps until the connection fails, then reconnects with
// exponential backoff.
func (f *Feed) run() {
	defer f.wg.Done()
	defer close(f.out)

	wait := f.cfg.ReconnectBaseWait

	for {
		client := f.newClient(f.cfg.Client, f.logger)

		if err := client.Connect(f.ctx); err != nil {
			client.Close()
			if f.ctx.Err() != nil {
				return
			}
			f.mu.Lock()
			f.failures++
			f.mu.Unlock()
			f.logger.Warn("feed connect failed", "error", err, "retry_in", wait)

			if !f.sleep(wait) {
				return
			}
			wait *= 2
			if wait > f.cfg.ReconnectMaxWait {
				wait = f.cfg.ReconnectMaxWait
			}
			continue
		}

		f.mu.Lock()
		f.connected = true
		f.connects++
		f.lastConnAt = time.Now()
		f.mu.Unlock()
		f.logger.Info("feed connected")
		wait = f.cfg.ReconnectBaseWait

		f.pump(client)
		client.Close()

		f.mu.Lock()
		f.connected = false
		f.mu.Unlock()

		if f.ctx.Err() != nil {
			return
		}
		if !f.sleep(wait) {
			return
		}
	}
}

func (f *Feed) pump(client Client) {
	for {
		select {
		case <-f.ctx.Done():
			return

		case err := <-client.Errors():
			f.logger.Warn("feed connection error", "error", err)
			// Frames read before the error are still delivered.
			for {
				select {
				case msg := <-client.Messages():
					if !f.forward(msg) {
						return
					}
				default:
					return
				}
			}

		case msg := <-client.Messages():
			if !f.forward(msg) {
				return
			}
		}
	}
}

func (f *Feed) forward(msg TimestampedMessage) bool {
	raw := RawMessage{
		Data:       msg.Data,
		Origin:     f.cfg.Client.URL,
		ReceivedAt: msg.ReceivedAt,
	}
	select {
	case f.out <- raw:
		f.mu.Lock()
		f.forwarded++
		f.mu.Unlock()
		return true
	case <-f.ctx.Done():
		return false
	}
}

func (f *Feed) sleep(d time.Duration) bool {
	select {
	case <-f.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
