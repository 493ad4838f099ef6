package intake

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is an inbound payload handed to the router.
type RawMessage struct {
	Data       []byte    // JSON object bytes
	Origin     string    // "http", "ws" or a feed URL
	ReceivedAt time.Time // Local receive time
}

// ClientConfig holds configuration for a websocket client.
type ClientConfig struct {
	URL          string
	APISecret    string        // Hashed secret sent as api-secret, optional
	PingInterval time.Duration // How often to ping the server
	PingTimeout  time.Duration // Close if no pong within this window
	WriteTimeout time.Duration
	BufferSize   int // Message channel buffer
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// FeedConfig holds configuration for a reconnecting feed.
type FeedConfig struct {
	Client            ClientConfig
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	OutputBuffer      int
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  time.Minute,
		OutputBuffer:      256,
	}
}
