package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrStaleFeed     = errors.New("feed stale (no pong)")
	ErrAlreadyClosed = errors.New("already closed")
	ErrNotStarted    = errors.New("manager not started")
)

// RawMessage wraps one WebSocket frame with its local receive timestamp.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// subscribeCommand is the market-channel subscription frame. Sending it on a
// live connection replaces the asset set server-side.
type subscribeCommand struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

const channelMarket = "market"

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // market channel URL
	PingInterval time.Duration // how often to send ping frames
	PongTimeout  time.Duration // max silence before the connection is stale
	WriteTimeout time.Duration // write deadline for sends
	BufferSize   int           // message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 10 * time.Second,
		PongTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ManagerConfig configures the feed manager.
type ManagerConfig struct {
	URL                string
	PingInterval       time.Duration
	PongTimeout        time.Duration
	WriteTimeout       time.Duration
	ReconnectBaseDelay time.Duration // first backoff step
	ReconnectMaxDelay  time.Duration // backoff cap
	BufferSize         int           // output channel buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PingInterval:       10 * time.Second,
		PongTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		BufferSize:         10000,
	}
}

// Stats is a snapshot of feed manager counters.
type Stats struct {
	Connected  bool
	Assets     int
	Reconnects int64
	Messages   int64
	Dropped    int64
}
