package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Manager owns the single market-channel connection and its subscription.
type Manager interface {
	// Start connects and begins delivering frames.
	Start(ctx context.Context) error

	// Stop gracefully shuts the connection down.
	Stop(ctx context.Context) error

	// Messages returns the channel of raw frames for the stream processor.
	Messages() <-chan RawMessage

	// SetAssets replaces the subscribed token set. On a healthy connection
	// the new subscription is sent in place; otherwise the set takes effect
	// on the next (re)connect.
	SetAssets(tokenIDs []string) error

	// Stats returns current feed statistics.
	Stats() Stats
}

// newClientFunc builds a client; swapped out in tests.
type newClientFunc func(cfg ClientConfig, logger *slog.Logger) Client

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	newClient newClientFunc

	out chan RawMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	client  Client
	assets  []string
	started bool

	reconnects int64 // atomic
	received   int64 // atomic
	dropped    int64 // atomic
}

// NewManager creates a feed manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		out:       make(chan RawMessage, cfg.BufferSize),
	}
}

// Start begins the connect/pump/reconnect loop. The initial connect happens
// asynchronously; a failure there is just the first backoff iteration.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("feed manager started", "url", m.cfg.URL)
	return nil
}

// Stop shuts down the connection and waits for the run loop, bounded by ctx.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping feed manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.mu.Lock()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.mu.Unlock()

	close(m.out)

	m.logger.Info("feed manager stopped")
	return nil
}

// Messages returns the output channel.
func (m *manager) Messages() <-chan RawMessage {
	return m.out
}

// SetAssets replaces the tracked token set.
func (m *manager) SetAssets(tokenIDs []string) error {
	m.mu.Lock()
	m.assets = append([]string(nil), tokenIDs...)
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		// Folded into the subscribe sent on the next connect.
		return nil
	}
	return m.sendSubscribe(client, tokenIDs)
}

// Stats returns current statistics.
func (m *manager) Stats() Stats {
	m.mu.RLock()
	client := m.client
	assets := len(m.assets)
	m.mu.RUnlock()

	return Stats{
		Connected:  client != nil && client.IsConnected(),
		Assets:     assets,
		Reconnects: atomic.LoadInt64(&m.reconnects),
		Messages:   atomic.LoadInt64(&m.received),
		Dropped:    atomic.LoadInt64(&m.dropped),
	}
}

// run is the single supervising loop: connect, subscribe, pump frames, and
// on any failure back off exponentially and try again. Running everything in
// one goroutine guarantees at most one pending reconnect at a time.
func (m *manager) run() {
	defer m.wg.Done()

	attempts := 0
	everConnected := false

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		client, err := m.connect()
		if err != nil {
			wait := m.backoff(attempts)
			attempts++
			m.logger.Warn("feed connect failed",
				"error", err,
				"attempt", attempts,
				"retry_in", wait,
			)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		// Successful open resets the backoff.
		if everConnected {
			atomic.AddInt64(&m.reconnects, 1)
			m.logger.Info("feed reconnected", "failed_attempts", attempts)
		}
		everConnected = true
		attempts = 0

		m.mu.RLock()
		assets := append([]string(nil), m.assets...)
		m.mu.RUnlock()

		if len(assets) > 0 {
			if err := m.sendSubscribe(client, assets); err != nil {
				m.logger.Warn("subscribe after connect failed", "error", err)
			}
		}

		if !m.pump(client) {
			client.Close()
			return
		}
		client.Close()

		// Dropped connection: wait the base delay before redialing.
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectBaseDelay):
		}
	}
}

// connect dials a fresh client and installs it.
func (m *manager) connect() (Client, error) {
	client := m.newClient(ClientConfig{
		URL:          m.cfg.URL,
		PingInterval: m.cfg.PingInterval,
		PongTimeout:  m.cfg.PongTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)

	if err := client.Connect(m.ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.client != nil {
		m.client.Close()
	}
	m.client = client
	m.mu.Unlock()

	return client, nil
}

// pump forwards frames until the connection fails or the context ends.
// It returns false when the manager is shutting down.
func (m *manager) pump(client Client) bool {
	for {
		select {
		case <-m.ctx.Done():
			return false

		case err := <-client.Errors():
			m.logger.Warn("feed connection error", "error", err)
			return true

		case msg, ok := <-client.Messages():
			if !ok {
				return true
			}
			atomic.AddInt64(&m.received, 1)

			select {
			case m.out <- msg:
			case <-m.ctx.Done():
				return false
			default:
				atomic.AddInt64(&m.dropped, 1)
				m.logger.Warn("feed buffer full, dropping frame")
			}
		}
	}
}

// sendSubscribe sends the market-channel subscription for the given tokens.
func (m *manager) sendSubscribe(client Client, tokenIDs []string) error {
	cmd := subscribeCommand{
		AssetIDs: tokenIDs,
		Type:     channelMarket,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := client.Send(data); err != nil {
		return err
	}

	m.logger.Debug("subscription sent", "assets", len(tokenIDs))
	return nil
}

// backoff returns min(base * 2^attempts, max).
func (m *manager) backoff(attempts int) time.Duration {
	wait := m.cfg.ReconnectBaseDelay
	for i := 0; i < attempts; i++ {
		wait *= 2
		if wait >= m.cfg.ReconnectMaxDelay {
			return m.cfg.ReconnectMaxDelay
		}
	}
	if wait > m.cfg.ReconnectMaxDelay {
		wait = m.cfg.ReconnectMaxDelay
	}
	return wait
}
