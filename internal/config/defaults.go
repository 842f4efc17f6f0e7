package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL         = "https://gamma-api.polymarket.com"
	DefaultFeedURL          = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultGammaTimeout     = 30 * time.Second
	DefaultGammaRetries     = 3
	DefaultRetryDelay       = 2 * time.Second
	DefaultDiscoveryRetries = 3

	DefaultPingInterval       = 30 * time.Second
	DefaultPongTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultFeedBufferSize     = 10000

	DefaultOutputDir     = "data"
	DefaultFlushInterval = 2 * time.Second
	DefaultPairWindow    = 2000 * time.Millisecond
	DefaultStaleAfter    = 5000 * time.Millisecond
	DefaultOrderingSlack = 1000 * time.Millisecond
	DefaultMaxDeviation  = 0.05
	DefaultDedupSize     = 100
	DefaultHistorySize   = 600

	DefaultPollInterval    = 10 * time.Second
	DefaultSwitchBuffer    = 60 * time.Second
	DefaultMaxRefreshEvery = 5 * time.Minute

	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultDBMaxConns    = 10
	DefaultDBMinConns    = 2
	DefaultDBBatchSize   = 500
	DefaultDBFlush       = 1 * time.Second
	DefaultDBBufferSize  = 10000
	DefaultLogLevel      = "info"
	DefaultHealthPort    = 8080
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 14
)

func (c *TrackerConfig) applyDefaults() {
	// Gamma defaults
	if c.Gamma.BaseURL == "" {
		c.Gamma.BaseURL = DefaultGammaURL
	}
	if c.Gamma.Timeout == 0 {
		c.Gamma.Timeout = DefaultGammaTimeout
	}
	if c.Gamma.MaxRetries == 0 {
		c.Gamma.MaxRetries = DefaultGammaRetries
	}
	if c.Gamma.RetryDelay == 0 {
		c.Gamma.RetryDelay = DefaultRetryDelay
	}
	if c.Gamma.DiscoveryRetries == 0 {
		c.Gamma.DiscoveryRetries = DefaultDiscoveryRetries
	}

	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.PongTimeout == 0 {
		c.Feed.PongTimeout = DefaultPongTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Journal defaults
	if c.Journal.OutputDir == "" {
		c.Journal.OutputDir = DefaultOutputDir
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.PairWindow == 0 {
		c.Journal.PairWindow = DefaultPairWindow
	}
	if c.Journal.StaleAfter == 0 {
		c.Journal.StaleAfter = DefaultStaleAfter
	}
	if c.Journal.OrderingSlack == 0 {
		c.Journal.OrderingSlack = DefaultOrderingSlack
	}
	if c.Journal.MaxDeviation == 0 {
		c.Journal.MaxDeviation = DefaultMaxDeviation
	}
	if c.Journal.DedupSize == 0 {
		c.Journal.DedupSize = DefaultDedupSize
	}
	if c.Journal.HistorySize == 0 {
		c.Journal.HistorySize = DefaultHistorySize
	}

	// Rotation defaults
	if c.Rotation.PollInterval == 0 {
		c.Rotation.PollInterval = DefaultPollInterval
	}
	if c.Rotation.SwitchBuffer == 0 {
		c.Rotation.SwitchBuffer = DefaultSwitchBuffer
	}
	if c.Rotation.MaxRefreshEvery == 0 {
		c.Rotation.MaxRefreshEvery = DefaultMaxRefreshEvery
	}

	// Database defaults (only meaningful when enabled)
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultDBMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultDBMinConns
	}
	if c.Database.BatchSize == 0 {
		c.Database.BatchSize = DefaultDBBatchSize
	}
	if c.Database.FlushInterval == 0 {
		c.Database.FlushInterval = DefaultDBFlush
	}
	if c.Database.BufferSize == 0 {
		c.Database.BufferSize = DefaultDBBufferSize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
