package config

import "time"

// TrackerConfig is the root configuration for a tracker instance.
type TrackerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Gamma    GammaConfig    `yaml:"gamma"`
	Feed     FeedConfig     `yaml:"feed"`
	Journal  JournalConfig  `yaml:"journal"`
	Rotation RotationConfig `yaml:"rotation"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this tracker.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// GammaConfig holds Gamma REST catalog settings.
type GammaConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DiscoveryRetries bounds full discovery passes when fewer than all
	// market types resolve; RetryDelay is the fixed wait between passes.
	DiscoveryRetries int `yaml:"discovery_retries"`
}

// FeedConfig holds CLOB WebSocket feed settings.
type FeedConfig struct {
	URL                string        `yaml:"url"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongTimeout        time.Duration `yaml:"pong_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	BufferSize         int           `yaml:"buffer_size"`
}

// JournalConfig holds row assembly and CSV journaling settings.
type JournalConfig struct {
	OutputDir     string        `yaml:"output_dir"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	PairWindow    time.Duration `yaml:"pair_window"`    // max Up/Down timestamp skew for pairing
	StaleAfter    time.Duration `yaml:"stale_after"`    // unconditional drop of buffered sides
	OrderingSlack time.Duration `yaml:"ordering_slack"` // max backwards timestamp for price rows
	MaxDeviation  float64       `yaml:"max_deviation"`  // |up+down-1| sanity bound
	DedupSize     int           `yaml:"dedup_size"`     // recent-row key set bound
	HistorySize   int           `yaml:"history_size"`   // price history ring capacity
}

// RotationConfig holds rotation scheduler settings.
type RotationConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	SwitchBuffer    time.Duration `yaml:"switch_buffer"`     // rotate when remaining time drops below
	MaxRefreshEvery time.Duration `yaml:"max_refresh_every"` // forced periodic re-discovery
}

// DatabaseConfig holds the optional Postgres mirror of journal rows.
type DatabaseConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	SSLMode       string        `yaml:"ssl_mode"`
	MaxConns      int           `yaml:"max_conns"`
	MinConns      int           `yaml:"min_conns"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error

	// File enables rotating file output in addition to stdout.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HealthConfig holds the health HTTP endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
