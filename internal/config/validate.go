package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *TrackerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Gamma.BaseURL == "" {
		return errors.New("gamma.base_url is required")
	}
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.ReconnectBaseDelay > c.Feed.ReconnectMaxDelay {
		return fmt.Errorf("feed.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Feed.ReconnectBaseDelay, c.Feed.ReconnectMaxDelay)
	}

	if c.Journal.PairWindow <= 0 {
		return errors.New("journal.pair_window must be positive")
	}
	if c.Journal.StaleAfter < c.Journal.PairWindow {
		return fmt.Errorf("journal.stale_after (%s) cannot be below pair_window (%s)",
			c.Journal.StaleAfter, c.Journal.PairWindow)
	}
	if c.Journal.MaxDeviation <= 0 || c.Journal.MaxDeviation >= 1 {
		return fmt.Errorf("journal.max_deviation must be in (0, 1), got %v", c.Journal.MaxDeviation)
	}
	if c.Journal.DedupSize < 2 {
		return errors.New("journal.dedup_size must be >= 2")
	}
	if c.Journal.HistorySize < 1 {
		return errors.New("journal.history_size must be >= 1")
	}

	if c.Rotation.PollInterval <= 0 {
		return errors.New("rotation.poll_interval must be positive")
	}
	if c.Rotation.SwitchBuffer <= 0 {
		return errors.New("rotation.switch_buffer must be positive")
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	return nil
}

func (db *DatabaseConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
