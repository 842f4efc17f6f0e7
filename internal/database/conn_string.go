package database

import (
	"fmt"
	"net/url"

	"github.com/avelik/polymarket-data/internal/config"
)

// BuildConnString renders a postgres:// URL for the mirror pool. The
// password is query-escaped so credentials with reserved characters
// survive, and sslmode falls back to "prefer" when unset.
func BuildConnString(cfg config.DatabaseConfig) string {
	mode := cfg.SSLMode
	if mode == "" {
		mode = "prefer"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Name, mode)
}
