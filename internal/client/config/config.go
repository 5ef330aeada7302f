// Package config holds runtime settings for the SkyRun client shell.
package config

import "time"

// Config holds runtime settings for the client.
//
// Fields:
//   - ServerBaseURL: base address of the account/progress service.
//   - LocalCacheDSN: SQLite DSN for the local progress cache.
//   - RequestTimeout: per-call deadline for remote requests.
//   - ProbeTTL: how long a reachability verdict stays trusted.
//   - OnlineCheckInterval: how often the background watcher probes.
type Config struct {
	ServerBaseURL       string
	LocalCacheDSN       string
	RequestTimeout      time.Duration
	ProbeTTL            time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://localhost:3000"
	c.LocalCacheDSN = "skyrun.db"
	c.RequestTimeout = 5 * time.Second
	c.ProbeTTL = 3 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
