package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/skyrun-game/skyrun/internal/flagx"
	"github.com/skyrun-game/skyrun/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be given as strings like "5s" or as integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL       string         `json:"server_base_url"`
	LocalCacheDSN       string         `json:"local_cache_dsn"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	ProbeTTL            timex.Duration `json:"probe_ttl"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJson overlays Config with values loaded from a JSON file given via
// -c/-config. Zero values in the file leave the existing setting alone.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.LocalCacheDSN != "" {
		cfg.LocalCacheDSN = jc.LocalCacheDSN
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.ProbeTTL.Duration != 0 {
		cfg.ProbeTTL = time.Duration(jc.ProbeTTL.Duration)
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
}
