package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

// The SII queries are known to take up to ~3 minutes upstream; these are
// the floor for their timeouts.
const (
	MinSIIConnectTimeout = 30 * time.Second
	MinSIIReadTimeout    = 240 * time.Second
	MinSIITotalTimeout   = 300 * time.Second
)

type Config struct {
	APIBaseURL        string        `koanf:"api_base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	SIIConnectTimeout time.Duration `koanf:"sii_connect_timeout"`
	SIIReadTimeout    time.Duration `koanf:"sii_read_timeout"`
	SIITotalTimeout   time.Duration `koanf:"sii_total_timeout"`
	PerPage           int           `koanf:"per_page"`
	DeviceName        string        `koanf:"device_name"`
	StateFile         string        `koanf:"state_file"`
	StateRedisURL     string        `koanf:"state_redis_url"`
	LogFile           string        `koanf:"log_file"`
	Debug             bool          `koanf:"debug"`
}

func Default() Config {
	return Config{
		APIBaseURL:        "http://localhost:8000/api/",
		Timeout:           30 * time.Second,
		SIIConnectTimeout: MinSIIConnectTimeout,
		SIIReadTimeout:    MinSIIReadTimeout,
		SIITotalTimeout:   MinSIITotalTimeout,
		PerPage:           15,
		DeviceName:        "facturas-cli",
		StateFile:         "./facturas-state.json",
		LogFile:           "./facturas.log",
		Debug:             false,
	}
}

func New() (Config, error) {
	cfg := Default()

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize fills gaps and lifts SII timeouts that are below the budget.
func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimSpace(c.APIBaseURL)
	if c.APIBaseURL != "" && !strings.HasSuffix(c.APIBaseURL, "/") {
		c.APIBaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SIIConnectTimeout < MinSIIConnectTimeout {
		c.SIIConnectTimeout = MinSIIConnectTimeout
	}
	if c.SIIReadTimeout < MinSIIReadTimeout {
		c.SIIReadTimeout = MinSIIReadTimeout
	}
	if c.SIITotalTimeout < MinSIITotalTimeout {
		c.SIITotalTimeout = MinSIITotalTimeout
	}
	if c.PerPage <= 0 {
		c.PerPage = 15
	}
	if strings.TrimSpace(c.DeviceName) == "" {
		c.DeviceName = "facturas-cli"
	}
}
