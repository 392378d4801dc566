package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from CLAIMD_* environment variables at startup.
type Config struct {
	Listen        string        `env:"LISTEN"         envDefault:":19999"`
	StateDir      string        `env:"STATE_DIR"      envDefault:"/var/lib/claimd"`
	DatabaseDSN   string        `env:"DB_DSN"`
	RedisURL      string        `env:"REDIS_URL"`
	Proxy         string        `env:"PROXY"          envDefault:"env"`
	Insecure      bool          `env:"INSECURE"       envDefault:"false"`
	TLSCert       string        `env:"TLS_CERT"`
	TLSKey        string        `env:"TLS_KEY"`
	RateLimit     int           `env:"RATE_LIMIT"     envDefault:"30"`
	RateWindow    time.Duration `env:"RATE_WINDOW"    envDefault:"1m"`
	ReloadTimeout time.Duration `env:"RELOAD_TIMEOUT" envDefault:"60s"`
	ProbeInterval time.Duration `env:"PROBE_INTERVAL" envDefault:"5m"`
	Platform      string        `env:"PLATFORM"`
	LogLevel      string        `env:"LOG_LEVEL"      envDefault:"info"`
	LogDev        bool          `env:"LOG_DEV"        envDefault:"false"`
	CORSOrigins   []string      `env:"CORS_ORIGINS"   envSeparator:","`
	// TrustedProxies lists the peers whose X-Forwarded-For is believed. Empty
	// means the client address is always the TCP peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordChannel string `env:"DISCORD_CHANNEL"`
}

const envPrefix = "CLAIMD_"

// Load parses the environment and fills derived defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Platform == "" {
		cfg.Platform = runtime.GOOS
	}
	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("%sRATE_LIMIT must be positive, got %d", envPrefix, cfg.RateLimit)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Config{}, fmt.Errorf("%sTLS_CERT and %sTLS_KEY must be set together", envPrefix, envPrefix)
	}
	return cfg, nil
}

func (c Config) TLSEnabled() bool { return c.TLSCert != "" }
