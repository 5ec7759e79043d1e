// Package config loads process configuration once at startup. Values come
// from defaults, an optional config.yaml and TILLPOINT_* environment
// variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the explicit configuration passed down by pointer. Nothing here
// is read ambiently after startup.
type Config struct {
	ServerPort  int
	DatabaseURL string

	JWTSecret  string
	Issuer     string
	SessionTTL time.Duration

	SecureCookies bool

	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration

	SessionCheckInterval time.Duration
	SessionWarningWindow time.Duration

	RateLimitBurst     int
	RateLimitPerSecond int
}

// Load reads configuration. The config file is optional; a missing file is
// not an error, a malformed one is.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tillpoint")

	v.SetEnvPrefix("TILLPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.url", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "tillpoint")
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.check_interval", "30s")
	v.SetDefault("session.warning_window", "5m")
	v.SetDefault("cookies.secure", true)
	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.window", "15m")
	v.SetDefault("lockout.duration", "15m")
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.per_second", 10)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:           v.GetInt("server.port"),
		DatabaseURL:          v.GetString("database.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		Issuer:               v.GetString("jwt.issuer"),
		SessionTTL:           v.GetDuration("session.ttl"),
		SessionCheckInterval: v.GetDuration("session.check_interval"),
		SessionWarningWindow: v.GetDuration("session.warning_window"),
		SecureCookies:        v.GetBool("cookies.secure"),
		LockoutThreshold:     v.GetInt("lockout.threshold"),
		LockoutWindow:        v.GetDuration("lockout.window"),
		LockoutDuration:      v.GetDuration("lockout.duration"),
		RateLimitBurst:       v.GetInt("ratelimit.burst"),
		RateLimitPerSecond:   v.GetInt("ratelimit.per_second"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: jwt secret is required (TILLPOINT_JWT_SECRET)")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.ServerPort)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session ttl must be positive")
	}
	if c.SessionWarningWindow >= c.SessionTTL {
		return errors.New("config: warning window must be shorter than the session ttl")
	}
	return nil
}
