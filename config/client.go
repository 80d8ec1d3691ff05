package config

import (
	"os"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// DevelopmentURL is the endpoint used outside production.
const DevelopmentURL = "ws://localhost:8080/ws"

// DefaultMaxDelay caps a single reconnect delay when MaxDelay is unset.
const DefaultMaxDelay = 30 * time.Second

// ClientConfig configures the client connection manager.
type ClientConfig struct {
	URL         string        // websocket endpoint, query parameters are appended
	MaxAttempts int           // caps total reconnect attempts after a failure run
	BaseDelay   time.Duration // scales the backoff curve
	MaxDelay    time.Duration // upper bound for one delay; zero means DefaultMaxDelay
}

// DefaultClientConfig returns the reference reconnect settings against the
// development endpoint.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		URL:         DevelopmentURL,
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    DefaultMaxDelay,
	}
}

// ClientConfigFromEnv selects the endpoint by environment.
// REALTIME_WS_URL wins; APP_ENV=production builds wss://$REALTIME_PUBLIC_HOST/ws;
// anything else uses DevelopmentURL.
func ClientConfigFromEnv() (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	switch {
	case os.Getenv("REALTIME_WS_URL") != "":
		cfg.URL = os.Getenv("REALTIME_WS_URL")
	case os.Getenv("APP_ENV") == "production":
		host := os.Getenv("REALTIME_PUBLIC_HOST")
		if host == "" {
			return nil, oops.In("config").
				Errorf("REALTIME_PUBLIC_HOST is required when APP_ENV=production")
		}
		cfg.URL = "wss://" + host + "/ws"
	}

	if s := os.Getenv("REALTIME_MAX_ATTEMPTS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, oops.In("config").With("value", s).
				Errorf("REALTIME_MAX_ATTEMPTS must be a non-negative integer")
		}
		cfg.MaxAttempts = n
	}
	if s := os.Getenv("REALTIME_BASE_DELAY"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, oops.In("config").With("value", s).Wrapf(err, "parse REALTIME_BASE_DELAY")
		}
		if d <= 0 {
			return nil, oops.In("config").With("value", s).Errorf("REALTIME_BASE_DELAY must be positive")
		}
		cfg.BaseDelay = d
	}
	if s := os.Getenv("REALTIME_MAX_DELAY"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, oops.In("config").With("value", s).Wrapf(err, "parse REALTIME_MAX_DELAY")
		}
		cfg.MaxDelay = d
	}
	return cfg, nil
}
