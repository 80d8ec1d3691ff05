package config

import (
	"os"
	"strconv"
	"time"
)

// Inbound policies for frames published by clients.
const (
	InboundScoped   = "scoped"
	InboundDeny     = "deny"
	InboundVerbatim = "verbatim"
)

// SocketConfig holds WebSocket server configuration.
type SocketConfig struct {
	Addr              string        `json:"addr"`
	MaxConnections    int           `json:"max_connections"`
	PingInterval      int           `json:"ping_interval_seconds"`
	WriteTimeout      int           `json:"write_timeout_seconds"`
	ReadBufferSize    int           `json:"read_buffer_size"`
	WriteBufferSize   int           `json:"write_buffer_size"`
	InboundPolicy     string        `json:"inbound_policy"`
	AnnouncePresence  bool          `json:"announce_presence"`
	SimulatorInterval time.Duration `json:"simulator_interval"`
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() *SocketConfig {
	return &SocketConfig{
		Addr:            ":8080",
		MaxConnections:  1000,
		PingInterval:    30,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		InboundPolicy:   InboundScoped,
	}
}

// FromEnv loads the socket configuration from environment variables.
// Falls back to defaults for any missing or unparsable values.
func FromEnv() *SocketConfig {
	cfg := DefaultConfig()

	if addr := os.Getenv("SOCKET_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if n, ok := envInt("SOCKET_MAX_CONNECTIONS"); ok {
		cfg.MaxConnections = n
	}
	if n, ok := envInt("SOCKET_PING_INTERVAL"); ok {
		cfg.PingInterval = n
	}
	if n, ok := envInt("SOCKET_WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = n
	}
	switch p := os.Getenv("SOCKET_INBOUND_POLICY"); p {
	case InboundScoped, InboundDeny, InboundVerbatim:
		cfg.InboundPolicy = p
	}
	if v, err := strconv.ParseBool(os.Getenv("SOCKET_ANNOUNCE_PRESENCE")); err == nil {
		cfg.AnnouncePresence = v
	}
	if d, err := time.ParseDuration(os.Getenv("SOCKET_SIMULATOR_INTERVAL")); err == nil {
		cfg.SimulatorInterval = d
	}
	return cfg
}

// PingPeriod returns PingInterval as a duration; zero disables pings.
func (c *SocketConfig) PingPeriod() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// WriteWait returns WriteTimeout as a duration.
func (c *SocketConfig) WriteWait() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
