package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashUcr773/task-management-app-sub001/config"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "listen"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestNewLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	logger, err := newLogger("json", buf)
	require.NoError(t, err)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)

	_, err = newLogger("xml", buf)
	assert.Error(t, err)
}

func TestServeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.SocketConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.SocketConfig) {}},
		{name: "deny policy", mutate: func(c *config.SocketConfig) { c.InboundPolicy = config.InboundDeny }},
		{name: "unknown policy", mutate: func(c *config.SocketConfig) { c.InboundPolicy = "open" }, wantErr: true},
		{name: "empty addr", mutate: func(c *config.SocketConfig) { c.Addr = "" }, wantErr: true},
		{name: "negative interval", mutate: func(c *config.SocketConfig) { c.SimulatorInterval = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &serveConfig{socket: config.DefaultConfig()}
			tt.mutate(cfg.socket)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServeProviderOptions(t *testing.T) {
	cfg := &serveConfig{socket: config.DefaultConfig()}
	assert.Empty(t, cfg.providerOptions())

	cfg.redis = true
	cfg.redisAddr = "redis:6379"
	cfg.dbPath = "/tmp/tasks.db"
	cfg.simulateOrgs = []string{"org-a"}
	assert.Len(t, cfg.providerOptions(), 3)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	cfg := &serveConfig{socket: config.DefaultConfig()}
	cfg.socket.InboundPolicy = "open"

	err := runServe(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	cmd := NewServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--addr", ":9090", "--inbound-policy", "deny", "--simulate", "2s"}))

	addr, err := cmd.Flags().GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, ":9090", addr)

	policy, err := cmd.Flags().GetString("inbound-policy")
	require.NoError(t, err)
	assert.Equal(t, config.InboundDeny, policy)
}

func TestListenConfig(t *testing.T) {
	t.Setenv("REALTIME_WS_URL", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("REALTIME_MAX_ATTEMPTS", "")
	t.Setenv("REALTIME_BASE_DELAY", "")

	_, err := (&listenConfig{maxAttempts: -1}).clientConfig()
	assert.Error(t, err)

	cc, err := (&listenConfig{userID: "u-1", maxAttempts: -1}).clientConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DevelopmentURL, cc.URL)
	assert.Equal(t, 5, cc.MaxAttempts)

	cc, err = (&listenConfig{userID: "u-1", url: "ws://other:9000/ws", maxAttempts: 2}).clientConfig()
	require.NoError(t, err)
	assert.Equal(t, "ws://other:9000/ws", cc.URL)
	assert.Equal(t, 2, cc.MaxAttempts)
}
