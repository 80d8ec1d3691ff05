package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/client"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// listenConfig holds configuration for the listen command.
type listenConfig struct {
	url            string
	userID         string
	organizationID string
	maxAttempts    int
}

// NewListenCmd creates the listen subcommand, a reference consumer that
// keeps a connection open and logs every event it receives.
func NewListenCmd() *cobra.Command {
	cfg := &listenConfig{maxAttempts: -1}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to a realtime server and log received events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := stderrLogger()
			if err != nil {
				return err
			}
			return runListen(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&cfg.url, "url", "", "WebSocket endpoint (default: REALTIME_WS_URL or by APP_ENV)")
	cmd.Flags().StringVar(&cfg.userID, "user", "", "user id sent in the handshake (required)")
	cmd.Flags().StringVar(&cfg.organizationID, "org", "", "organization id sent in the handshake")
	cmd.Flags().IntVar(&cfg.maxAttempts, "max-attempts", -1, "reconnect attempts before giving up (default: REALTIME_MAX_ATTEMPTS or 5)")

	return cmd
}

// clientConfig resolves the client configuration from the environment and flags.
func (cfg *listenConfig) clientConfig() (*config.ClientConfig, error) {
	if cfg.userID == "" {
		return nil, oops.In("cli").Errorf("--user is required")
	}
	cc, err := config.ClientConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.url != "" {
		cc.URL = cfg.url
	}
	if cfg.maxAttempts >= 0 {
		cc.MaxAttempts = cfg.maxAttempts
	}
	return cc, nil
}

func runListen(ctx context.Context, cfg *listenConfig, logger zerolog.Logger) error {
	cc, err := cfg.clientConfig()
	if err != nil {
		return oops.In("cli").Wrapf(err, "invalid configuration")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := client.NewManager(cc, logger)
	m.Subscribe(client.Wildcard, func(evt types.Event) error {
		payload := []byte(evt.Payload)
		if len(payload) == 0 {
			payload = []byte("null")
		}
		logger.Info().
			Str("type", string(evt.Type)).
			Str("organization_id", evt.OrganizationID).
			Str("user_id", evt.UserID).
			Str("timestamp", evt.Timestamp).
			RawJSON("payload", payload).
			Msg("event")
		return nil
	})

	logger.Info().Str("url", cc.URL).Str("user_id", cfg.userID).Msg("connecting")
	if err := m.Connect(cfg.userID, cfg.organizationID); err != nil {
		return err
	}

	<-ctx.Done()
	m.Disconnect()
	return nil
}
