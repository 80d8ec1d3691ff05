package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/providers"
	"github.com/yashUcr773/task-management-app-sub001/src/bridge"
)

const shutdownTimeout = 10 * time.Second

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	socket       *config.SocketConfig
	redis        bool
	redisAddr    string
	dbPath       string
	simulateOrgs []string
}

// Validate checks that the configuration is valid.
func (cfg *serveConfig) Validate() error {
	if cfg.socket.Addr == "" {
		return oops.In("cli").Errorf("addr is required")
	}
	switch cfg.socket.InboundPolicy {
	case config.InboundScoped, config.InboundDeny, config.InboundVerbatim:
	default:
		return oops.In("cli").With("policy", cfg.socket.InboundPolicy).
			Errorf("inbound-policy must be one of %s, %s, %s", config.InboundScoped, config.InboundDeny, config.InboundVerbatim)
	}
	if cfg.socket.SimulatorInterval < 0 {
		return oops.In("cli").Errorf("simulate interval must not be negative")
	}
	return nil
}

// providerOptions translates flags into provider options.
func (cfg *serveConfig) providerOptions() []providers.Option {
	var opts []providers.Option
	if cfg.redis {
		rc := bridge.RedisConfigFromEnv()
		if cfg.redisAddr != "" {
			rc.Addr = cfg.redisAddr
		}
		opts = append(opts, providers.WithRedis(rc))
	}
	if cfg.dbPath != "" {
		opts = append(opts, providers.WithStore(cfg.dbPath))
	}
	if len(cfg.simulateOrgs) > 0 {
		opts = append(opts, providers.WithSimulatorOrgs(cfg.simulateOrgs...))
	}
	return opts
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{socket: config.FromEnv()}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the realtime WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := stderrLogger()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.socket.Addr, "addr", cfg.socket.Addr, "HTTP and WebSocket listen address")
	flags.StringVar(&cfg.socket.InboundPolicy, "inbound-policy", cfg.socket.InboundPolicy, "handling of client-published frames (scoped, deny or verbatim)")
	flags.IntVar(&cfg.socket.MaxConnections, "max-connections", cfg.socket.MaxConnections, "connection limit (0 = unlimited)")
	flags.BoolVar(&cfg.socket.AnnouncePresence, "presence", cfg.socket.AnnouncePresence, "publish user_joined and user_left")
	flags.DurationVar(&cfg.socket.SimulatorInterval, "simulate", cfg.socket.SimulatorInterval, "emit synthetic task events at this interval (0 = off)")
	flags.StringSliceVar(&cfg.simulateOrgs, "simulate-orgs", nil, "organizations for synthetic events (default: unscoped)")
	flags.BoolVar(&cfg.redis, "redis", false, "relay events between instances through Redis")
	flags.StringVar(&cfg.redisAddr, "redis-addr", "", "Redis address (default: REDIS_ADDR or localhost:6379)")
	flags.StringVar(&cfg.dbPath, "db", "", "SQLite task store path (empty = no task API)")

	return cmd
}

func runServe(ctx context.Context, cfg *serveConfig, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return oops.In("cli").Wrapf(err, "invalid configuration")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := providers.New(cfg.socket, logger, cfg.providerOptions()...)
	if err := p.Activate(ctx); err != nil {
		return oops.In("cli").Wrapf(err, "activate realtime provider")
	}
	defer func() {
		if err := p.Deactivate(); err != nil {
			logger.Error().Err(err).Msg("deactivate failed")
		}
	}()

	app := fiber.New(fiber.Config{AppName: "taskboard-realtime"})
	p.RegisterRoutes(app)

	srv := &fasthttp.Server{
		Handler: p.Handler(app),
		Name:    "taskboard-realtime",
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.socket.Addr).Msg("listening")
		errCh <- srv.ListenAndServe(cfg.socket.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.In("cli").With("addr", cfg.socket.Addr).Wrapf(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}
	return nil
}
