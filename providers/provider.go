package providers

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/bridge"
	"github.com/yashUcr773/task-management-app-sub001/src/hub"
	"github.com/yashUcr773/task-management-app-sub001/src/metrics"
	"github.com/yashUcr773/task-management-app-sub001/src/producer"
	"github.com/yashUcr773/task-management-app-sub001/src/service"
	"github.com/yashUcr773/task-management-app-sub001/src/store"
)

// Version is reported by /ws/info and the MCP server.
const Version = "0.1.0"

// Provider composes the realtime server: hub, service, metrics, the
// optional Redis bridge, the optional simulator and the task store hooks.
type Provider struct {
	active bool
	cfg    *config.SocketConfig
	logger zerolog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *hub.Hub
	service  *service.Service
	hooks    *producer.Hooks
	bridge   bridge.Bridge
	store    *store.Store

	redisCfg      *bridge.RedisConfig
	identity      IdentityProvider
	simulatorOrgs []string
	storePath     string
	cancel        context.CancelFunc
}

var _ hub.MessageBridge = (*bridge.RedisBridge)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithRedis enables the cross-instance bridge. Activation continues
// standalone when Redis is unreachable.
func WithRedis(cfg *bridge.RedisConfig) Option {
	return func(p *Provider) { p.redisCfg = cfg }
}

// WithIdentity replaces QueryIdentity for websocket handshakes.
func WithIdentity(id IdentityProvider) Option {
	return func(p *Provider) { p.identity = id }
}

// WithSimulatorOrgs scopes simulated events to the given organizations.
func WithSimulatorOrgs(orgs ...string) Option {
	return func(p *Provider) { p.simulatorOrgs = orgs }
}

// WithStore opens a SQLite task store at path whose committed mutations
// are published through the hub.
func WithStore(path string) Option {
	return func(p *Provider) { p.storePath = path }
}

// New creates an inactive provider. A nil cfg uses config.DefaultConfig.
func New(cfg *config.SocketConfig, logger zerolog.Logger, opts ...Option) *Provider {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p := &Provider{
		cfg:      cfg,
		logger:   logger,
		identity: QueryIdentity{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() string     { return "taskboard/realtime" }
func (p *Provider) IsActive() bool { return p.active }

// Activate builds the hub and service and starts the event loop, the
// bridge and the simulator.
func (p *Provider) Activate(ctx context.Context) error {
	if p.active {
		return nil
	}

	p.registry = metrics.NewRegistry()
	p.metrics = metrics.New(p.registry)
	p.hub = hub.New(p.logger, hub.WithSocketConfig(p.cfg), hub.WithMetrics(p.metrics))
	p.service = service.New(p.hub, p.logger)
	p.hooks = producer.NewHooks(p.service, p.logger)

	if p.cfg.AnnouncePresence {
		p.service.AnnouncePresence()
	}

	go p.hub.Run()

	if p.storePath != "" {
		st, err := store.Open(p.storePath, p.hooks)
		if err != nil {
			p.hub.Stop()
			return err
		}
		p.store = st
	}

	if p.redisCfg != nil {
		p.initBridge()
	}

	ctx, p.cancel = context.WithCancel(ctx)
	if p.cfg.SimulatorInterval > 0 {
		sim, err := producer.NewSimulator(p.service, producer.SampleTasks(p.simulatorOrgs...),
			p.cfg.SimulatorInterval, p.logger)
		if err != nil {
			p.logger.Warn().Err(err).Msg("simulator disabled")
		} else {
			go sim.Run(ctx)
		}
	}

	p.active = true
	p.logger.Info().Str("provider", p.ID()).Str("inbound_policy", p.cfg.InboundPolicy).Msg("realtime provider activated")
	return nil
}

// initBridge tries to start the Redis pub/sub bridge.
// If Redis is not reachable, the hub runs in standalone mode.
func (p *Provider) initBridge() {
	rb, err := bridge.NewRedisBridge(p.redisCfg, p.hub, p.logger)
	if err != nil {
		p.logger.Warn().Err(err).Msg("redis bridge misconfigured, running standalone")
		return
	}

	if err := rb.Start(); err != nil {
		_ = rb.Stop()
		p.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}

	p.bridge = rb
	p.hub.SetBridge(rb)
	p.logger.Info().Str("redis_addr", p.redisCfg.Addr).Msg("redis bridge connected")
}

// Deactivate stops the simulator, bridge, store and hub event loop.
func (p *Provider) Deactivate() error {
	if !p.active {
		return nil
	}
	var errs []error
	if p.cancel != nil {
		p.cancel()
	}
	if p.bridge != nil {
		if err := p.bridge.Stop(); err != nil {
			p.logger.Error().Err(err).Msg("bridge stop error")
			errs = append(errs, err)
		}
		p.bridge = nil
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, err)
		}
		p.store = nil
	}
	p.hub.Stop()
	p.active = false
	return errors.Join(errs...)
}

// Service exposes the realtime service for in-process publishers.
func (p *Provider) Service() *service.Service { return p.service }

// Hooks exposes the post-commit mutation hooks.
func (p *Provider) Hooks() *producer.Hooks { return p.hooks }

// Store returns the task store, or nil when none was configured.
func (p *Provider) Store() *store.Store { return p.store }

// Registry returns the private Prometheus registry.
func (p *Provider) Registry() *prometheus.Registry { return p.registry }
