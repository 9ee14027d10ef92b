package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/insights"
	applog "spendwise/internal/log"
	"spendwise/internal/nudge"
	"spendwise/internal/services"
	"spendwise/internal/storage"
)

// AppOptions selects the optional parts of an App.
type AppOptions struct {
	// Publish connects the AMQP publisher when AMQP_URL is set.
	Publish bool
	// Factory overrides the backend factory; nil uses the default.
	Factory backend.Factory
}

// App is the wired service graph shared by every binary.
type App struct {
	Config    *config.Config
	Logger    *applog.Logger
	Store     backend.Backend
	Rules     config.Resolved
	Ingest    *services.IngestService
	Insights  *services.InsightsService
	Nudges    *services.NudgeService
	Publisher *amqp.Client // nil when publishing is off or unavailable

	caches  *cache.Manager
	closers []func() error
}

// NewApp opens the configured store, resolves the rules file and builds the
// services on top. Close releases everything NewApp acquired.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts AppOptions) (*App, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	resolved, err := rules.Resolve()
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  res.Backend,
		Rules:  resolved,
	}
	if res.Cleanup != nil {
		app.closers = append(app.closers, res.Cleanup)
	}

	lru := cache.NewLRUCache[core.Insights](cfg.InsightsCacheSize, cfg.InsightsCacheTTL)
	app.caches = cache.NewManager()
	app.caches.Register(lru)
	app.caches.StartCleanup(cacheSweepInterval(cfg.InsightsCacheTTL))

	agg := insights.NewAggregator(cfg.TopMerchants)
	var insightsCache cache.Cache[core.Insights]
	if cfg.InsightsCacheTTL > 0 {
		insightsCache = lru
	}
	app.Insights = services.NewInsightsService(res.Backend, agg, insightsCache)

	var publisher services.Publisher
	if opts.Publish && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				applog.FieldComponent, applog.ComponentAMQP,
				applog.FieldError, err)
		} else {
			logger.InfoContext(ctx, "Initialized AMQP publisher",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			app.Publisher = client
			app.closers = append(app.closers, client.Close)
			publisher = client
		}
	}

	locker := storage.NewMonthLocker()
	app.Ingest = services.NewIngestService(res.Backend, resolved.Categorizer, locker, publisher, app.Insights)

	engine := nudge.NewEngine(resolved.Nudges, resolved.Budgets, res.Backend)
	app.Nudges = services.NewNudgeService(res.Backend, app.Insights, engine)

	logger.InfoContext(ctx, "Application wired",
		"backend", cfg.DataBackend,
		"rules_file", cfg.RulesFile,
		"categories", len(resolved.Categorizer.Categories()),
		"budgets", len(resolved.Budgets),
		"amqp_enabled", app.Publisher != nil)
	return app, nil
}

// Close stops the cache sweeper and releases connections in reverse order.
func (a *App) Close() error {
	if a.caches != nil {
		a.caches.Stop()
		a.caches = nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}

// cacheSweepInterval sweeps once per TTL, or every ten minutes when
// caching is off.
func cacheSweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	return ttl
}
