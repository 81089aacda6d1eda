package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"medchat/internal/api"
	"medchat/internal/composer"
	"medchat/internal/config"
	"medchat/internal/conversation"
	"medchat/internal/engine"
	"medchat/internal/provider"
	"medchat/internal/redis"
	"medchat/internal/storage"
	"medchat/internal/worker"
)

// app holds the long-lived components built from a Config.
type app struct {
	engine     *engine.Engine
	dispatcher *worker.Dispatcher
	journal    *storage.AttemptLog
	db         *sql.DB
	cache      *redis.Client
	logger     zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}

	if cfg.Database.Driver != "" {
		db, err := storage.Open(storage.Config{
			Driver:   cfg.Database.Driver,
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			Params:   cfg.Database.Params,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		a.journal = storage.NewAttemptLog(db)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, reply cache disabled")
		} else {
			a.cache = client
		}
	}

	opts := []provider.Option{
		provider.WithTimeout(cfg.Assistant.ProviderTimeout),
		provider.WithRuleBasedOnly(cfg.Assistant.RuleBasedOnly),
		provider.WithLogger(logger),
	}
	if a.journal != nil {
		opts = append(opts, provider.WithRecorder(a.journal))
	}
	var cache provider.Cache
	if a.cache != nil {
		cache = a.cache
	}
	orchestrator := provider.NewOrchestrator(buildProviders(cfg, cache, logger), opts...)

	a.engine = engine.New(conversation.NewStore(), orchestrator, composer.New(), engine.Config{
		RuleBasedOnly: cfg.Assistant.RuleBasedOnly,
		ContextWindow: cfg.Assistant.ContextWindow,
		SystemPrompt:  cfg.Assistant.SystemPrompt,
	}, logger)

	a.dispatcher = worker.NewDispatcher(worker.Options{
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: cfg.Worker.IdleTimeout,
		Logger:      logger,
	})
	return a, nil
}

// buildProviders instantiates the network stages in provider_order. A nil
// cache leaves them unwrapped.
func buildProviders(cfg *config.Config, cache provider.Cache, logger zerolog.Logger) []provider.Provider {
	client := &http.Client{}
	var out []provider.Provider
	for _, name := range cfg.Assistant.ProviderOrder {
		pc, ok := cfg.Provider(name)
		if !ok {
			continue
		}
		var p provider.Provider
		switch pc.Kind {
		case config.KindLocal:
			p = provider.NewLocalProvider(provider.LocalConfig{
				Name:       name,
				URL:        pc.BaseURL,
				Model:      pc.Model,
				Enabled:    pc.Enabled,
				HTTPClient: client,
			})
		case config.KindHosted:
			p = provider.NewHostedProvider(provider.HostedConfig{
				Name:       name,
				URL:        pc.BaseURL,
				Model:      pc.Model,
				APIKey:     pc.APIKey,
				Enabled:    pc.Enabled,
				HTTPClient: client,
			})
		case config.KindOpenAI, config.KindClaude, config.KindGemini:
			p = provider.NewChatModelProvider(provider.ChatModelConfig{
				Name:    name,
				Kind:    pc.Kind,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				APIKey:  pc.APIKey,
				Enabled: pc.Enabled,
			})
		default:
			logger.Warn().Str("provider", name).Str("kind", pc.Kind).Msg("unknown provider kind, skipping")
			continue
		}
		if cache != nil {
			p = provider.WithCache(p, cache, cfg.Cache.TTL, logger)
		}
		out = append(out, p)
	}
	return out
}

// statsSource returns the journal as an api.StatsSource, or nil.
func (a *app) statsSource() api.StatsSource {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close database")
		}
	}
}
