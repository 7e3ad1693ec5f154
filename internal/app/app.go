package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/proenglish/go_proenglish/internal/apiclient"
	"github.com/proenglish/go_proenglish/internal/auth"
	"github.com/proenglish/go_proenglish/internal/backend"
	"github.com/proenglish/go_proenglish/internal/checkout"
	"github.com/proenglish/go_proenglish/internal/config"
	"github.com/proenglish/go_proenglish/internal/dashboard"
	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/payment"
	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/querycache"
	"github.com/proenglish/go_proenglish/internal/repository"
	"github.com/proenglish/go_proenglish/internal/routine"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config *config.Config
	// Repo is nil unless the memory backend is used.
	Repo       repository.Repository
	Backend    backend.Backend
	Payments   payment.Provider
	Cache      *querycache.Client
	API        *apiclient.API
	Wizard     *checkout.Wizard
	Dashboards *dashboard.Builder
	Tokens     *auth.TokenService
	Refill     *practice.RefillScheduler

	BaseCtx context.Context
	Cancel  context.CancelFunc

	runner      *routine.Runner
	persistDone <-chan struct{}
}

// Build wires every dependency from cfg. With the memory backend the data
// file is loaded into it first.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var (
		repo repository.Repository
		doc  *repository.DataDocument
	)
	if cfg.Backend.Type == backend.TypeMemory {
		r, err := repository.NewJSONRepository(cfg.Backend.DataFilePath)
		if err != nil {
			return nil, fmt.Errorf("cannot init repository: %w", err)
		}
		if doc, err = r.Load(ctx); err != nil {
			return nil, fmt.Errorf("cannot load data file: %w", err)
		}
		repo = r
	}

	b, err := backend.NewBackendFromConfig(backend.Options{
		Type:         cfg.Backend.Type,
		BaseURL:      cfg.Backend.BaseURL,
		ServiceToken: cfg.Backend.ServiceToken,
		Timeout:      cfg.Backend.Timeout,
		Document:     doc,
		Rules:        practice.NewRules(cfg.Practice.MaxHearts),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot init backend: %w", err)
	}

	payments, err := payment.NewProviderFromConfig(payment.Options{
		Provider:    cfg.Payment.Provider,
		SecretKey:   cfg.Payment.SecretKey,
		AutoSucceed: cfg.Payment.AutoSucceed,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot init payment provider: %w", err)
	}

	return New(cfg, repo, b, payments)
}

// New assembles the container around an existing backend and payment provider.
func New(cfg *config.Config, repo repository.Repository, b backend.Backend, payments payment.Provider) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if b == nil {
		return nil, errors.New("backend is nil")
	}
	if payments == nil {
		return nil, errors.New("payment provider is nil")
	}
	if _, ok := b.(*backend.MemoryBackend); ok && repo == nil {
		return nil, errors.New("memory backend requires a repository")
	}

	runner := routine.New("app")
	cache, err := querycache.New(&cfg.Cache, runner)
	if err != nil {
		return nil, fmt.Errorf("cannot init query cache: %w", err)
	}
	api := apiclient.New(cache, b, cfg.Practice.MaxHearts)
	if mem, ok := b.(*backend.MemoryBackend); ok {
		// a reload from disk may change anything the cache holds
		mem.OnReplace(func() { api.InvalidateAll() })
	}

	wizard, err := checkout.NewWizard(checkout.Options{
		Courses:      api,
		Payments:     payments,
		Transactions: api.Recorder(),
		SessionTTL:   cfg.Checkout.SessionTTL,
		MaxSessions:  cfg.Checkout.MaxSessions,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		cache.Close()
		return nil, err
	}

	refill, err := practice.NewRefillScheduler(cfg.Practice.RefillSpec, api, cfg.Practice.RefillTimeout)
	if err != nil {
		cache.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:     cfg,
		Repo:       repo,
		Backend:    b,
		Payments:   payments,
		Cache:      cache,
		API:        api,
		Wizard:     wizard,
		Dashboards: dashboard.NewBuilder(api, cfg.Practice.LeaderboardSize),
		Tokens:     tokens,
		Refill:     refill,
		BaseCtx:    ctx,
		Cancel:     cancel,
		runner:     runner,
	}, nil
}

// Shutdown stops background jobs, flushes pending data and closes the cache.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.Refill != nil {
		a.Refill.Stop()
	}
	if a.persistDone != nil {
		<-a.persistDone
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	a.runner.Wait()
}

// StartWatchers starts the data file watcher and persistence scheduler (memory
// backend only) and the hearts refill job.
func (a *App) StartWatchers() error {
	log := logger.WithComponent("app")
	if mem, ok := a.Backend.(*backend.MemoryBackend); ok {
		if err := a.Repo.StartWatcher(a.BaseCtx, mem); err != nil {
			return fmt.Errorf("cannot start data file watcher: %w", err)
		}
		a.persistDone = backend.StartPersistenceScheduler(a.BaseCtx, mem, a.Repo, a.Config.Backend.PersistInterval)
	}
	a.Refill.Start()
	log.Infof("hearts refill scheduled with spec %q", a.Config.Practice.RefillSpec)
	return nil
}
