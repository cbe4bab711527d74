// Package app wires the server runtime: config, logging, storage, the auth
// lifecycle, HTTP routes, and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lsteen89/steenauth/cmd/identity"
	"github.com/lsteen89/steenauth/cmd/internal/auth"
	authapi "github.com/lsteen89/steenauth/cmd/internal/auth/api"
	"github.com/lsteen89/steenauth/cmd/internal/auth/blacklist"
	"github.com/lsteen89/steenauth/cmd/internal/auth/loginguard"
	"github.com/lsteen89/steenauth/cmd/internal/auth/session"
	"github.com/lsteen89/steenauth/cmd/internal/auth/tokens"
	"github.com/lsteen89/steenauth/cmd/internal/metrics"
	"github.com/lsteen89/steenauth/cmd/internal/realtime"
)

// App is the server runtime: it owns the HTTP server and the lifecycle of
// its backing connections.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	rdb    *redis.Client

	registry *realtime.Registry
	ws       *realtime.Gateway
	auth     *authapi.Handler
	metrics  *metrics.Metrics
	guard    *loginguard.PostgresGuard
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("STEEN_DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := NewRedisClient(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if rdb == nil {
		log.Warn("blacklist.disabled", "reason", "no redis configured")
	}

	tokenCfg, err := tokens.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	codec, err := tokens.NewCodec(tokenCfg)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	guardCfg, err := loginguard.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var bl auth.BlacklistStore
	var validatorBL tokens.Blacklist
	if rdb != nil {
		store := blacklist.NewStore(rdb)
		bl = store
		validatorBL = store
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	registry := realtime.NewRegistry(log)
	validator := tokens.NewValidator(codec, validatorBL)
	guard := loginguard.NewPostgresGuard(pool, guardCfg)

	orch := auth.NewOrchestrator(
		log,
		users,
		session.NewPostgresStore(pool),
		sessCfg,
		codec,
		tokenCfg,
		bl,
		guard,
		registry,
		m,
	)

	authHandler := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), orch, validator)
	ws := realtime.NewGateway(log, registry, validator)
	ws.SetConnGauge(m.WSConnections)

	return &App{
		cfg:      cfg,
		log:      log,
		dbPool:   pool,
		rdb:      rdb,
		registry: registry,
		ws:       ws,
		auth:     authHandler,
		metrics:  m,
		guard:    guard,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.rdb, a.auth, a.ws, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "blacklist_enabled", a.rdb != nil)

	// Aged login attempts don't affect correctness (the guard counts inside
	// its window), so pruning is a background chore.
	go a.sweepLoginAttempts(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Live sockets first so clients see a clean close, then the listener,
	// then the backing connections.
	a.registry.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	a.dbPool.Close()

	a.log.Info("server.stopped")
	return nil
}

func (a *App) sweepLoginAttempts(ctx context.Context) {
	interval := EnvDuration("STEEN_AUTH_LOCKOUT_SWEEP_INTERVAL", time.Hour)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.guard.Sweep(ctx, time.Now().UTC())
			if err != nil {
				a.log.Error("loginguard.sweep.fail", "err", err)
				continue
			}
			if n > 0 {
				a.log.Info("loginguard.sweep", "pruned", n)
			}
		}
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
