// Command researchflowd serves the research assistant modules over HTTP.
//
// Configuration is read from the environment (see package config). Module
// outputs are cached per module and entity; the persistent tier is chosen
// with RESEARCHFLOW_STORE.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/auth"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/cache"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/config"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/health"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/resilience"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/service"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/store"
	"github.com/n2kfchd42b-glitch/researchflow-sub002/store/sqlite"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "researchflowd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(version))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	runs, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}
	logger := obs.Logger()

	persist, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	credential := gateway.NewCredential(cfg.APIKeyRef, nil)
	gw := gateway.Instrumented(newGateway(cfg, credential), cfg.Provider, runs.Metrics(), logger)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "persistent tier circuit changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	cacheOpts := []cache.Option{
		cache.WithPrefix(cfg.KeyPrefix),
		cache.WithBreaker(breaker),
		cache.WithLogger(logger),
		cache.WithMetrics(runs.Metrics()),
	}
	if persist != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(persist))
	}
	c := cache.New(cacheOpts...)

	svc := service.New(cache.NewMiddleware(c, cache.DefaultPolicy()), gw,
		service.WithObserveMiddleware(runs),
		service.WithLogger(logger),
	)

	checks := health.NewAggregator(health.AggregatorConfig{})
	checks.Register(health.NewCredentialChecker(credential))
	checks.Register(health.NewCacheChecker(c))
	if persist != nil {
		checks.Register(health.NewStoreChecker(persist, cfg.StoreQuotaBytes))
	}

	srv := &server{
		registry: service.DefaultRegistry(svc),
		health:   checks,
		authn:    newAuthenticator(cfg),
		logger:   logger,
	}
	if cfg.Observe.MetricsExporter == "prometheus" {
		srv.metrics = promhttp.Handler()
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening",
			observe.Field{Key: "addr", Value: cfg.Listen},
			observe.Field{Key: "provider", Value: cfg.Provider},
			observe.Field{Key: "store", Value: cfg.Store},
			observe.Field{Key: "auth", Value: srv.authn != nil},
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func newGateway(cfg config.Config, credential *gateway.Credential) gateway.Gateway {
	if cfg.Provider == config.ProviderGemini {
		return gateway.NewGeminiClient(gateway.GeminiConfig{
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, credential)
	}
	return gateway.NewMessagesClient(gateway.MessagesConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, credential)
}

// openStore returns a nil store when persistence is disabled.
func openStore(cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.StorePath, sqlite.WithQuota(cfg.StoreQuotaBytes))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoreNone:
		return nil, func() {}, nil
	default:
		return store.NewMemory(cfg.StoreQuotaBytes), func() {}, nil
	}
}

// newAuthenticator returns nil when no credentials are configured, which
// disables authentication.
func newAuthenticator(cfg config.Config) auth.Authenticator {
	if !cfg.AuthEnabled() {
		return nil
	}
	var authns []auth.Authenticator
	if keys := cfg.Keys(); len(keys) > 0 {
		authns = append(authns, auth.NewAPIKeyAuthenticator("", keys...))
	}
	if cfg.JWTSecret != "" {
		authns = append(authns, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}))
	}
	return auth.NewComposite(authns...)
}
