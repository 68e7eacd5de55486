package cli

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bookstore-session/catalog"
	"github.com/jrsteele09/bookstore-session/gateway"
	"github.com/jrsteele09/bookstore-session/gateway/oidcgateway"
	"github.com/jrsteele09/bookstore-session/internal/config"
	"github.com/jrsteele09/bookstore-session/internal/metrics"
	"github.com/jrsteele09/bookstore-session/pipeline"
	"github.com/jrsteele09/bookstore-session/sessions"
	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/token/memstore"
	"github.com/jrsteele09/bookstore-session/token/redisstore"
	"github.com/jrsteele09/bookstore-session/token/refresh"
	"github.com/jrsteele09/bookstore-session/token/sqlitestore"
)

// App is one command's view of the session layer.
type App struct {
	Config   config.Config
	Store    token.Store
	Session  *sessions.Manager
	Catalog  *catalog.Client
	Registry *prometheus.Registry

	closers []func() error
}

// NewApp wires the session layer described by cfg. The refresh coordinator
// is built from the refresher alone, then the pipeline on top of it, then the
// gateway that uses the pipeline for session calls.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Registry: prometheus.NewRegistry()}

	store, err := app.openStore(cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	plain := &http.Client{Timeout: cfg.GetRequestTimeout()}
	m := metrics.New(app.Registry)

	newGateway, refresher, err := gatewayFactory(ctx, cfg, store, plain)
	if err != nil {
		app.Close()
		return nil, err
	}

	coord := refresh.New(store, refresher,
		refresh.WithMetrics(m),
		refresh.WithTimeout(cfg.GetRequestTimeout()),
	)
	authorized := pipeline.New(http.DefaultTransport, store, coord,
		pipeline.WithSkew(cfg.GetRefreshSkew()),
		pipeline.WithMetrics(m),
	).Client(cfg.GetRequestTimeout())

	app.Session = sessions.New(store, newGateway(authorized), coord)
	app.Catalog = catalog.New(cfg.GetAPIURL(), authorized)
	return app, nil
}

func (a *App) openStore(cfg config.Config) (token.Store, error) {
	switch cfg.GetTokenStore() {
	case config.StoreSQLite:
		store, err := sqlitestore.Open(cfg.GetTokenDB())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
		a.closers = append(a.closers, rdb.Close)
		return redisstore.New(rdb, cfg.GetRedisPrefix()), nil
	case config.StoreMemory:
		return memstore.New(), nil
	}
	return nil, errors.Errorf("unknown token store %q", cfg.GetTokenStore())
}

// gatewayFactory returns the refresher for the coordinator and a constructor
// for the gateway once the authorized client exists.
func gatewayFactory(ctx context.Context, cfg config.Config, store token.Store, plain *http.Client) (func(*http.Client) gateway.Gateway, refresh.Refresher, error) {
	switch cfg.GetGateway() {
	case config.GatewayOIDC:
		provider, err := oidcgateway.Discover(ctx, oidcgateway.Config{
			Issuer:       cfg.GetOIDCIssuer(),
			ClientID:     cfg.GetOIDCClientID(),
			ClientSecret: cfg.GetOIDCClientSecret(),
			Scopes:       cfg.GetOIDCScopes(),
		}, plain)
		if err != nil {
			return nil, nil, err
		}
		return func(authorized *http.Client) gateway.Gateway {
			return oidcgateway.New(provider, store, authorized)
		}, provider, nil
	default:
		refresher := gateway.NewTokenRefresher(cfg.GetAuthURL(), plain)
		return func(authorized *http.Client) gateway.Gateway {
			return gateway.NewHTTP(cfg.GetAPIURL(), plain, authorized, refresher)
		}, refresher, nil
	}
}

// logMetrics writes the non-zero session counters at debug level.
func (a *App) logMetrics() {
	families, err := a.Registry.Gather()
	if err != nil {
		log.Debug().Err(err).Msg("failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			event := log.Debug().Str("metric", mf.GetName())
			for _, label := range metric.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			switch {
			case metric.GetCounter() != nil && metric.GetCounter().GetValue() > 0:
				event.Float64("value", metric.GetCounter().GetValue()).Msg("session metric")
			case metric.GetHistogram() != nil && metric.GetHistogram().GetSampleCount() > 0:
				event.Uint64("count", metric.GetHistogram().GetSampleCount()).
					Float64("sum", metric.GetHistogram().GetSampleSum()).
					Msg("session metric")
			}
		}
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close session resource")
		}
	}
	a.closers = nil
}
