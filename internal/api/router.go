package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "trailgate/docs"
	middlewarex "trailgate/internal/api/middleware"
	"trailgate/internal/config"
	"trailgate/internal/domain/ratelimit"
	authinfra "trailgate/internal/infra/auth"
	metricsinfra "trailgate/internal/infra/metrics"
	"trailgate/internal/service"
)

type Router struct {
	*chi.Mux
	Server *http.Server
	logger *slog.Logger
	cfg    *config.Config
}

func New(cfg *config.Config, logger *slog.Logger, metrics *metricsinfra.Metrics, limits *service.LimitService, tokens *authinfra.Tokens) (*Router, error) {
	guardPreset, err := ratelimit.ParsePreset(cfg.RateLimit.GuardPreset)
	if err != nil {
		return nil, fmt.Errorf("guard preset: %w", err)
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	if cfg.HTTP.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(middlewarex.Logger(logger))
	r.Use(middlewarex.Metrics(metrics))

	limitsHandler := NewLimitsHandler(limits)
	adminHandler := NewAdminHandler(limits)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.RateLimit(limits, limits.PresetTarget(guardPreset), logger))

		r.Post("/limits/check", limitsHandler.Check)
		r.Get("/limits/remaining", limitsHandler.Remaining)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarex.AdminAuth(tokens))
			r.Delete("/limits", adminHandler.ClearAll)
			r.Delete("/limits/{key}", adminHandler.ResetKey)
			r.Get("/violations", adminHandler.Violations)
		})
	})

	router := &Router{
		Mux:    r,
		logger: logger,
		cfg:    cfg,
	}

	router.Server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return router, nil
}
