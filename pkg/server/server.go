// Package server assembles the finmon HTTP stack: repositories, services,
// handlers and middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/config"
	"github.com/ekaya-inc/finmon/pkg/database"
	"github.com/ekaya-inc/finmon/pkg/handlers"
	"github.com/ekaya-inc/finmon/pkg/middleware"
	"github.com/ekaya-inc/finmon/pkg/repositories"
	"github.com/ekaya-inc/finmon/pkg/services"
)

// Services groups the service layer so callers other than HTTP (the CLI)
// can share the wiring.
type Services struct {
	Projects services.ProjectService
	Events   services.EventService
	Users    services.UserService
	Issuer   auth.TokenIssuer
}

// NewServices builds the service layer on top of the Postgres repositories.
func NewServices(cfg *config.Config, logger *zap.Logger) *Services {
	projectRepo := repositories.NewProjectRepository()
	eventRepo := repositories.NewEventRepository()
	costRepo := repositories.NewCostRepository()
	userRepo := repositories.NewUserRepository()
	uow := database.NewUnitOfWork()

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	aggregator := services.NewCostAggregator(eventRepo, costRepo, logger)
	propagator := services.NewCostPropagator(eventRepo, aggregator, cfg.Cost.MaxTreeDepth, logger)

	return &Services{
		Projects: services.NewProjectService(projectRepo, eventRepo, costRepo, uow, logger),
		Events:   services.NewEventService(projectRepo, eventRepo, costRepo, aggregator, propagator, uow, cfg.Cost.NormalizeCurrency, logger),
		Users:    services.NewUserService(userRepo, issuer, logger),
		Issuer:   issuer,
	}
}

// NewHandler registers every route on a fresh mux. API routes hold one
// pooled connection per request through the database scope middleware.
func NewHandler(cfg *config.Config, db *database.DB, svc *Services, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	api := newScopedMux(mux, db, logger)

	authService := auth.NewAuthService(svc.Issuer, cfg.Auth.CookieName, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	cookies := auth.DeriveCookieSettings(cfg.Auth.CookieName, cfg.BaseURL, cfg.Auth.CookieDomain)

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewMetricsHandler(prometheus.DefaultGatherer).RegisterRoutes(mux)

	handlers.NewAuthHandler(svc.Users, cookies, logger).RegisterRoutes(api, authMiddleware)
	handlers.NewProjectsHandler(svc.Projects, logger).RegisterRoutes(api, authMiddleware)
	handlers.NewEventsHandler(svc.Events, logger).RegisterRoutes(api, authMiddleware)

	return middleware.Chain(mux,
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
	)
}

// newScopedMux returns a mux whose routes run inside database.WithScope and
// are mounted on parent under /api/.
func newScopedMux(parent *http.ServeMux, db *database.DB, logger *zap.Logger) *http.ServeMux {
	api := http.NewServeMux()
	parent.Handle("/api/", database.WithScope(db, logger)(api.ServeHTTP))
	return api
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting finmon",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}
