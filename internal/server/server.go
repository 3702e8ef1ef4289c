package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	handlers "github.com/ppiankov/alertspectre/internal/handlers/alerts"
	alertmiddleware "github.com/ppiankov/alertspectre/internal/server/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

// WebAPI is the HTTP front end for audits and alert feeds.
type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Auditor handlers.Auditor
	Options handlers.Options
}

// Config holds the listen address and dependencies.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// NewWebAPI wires the router.
func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	alertHandler := handlers.NewHandler(config.Dependencies.Auditor, config.Dependencies.Options)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(alertmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/", alertHandler.Index)
	router.Get("/health", alertHandler.Health)
	router.Route("/api", func(r chi.Router) {
		r.Get("/services", alertHandler.Services)
		r.Get("/account-id", alertHandler.AccountID)
		r.Post("/audit", alertHandler.Audit)
		r.Route("/costs", func(r chi.Router) {
			r.Post("/", alertHandler.Costs)
			r.Post("/trends", alertHandler.CostTrends)
			r.Post("/anomalies", alertHandler.CostAnomalies)
		})
		r.Post("/budgets", alertHandler.Budgets)
		r.Post("/guardduty", alertHandler.GuardDuty)
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", alertHandler.Alerts)
			r.Post("/feed", alertHandler.Feed)
			r.Post("/summary", alertHandler.Summary)
			r.Post("/configure", alertHandler.Configure)
		})
	})

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

// Handler returns the routed handler.
func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(shutdownCtx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}
		return err
	}
}
