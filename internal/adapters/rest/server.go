package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	core_port "github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// Server - REST + SSE surface of the favorites service.
type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewRouter wires the routes; split out so tests can serve it directly.
func NewRouter(allowedOrigins []string, handlers *FavoritesHandler, baseLogger core_port.LoggerPort) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", "X-Browser-ID", "X-Tab-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"ETag", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TabMiddleware)

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", handlers.GetFavorites)
			r.Post("/", handlers.AddFavorite)
			r.Delete("/", handlers.ClearFavorites)

			r.Get("/page", handlers.GetFavoritesPage)
			r.Get("/storage-info", handlers.GetStorageInfo)
			r.Post("/cache/refresh", handlers.RefreshCache)
			r.Get("/events", handlers.SubscribeToFavorites)

			r.Get("/{favoriteID}/status", handlers.GetFavoriteStatus)
			r.Delete("/{favoriteID}", handlers.RemoveFavorite)
		})

		r.Delete("/tabs/current", handlers.CloseTab)
	})

	return r
}

func NewServer(cfg ServerConfig, handlers *FavoritesHandler, baseLogger core_port.LoggerPort) *Server {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg.AllowedOrigins, handlers, baseLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// SSE streams never go idle on their own
	srv.RegisterOnShutdown(handlers.Shutdown)

	return &Server{
		httpServer: srv,
		logger:     baseLogger.WithFields(core_port.Fields{"component": "rest_server"}),
	}
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", core_port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
