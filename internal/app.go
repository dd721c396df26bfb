package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"

	"github.com/apesoftware1/Memorial-sub001/internal/adapters/catalogue_client"
	"github.com/apesoftware1/Memorial-sub001/internal/adapters/rest"
	"github.com/apesoftware1/Memorial-sub001/internal/configs"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/usecase"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config    *configs.AppConfig
	backends  *Backends
	tabs      *usecase.TabManager
	apiServer *rest.Server

	fluentClient *fluent.Fluent
	logger       port.LoggerPort
}

// StoreTemplate is the per-tab store configuration derived from cfg.
func StoreTemplate(cfg *configs.AppConfig) usecase.FavoritesStoreConfig {
	template := usecase.DefaultFavoritesStoreConfig("", "")
	template.CacheDuration = cfg.Favorites.CacheDuration
	template.BackupInterval = cfg.Favorites.BackupInterval
	return template
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	baseLogger, fluentClient, err := NewLogger(appConfig, os.Stdout)
	if err != nil {
		return nil, err
	}
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})

	backends, err := OpenBackends(context.Background(), appConfig, baseLogger)
	if err != nil {
		appLogger.Error("Failed to open backends", err, nil)
		if fluentClient != nil {
			fluentClient.Close()
		}
		return nil, err
	}

	tabs := usecase.NewTabManager(backends.Factory, backends.Bus, StoreTemplate(appConfig), baseLogger,
		usecase.WithIdleTimeout(appConfig.Favorites.TabIdleTimeout))

	opts := []rest.HandlerOption{rest.WithTabCount(tabs.Len)}
	if appConfig.Catalogue.URL != "" {
		catalogue := catalogue_client.NewCatalogueAPIClient(appConfig.Catalogue.URL, appConfig.Catalogue.Timeout)
		opts = append(opts, rest.WithCatalogue(catalogue, catalogue_client.ErrListingNotFound))
		appLogger.Info("Catalogue client configured", port.Fields{"url": appConfig.Catalogue.URL})
	}

	apiHandlers := rest.NewFavoritesHandler(tabs, opts...)
	apiServer := rest.NewServer(rest.ServerConfig{
		Port:           appConfig.Rest.Port,
		AllowedOrigins: appConfig.Rest.AllowedOrigins,
	}, apiHandlers, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	return &App{
		config:    appConfig,
		backends:  backends,
		tabs:      tabs,
		apiServer: apiServer,

		fluentClient: fluentClient,
		logger:       appLogger,
	}, nil
}

// Run serves until SIGINT/SIGTERM or a server failure, then shuts down.
func (a *App) Run() error {
	defer a.shutdown()

	a.logger.Info("Application is starting...", nil)

	serverErrors := make(chan error, 1)
	go func() {
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
		return nil
	case err := <-serverErrors:
		a.logger.Error("Server failed, shutting down", err, nil)
		return err
	}
}

func (a *App) shutdown() {
	a.logger.Info("Shutdown sequence initiated...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.apiServer.Stop(ctx); err != nil {
		a.logger.Error("Error during API server shutdown", err, nil)
	}

	a.tabs.CloseAll()
	a.backends.Close(a.logger)

	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent may already be unreachable
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
}
