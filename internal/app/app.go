package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/birthchart/internal/constants"
	"github.com/chrissnell/birthchart/internal/controllers/restserver"
	"github.com/chrissnell/birthchart/pkg/config"
	"github.com/chrissnell/birthchart/pkg/metrics"
)

// App represents the chart server application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	chartOpts, defaultSystem, err := ChartOptions(cfg.Ephemeris)
	if err != nil {
		return err
	}
	provider, fileset := NewProvider(cfg.Ephemeris, a.logger)

	store, err := NewChartStore(ctx, cfg.Storage, a.logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctrl, err := restserver.NewController(ctx, &wg, provider, store, metrics.NewCollector(constants.MetricsNamespace),
		restserver.Options{
			Server:             cfg.Server,
			Chart:              chartOpts,
			DefaultHouseSystem: defaultSystem,
			Fileset:            fileset,
		}, a.logger)
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
