// Package di wires the application together with Wire.
package di

import (
	"context"

	"ideagraph-backend/internal/application"
	"ideagraph-backend/internal/config"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Container holds the long-lived components the entrypoints need.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Watcher *config.Watcher
	Service *application.GraphService
	Router  *chi.Mux
}

// provideContainer assembles the container and subscribes the service to
// configuration reloads.
func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	watcher *config.Watcher,
	service *application.GraphService,
	router *chi.Mux,
) *Container {
	watcher.OnChange(func(updated *config.Config) {
		service.UpdateSettings(SettingsFrom(updated))
		logger.Info("Graph settings reloaded",
			zap.Float64("similarityThreshold", updated.Graph.SimilarityThreshold),
			zap.Int("relatedIdeas", updated.Graph.RelatedIdeas),
			zap.Int("maxIdeas", updated.Graph.MaxIdeas),
		)
	})

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Watcher: watcher,
		Service: service,
		Router:  router,
	}
}

// StartBackground launches the idle session sweeper. It stops when ctx is
// cancelled.
func (c *Container) StartBackground(ctx context.Context) {
	go c.Service.RunSweeper(ctx, c.Config.Graph.SweepInterval)
}
