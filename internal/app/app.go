// Package app wires configuration to the analysis pipeline and its
// dependencies.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wikimetron/internal/cache"
	"wikimetron/internal/config"
	"wikimetron/internal/infrastructure/wiki"
	"wikimetron/internal/logging"
	"wikimetron/internal/metric"
	"wikimetron/internal/refdata"
	"wikimetron/internal/telemetry"
	"wikimetron/internal/usecase"
)

// Application holds the assembled task manager plus the settings the
// entrypoints need.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	manager *usecase.Manager
}

// New builds a runnable application instance from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	telemetry.Init()

	blacklist, err := refdata.LoadOptional(cfg.Datasets.BlacklistPath)
	if err != nil {
		return nil, fmt.Errorf("load blacklist dataset: %w", err)
	}
	sockpuppets, err := refdata.LoadOptional(cfg.Datasets.SockpuppetPath)
	if err != nil {
		return nil, fmt.Errorf("load sockpuppet dataset: %w", err)
	}
	baseLogger.Info("reference datasets loaded",
		"blacklist", blacklist.Len(), "sockpuppets", sockpuppets.Len())

	client := wiki.NewClient(wiki.Options{
		UserAgent:         cfg.Source.UserAgent,
		APIBase:           cfg.Source.APIBase,
		PageviewsBase:     cfg.Source.PageviewsBase,
		InferenceURL:      cfg.Source.InferenceURL,
		Timeout:           cfg.Source.Timeout.Std(),
		MaxRetries:        cfg.Source.MaxRetries,
		RetryDelay:        cfg.Source.RetryDelay.Std(),
		MaxRevisions:      cfg.Source.MaxRevisions,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Burst:             cfg.Source.Burst,
	}, baseLogger.With("component", "source"))

	cached := cache.NewCachedSource(client, cache.New(), cfg.Cache.TTL.Std())

	registry := metric.NewRegistry(baseLogger.With("component", "metrics"))
	pipeline := usecase.NewPipeline(cached, registry, blacklist, sockpuppets,
		baseLogger.With("component", "pipeline"))
	manager := usecase.NewManager(pipeline, cached, cfg.Tasks.Workers,
		baseLogger.With("component", "tasks"))

	return &Application{cfg: cfg, logger: baseLogger, manager: manager}, nil
}

// Manager exposes the task manager to the entrypoints.
func (a *Application) Manager() *usecase.Manager {
	return a.manager
}

// DefaultLanguage is the batch-level language fallback.
func (a *Application) DefaultLanguage() string {
	return a.cfg.Analysis.DefaultLanguage
}

// RunJanitor prunes expired terminal tasks until the context ends.
func (a *Application) RunJanitor(ctx context.Context) {
	retention := a.cfg.Tasks.Retention.Std()
	if retention <= 0 {
		retention = time.Hour
	}
	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.manager.Prune(retention); removed > 0 {
				a.logger.Info("pruned finished tasks", "count", removed)
			}
		}
	}
}
