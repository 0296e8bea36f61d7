package app

import (
	"context"
	"log/slog"

	"podrunner/internal/config"
	"podrunner/internal/runtime"
)

// EngineFactory creates podman engines from the loaded configuration.
type EngineFactory struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewEngineFactory creates a new instance of EngineFactory.
func NewEngineFactory(cfg *config.Config, logger *slog.Logger) *EngineFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineFactory{cfg: cfg, logger: logger}
}

// NewEngine connects to the configured podman socket and verifies that the
// engine answers.
func (f *EngineFactory) NewEngine(ctx context.Context) (*runtime.Engine, error) {
	client, err := runtime.NewEngineClient(f.cfg.PodmanSocketURL)
	if err != nil {
		return nil, err
	}

	engine, err := runtime.NewEngine(ctx, client, runtime.WithLogger(f.logger))
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			f.logger.Warn("Failed to close engine client", "error", closeErr)
		}
		return nil, err
	}
	return engine, nil
}
