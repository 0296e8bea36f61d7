package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	perrors "podrunner/internal/errors"
	"podrunner/internal/logstore"
	"podrunner/internal/ui"
	"podrunner/pkg/activation"
)

// MonitorStage polls the container until it reaches a terminal status or the
// context is cancelled
type MonitorStage struct {
	engine       activation.ContainerEngine
	store        *logstore.Store
	console      *ui.Console
	pollInterval time.Duration
}

// NewMonitorStage creates a new monitor stage instance
func NewMonitorStage(engine activation.ContainerEngine, store *logstore.Store, console *ui.Console, pollInterval time.Duration) *MonitorStage {
	return &MonitorStage{engine: engine, store: store, console: console, pollInterval: pollInterval}
}

// Name returns the name of the stage
func (s *MonitorStage) Name() string {
	return string(StageMonitor)
}

// Execute polls status and logs every poll interval. Log update failures are
// reported and polling continues.
func (s *MonitorStage) Execute(ctx context.Context, state *RunState) error {
	handler := s.store.Handler(state.ActivationID)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.engine.UpdateLogs(ctx, state.ContainerID, handler); err != nil {
			s.console.PrintWarning(err.Error())
		}

		status, err := s.engine.GetStatus(ctx, state.ContainerID)
		switch {
		case errors.Is(err, perrors.ErrNotFound):
			// Auto-removed containers disappear once they exit.
			state.Status = activation.ContainerStatus{Status: activation.StatusError, Message: err.Error()}
			slog.Warn("Container disappeared while monitoring", "containerID", state.ContainerID)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return err
		}

		if status != state.Status {
			s.console.PrintStatus(status)
		}
		state.Status = status
		if status.Status.IsTerminal() {
			slog.Info("Monitor stage completed", "containerID", state.ContainerID, "status", status.Status)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
