package app

import (
	"context"
	"fmt"
	"log/slog"

	"podrunner/internal/logstore"
	"podrunner/internal/ui"
	"podrunner/pkg/activation"
)

// CleanupStage removes the activation's container
type CleanupStage struct {
	engine  activation.ContainerEngine
	store   *logstore.Store
	console *ui.Console
}

// NewCleanupStage creates a new cleanup stage instance
func NewCleanupStage(engine activation.ContainerEngine, store *logstore.Store, console *ui.Console) *CleanupStage {
	return &CleanupStage{engine: engine, store: store, console: console}
}

// Name returns the name of the stage
func (s *CleanupStage) Name() string {
	return string(StageCleanup)
}

// Execute cleans up the container. It runs even when the run was cancelled,
// so it ignores cancellation of ctx.
func (s *CleanupStage) Execute(ctx context.Context, state *RunState) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.engine.Cleanup(ctx, state.ContainerID, s.store.Handler(state.ActivationID)); err != nil {
		return err
	}

	s.console.PrintSuccess(fmt.Sprintf("Container %s cleaned up", state.ContainerID))
	slog.Info("Cleanup stage completed successfully", "containerID", state.ContainerID)
	return nil
}
