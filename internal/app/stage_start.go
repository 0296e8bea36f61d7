package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podrunner/internal/logstore"
	"podrunner/internal/ui"
	"podrunner/pkg/activation"
)

// StartStage launches the activation's container
type StartStage struct {
	engine  activation.ContainerEngine
	store   *logstore.Store
	request *activation.ContainerRequest
	console *ui.Console
}

// NewStartStage creates a new start stage instance
func NewStartStage(engine activation.ContainerEngine, store *logstore.Store, request *activation.ContainerRequest, console *ui.Console) *StartStage {
	return &StartStage{engine: engine, store: store, request: request, console: console}
}

// Name returns the name of the stage
func (s *StartStage) Name() string {
	return string(StageStart)
}

// Execute starts the container and records its id for the activation
func (s *StartStage) Execute(ctx context.Context, state *RunState) error {
	s.console.PrintInfo(fmt.Sprintf("Starting activation %s from %s", state.ActivationID, s.request.ImageURL))

	containerID, err := s.engine.Start(ctx, s.request, s.store.Handler(state.ActivationID))
	if err != nil {
		return err
	}

	state.ContainerID = containerID
	state.StartedAt = time.Now()
	if err := s.store.SetContainerID(state.ActivationID, containerID); err != nil {
		slog.Warn("Failed to record container id", "activationID", state.ActivationID, "error", err)
	}

	s.console.PrintSuccess(fmt.Sprintf("Container %s started", containerID))
	slog.Info("Start stage completed successfully", "activationID", state.ActivationID, "containerID", containerID)
	return nil
}
