package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"podrunner/internal/logstore"
	"podrunner/internal/ui"
	"podrunner/pkg/activation"
)

// RunOptions tunes an activation run.
type RunOptions struct {
	// ActivationID names the run; a new id is generated when empty.
	ActivationID string
	PollInterval time.Duration
	Console      *ui.Console
}

// Run drives one activation through start, monitoring and cleanup. Once the
// container has started, cleanup always runs, also when monitoring fails or
// ctx is cancelled.
func Run(ctx context.Context, engine activation.ContainerEngine, store *logstore.Store, request *activation.ContainerRequest, opts RunOptions) (*RunState, error) {
	if opts.ActivationID == "" {
		opts.ActivationID = uuid.NewString()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Console == nil {
		opts.Console = ui.NewConsole()
	}

	state := &RunState{ActivationID: opts.ActivationID}
	slog.Info("Starting activation run", "activationID", state.ActivationID, "image", request.ImageURL)

	start := NewStartStage(engine, store, request, opts.Console)
	if err := executeStage(ctx, start, state); err != nil {
		return state, err
	}

	monitor := NewMonitorStage(engine, store, opts.Console, opts.PollInterval)
	monitorErr := executeStage(ctx, monitor, state)
	if errors.Is(monitorErr, context.Canceled) {
		opts.Console.PrintWarning("Interrupted, cleaning up container " + state.ContainerID)
		monitorErr = nil
	}

	cleanup := NewCleanupStage(engine, store, opts.Console)
	cleanupErr := executeStage(ctx, cleanup, state)

	if err := errors.Join(monitorErr, cleanupErr); err != nil {
		return state, err
	}

	slog.Info("Activation run completed", "activationID", state.ActivationID, "status", state.Status.Status)
	return state, nil
}

func executeStage(ctx context.Context, stage Stage, state *RunState) error {
	slog.Debug("Executing stage", "stage", stage.Name(), "activationID", state.ActivationID)
	if err := stage.Execute(ctx, state); err != nil {
		return fmt.Errorf("%s stage failed: %w", stage.Name(), err)
	}
	state.LastSuccessfulStage = RunStage(stage.Name())
	return nil
}
