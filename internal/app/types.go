package app

import (
	"context"
	"time"

	"podrunner/pkg/activation"
)

// Stage represents a single stage of an activation run.
// Each stage implements this interface to provide a name and execution logic.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *RunState) error
}

// RunStage names the stages of an activation run
type RunStage string

const (
	StageStart   RunStage = "start"
	StageMonitor RunStage = "monitor"
	StageCleanup RunStage = "cleanup"
)

// RunState is the progress of one activation run
type RunState struct {
	ActivationID        string
	ContainerID         string
	Status              activation.ContainerStatus
	LastSuccessfulStage RunStage
	StartedAt           time.Time
}
