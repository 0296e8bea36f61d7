package runtime

import (
	"context"
	"errors"
	"fmt"

	perrors "podrunner/internal/errors"
	"podrunner/internal/metrics"
	"podrunner/pkg/activation"
)

// Cleanup stops the container, collects its remaining output and removes it
// together with its anonymous volumes. Calling it for a container that is
// already gone does nothing.
func (e *Engine) Cleanup(ctx context.Context, containerID string, logHandler activation.LogHandler) (err error) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveOperation(metrics.OpCleanup, err) }()

	exists, err := e.client.ContainerExists(ctx, containerID)
	if err != nil {
		return e.cleanupFailed(containerID, logHandler, err)
	}
	if !exists {
		e.logger.Debug("Container already cleaned up", "containerID", containerID)
		return nil
	}

	if err := e.client.StopContainer(ctx, containerID); err != nil {
		if !errors.Is(err, ErrEngineNotFound) {
			return e.cleanupFailed(containerID, logHandler, err)
		}
		e.containerGone(containerID, logHandler)
		return nil
	}
	e.logger.Info("Stopped container", "containerID", containerID)

	gone, err := e.updateLogs(ctx, containerID, logHandler)
	if err != nil {
		e.logger.Warn("Final log update failed", "containerID", containerID, "error", err)
	}

	if err := e.client.RemoveContainer(ctx, containerID, true, true); err != nil {
		if !errors.Is(err, ErrEngineNotFound) {
			return e.cleanupFailed(containerID, logHandler, err)
		}
		if !gone {
			e.containerGone(containerID, logHandler)
		}
	}

	msg := fmt.Sprintf(msgContainerCleanedUp, containerID)
	e.logger.Info(msg)
	e.writeLog(logHandler, msg)
	return nil
}

func (e *Engine) cleanupFailed(containerID string, logHandler activation.LogHandler, err error) error {
	msg := fmt.Sprintf(msgCleanupFailed, containerID)
	e.logger.Error(msg, "error", err)
	e.writeLog(logHandler, fmt.Sprintf("%s: %v", msg, err))
	return perrors.NewCleanupError(msg, err)
}
