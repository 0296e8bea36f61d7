package runtime

import (
	"context"
	"errors"
	"fmt"

	perrors "podrunner/internal/errors"
	"podrunner/internal/metrics"
	"podrunner/pkg/activation"
)

// Engine-reported container states.
const (
	stateCreated    = "created"
	stateRunning    = "running"
	stateStopping   = "stopping"
	stateExited     = "exited"
	stateStopped    = "stopped"
	statePaused     = "paused"
	stateRestarting = "restarting"
	stateRemoving   = "removing"
	stateDead       = "dead"
	stateConfigured = "configured"
	stateUnknown    = "unknown"
)

// GetStatus reports the activation status of a container.
func (e *Engine) GetStatus(ctx context.Context, containerID string) (status activation.ContainerStatus, err error) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveOperation(metrics.OpGetStatus, err) }()

	info, err := e.client.InspectContainer(ctx, containerID)
	if errors.Is(err, ErrEngineNotFound) {
		msg := fmt.Sprintf(msgContainerIDNotFound, containerID)
		e.logger.Info(msg)
		return activation.ContainerStatus{}, perrors.NewNotFoundError(msg)
	}
	if err != nil {
		msg := fmt.Sprintf(msgStatusFailed, containerID)
		e.logger.Error(msg, "error", err)
		return activation.ContainerStatus{}, perrors.NewStatusError(msg, err)
	}

	status = translateStatus(containerID, info)
	metrics.ActivationStatusTotal.WithLabelValues(string(status.Status)).Inc()
	e.logger.Debug("Container status",
		"containerID", containerID,
		"state", info.Status,
		"exitCode", info.ExitCode,
		"status", status.Status,
	)
	return status, nil
}

// translateStatus maps an engine state to an activation status. States the
// engine may add in the future land in the error arm.
func translateStatus(containerID string, info ContainerInfo) activation.ContainerStatus {
	switch info.Status {
	case stateExited, stateStopped:
		if info.ExitCode == 0 {
			return activation.ContainerStatus{
				Status:  activation.StatusCompleted,
				Message: fmt.Sprintf(msgPodCompleted, containerID),
			}
		}
		msg := info.Error
		if msg == "" {
			msg = fmt.Sprintf(msgPodGenericFail, containerID, info.ExitCode)
		}
		return activation.ContainerStatus{Status: activation.StatusFailed, Message: msg}

	case stateRunning, stateStopping:
		return activation.ContainerStatus{
			Status:  activation.StatusRunning,
			Message: fmt.Sprintf(msgPodRunning, containerID),
		}

	case stateCreated:
		msg := info.Error
		if msg == "" {
			msg = fmt.Sprintf(msgPodNotRunning, containerID)
		}
		return activation.ContainerStatus{Status: activation.StatusFailed, Message: msg}

	case statePaused, stateRestarting, stateRemoving, stateDead, stateConfigured, stateUnknown:
		return activation.ContainerStatus{
			Status:  activation.StatusFailed,
			Message: fmt.Sprintf(msgPodWrongState, containerID, info.Status),
		}

	default:
		return activation.ContainerStatus{
			Status:  activation.StatusError,
			Message: fmt.Sprintf(msgPodUnexpected, containerID, info.Status),
		}
	}
}
