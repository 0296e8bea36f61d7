package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	perrors "podrunner/internal/errors"
	"podrunner/internal/metrics"
	"podrunner/pkg/activation"
)

// UpdateLogs forwards container output written since the handler's watermark
// and advances the watermark to the last line read. A container that no
// longer exists is reported to the handler and is not an error.
func (e *Engine) UpdateLogs(ctx context.Context, containerID string, logHandler activation.LogHandler) (err error) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveOperation(metrics.OpUpdateLogs, err) }()

	_, err = e.updateLogs(ctx, containerID, logHandler)
	return err
}

// updateLogs reports whether the container turned out to be gone.
func (e *Engine) updateLogs(ctx context.Context, containerID string, logHandler activation.LogHandler) (bool, error) {
	info, err := e.client.InspectContainer(ctx, containerID)
	if errors.Is(err, ErrEngineNotFound) {
		e.containerGone(containerID, logHandler)
		return true, nil
	}
	if err != nil {
		return false, e.updateLogsFailed(containerID, logHandler, err)
	}

	watermark, hasWatermark := logHandler.LogReadAt()
	opts := LogOptions{Timestamps: true, Stderr: true, Tty: info.Tty}
	if hasWatermark {
		// The engine filters on whole seconds, inclusive.
		opts.Since = watermark.Unix() + 1
	}

	lines, err := e.client.ContainerLogs(ctx, containerID, opts)
	if errors.Is(err, ErrEngineNotFound) {
		e.containerGone(containerID, logHandler)
		return true, nil
	}
	if err != nil {
		return false, e.updateLogsFailed(containerID, logHandler, err)
	}

	var (
		read     int
		lastRead time.Time
		stamped  bool
	)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		timestamp, payload, ok := splitLogLine(line)
		if ok {
			if hasWatermark && timestamp.Unix() < opts.Since {
				continue
			}
			lastRead = timestamp
			stamped = true
			// A blank line from the container leaves only the timestamp.
			if payload == "" {
				continue
			}
		}

		if err := logHandler.Write(payload, false, false); err != nil {
			return false, e.updateLogsFailed(containerID, logHandler, err)
		}
		read++
	}

	if read == 0 && !stamped {
		return false, nil
	}

	if read > 0 {
		metrics.LogLinesForwarded.Add(float64(read))
		if err := logHandler.Flush(); err != nil {
			return false, e.updateLogsFailed(containerID, logHandler, err)
		}
	}

	if stamped {
		if hasWatermark && lastRead.Before(watermark) {
			lastRead = watermark
		}
		if err := logHandler.SetLogReadAt(lastRead); err != nil {
			return false, e.updateLogsFailed(containerID, logHandler, err)
		}
	}

	e.logger.Debug("Updated container logs", "containerID", containerID, "lines", read, "logReadAt", lastRead)
	return false, nil
}

// splitLogLine separates the engine's timestamp prefix from the payload.
// Lines without a parseable timestamp are returned whole.
func splitLogLine(line string) (time.Time, string, bool) {
	prefix, payload, found := strings.Cut(line, " ")
	timestamp, err := time.Parse(time.RFC3339Nano, prefix)
	if err != nil {
		return time.Time{}, line, false
	}
	if !found {
		payload = ""
	}
	return timestamp, payload, true
}

func (e *Engine) containerGone(containerID string, logHandler activation.LogHandler) {
	msg := fmt.Sprintf(msgContainerNotFound, containerID)
	e.logger.Info(msg)
	e.writeLog(logHandler, msg)
}

func (e *Engine) updateLogsFailed(containerID string, logHandler activation.LogHandler, err error) error {
	msg := fmt.Sprintf(msgUpdateLogsFailed, containerID)
	e.logger.Error(msg, "error", err)
	e.writeLog(logHandler, fmt.Sprintf("%s: %v", msg, err))
	return perrors.NewUpdateLogsError(msg, err)
}
