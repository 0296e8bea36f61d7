package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	perrors "podrunner/internal/errors"
	"podrunner/internal/metrics"
	"podrunner/pkg/activation"
)

// Engine runs one container per activation on a podman engine.
type Engine struct {
	client EngineClient
	logger *slog.Logger

	mu       sync.Mutex
	authFile string
}

var _ activation.ContainerEngine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine wraps an engine client and verifies that the engine answers.
func NewEngine(ctx context.Context, client EngineClient, opts ...Option) (*Engine, error) {
	e := &Engine{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	version, err := client.Version(ctx)
	if err != nil {
		e.logger.Error("Failed to initialize podman engine", "error", err)
		return nil, perrors.NewEngineInitError("Failed to initialize podman engine", err)
	}
	e.logger.Debug("Connected to podman engine", "version", version)

	return e, nil
}

// Close releases the engine connection.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Start launches the container described by request and returns its id.
func (e *Engine) Start(ctx context.Context, request *activation.ContainerRequest, logHandler activation.LogHandler) (containerID string, err error) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveOperation(metrics.OpStart, err) }()

	if request == nil || request.ImageURL == "" {
		e.writeLog(logHandler, msgMissingImageURL)
		return "", perrors.NewStartError(msgMissingImageURL, nil)
	}

	containerID, err = e.start(ctx, request, logHandler)
	if err == nil {
		return containerID, nil
	}

	var podErr *perrors.PodrunnerError
	if errors.As(err, &podErr) {
		return "", err
	}

	message := fmt.Sprintf("%s: %v", msgStartError, err)
	e.logger.Error(message, "image", request.ImageURL)
	e.writeLog(logHandler, message)
	return "", perrors.NewStartError(msgStartError, err)
}

func (e *Engine) start(ctx context.Context, request *activation.ContainerRequest, logHandler activation.LogHandler) (string, error) {
	e.setAuthJSONFile()

	if err := e.login(ctx, request); err != nil {
		return "", err
	}

	e.logger.Info("Preparing image", "image", request.ImageURL, "pullPolicy", request.PullPolicy)
	pull := request.PullPolicy == activation.PullPolicyAlways
	if !pull {
		exists, err := e.imageExists(ctx, request.ImageURL)
		if err != nil {
			return "", err
		}
		pull = !exists
	}
	if pull {
		if _, err := e.pullImage(ctx, request, logHandler); err != nil {
			return "", err
		}
	}

	e.writeLog(logHandler, msgStartingContainer)
	command := request.Cmdline.CommandAndArgs()
	e.writeLog(logHandler, fmt.Sprintf(msgContainerArgs, command))

	spec, err := e.runSpec(request, command)
	if err != nil {
		return "", err
	}

	e.logger.Info("Creating container", "image", spec.Image, "name", spec.Name, "command", command)
	info, err := e.client.RunContainer(ctx, spec)
	if err != nil {
		return "", err
	}

	e.logger.Info("Created container",
		"name", info.Name,
		"containerID", info.ID,
		"status", info.Status,
		"ports", spec.Ports,
	)
	e.writeLog(logHandler, fmt.Sprintf(msgContainerStarted, info.ID))
	return info.ID, nil
}

func (e *Engine) imageExists(ctx context.Context, imageURL string) (bool, error) {
	_, err := e.client.GetImage(ctx, imageURL)
	if errors.Is(err, ErrEngineImageNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// writeLog writes a progress line to the activation log. Sink failures are
// logged and otherwise ignored.
func (e *Engine) writeLog(logHandler activation.LogHandler, line string) {
	if logHandler == nil {
		return
	}
	if err := logHandler.Write(line, true, true); err != nil {
		e.logger.Warn("Failed to write activation log", "error", err)
	}
}
