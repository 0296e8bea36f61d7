package runtime

import (
	"context"
	"errors"
	"fmt"

	perrors "podrunner/internal/errors"
	"podrunner/internal/metrics"
	"podrunner/pkg/activation"
)

// pullImage pulls the requested image, passing credentials inline and
// recording them in the auth file.
func (e *Engine) pullImage(ctx context.Context, request *activation.ContainerRequest, logHandler activation.LogHandler) (info ImageInfo, err error) {
	timer := metrics.NewTimer()
	defer func() { timer.ObserveOperation(metrics.OpPull, err) }()

	e.writeLog(logHandler, fmt.Sprintf(msgPullingImage, request.ImageURL))
	e.logger.Info("Pulling image", "image", request.ImageURL)

	var auth *RegistryAuth
	if request.Credential != nil {
		auth = &RegistryAuth{
			Username:      request.Credential.Username,
			Password:      request.Credential.Secret,
			ServerAddress: registryHost(request.ImageURL),
		}
		if err := e.writeAuthJSON(request); err != nil {
			e.logger.Warn("Failed to update auth file", "error", err)
		}
	}

	info, err = e.client.PullImage(ctx, request.ImageURL, auth)
	if errors.Is(err, ErrEngineImageNotFound) {
		msg := fmt.Sprintf(msgImageNotFound, request.ImageURL)
		e.logger.Error(msg, "error", err)
		e.writeLog(logHandler, msg)
		return ImageInfo{}, perrors.NewImagePullError(msg, err)
	}
	if err != nil {
		msg := fmt.Sprintf(msgImagePullFailed, request.ImageURL)
		e.logger.Error(msg, "error", err)
		e.writeLog(logHandler, fmt.Sprintf("%s: %v", msg, err))
		return ImageInfo{}, perrors.NewStartError(msg, err)
	}

	// Engines can report a successful pull that produced no usable image.
	if info.ID == "" {
		msg := fmt.Sprintf(msgImagePullError, request.ImageURL)
		e.logger.Error(msg)
		e.writeLog(logHandler, msg)
		return ImageInfo{}, perrors.NewImagePullError(msg, nil)
	}

	e.logger.Info("Downloaded image", "image", request.ImageURL, "imageID", info.ID)
	return info, nil
}
