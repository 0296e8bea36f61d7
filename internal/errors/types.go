package errors

import "errors"

var (
	ErrEngineInit     = errors.New("container engine initialization failed")
	ErrStart          = errors.New("container start failed")
	ErrImagePull      = errors.New("image pull failed")
	ErrNotFound       = errors.New("container not found")
	ErrStatus         = errors.New("container status query failed")
	ErrUpdateLogs     = errors.New("container log update failed")
	ErrCleanup        = errors.New("container cleanup failed")
	ErrConfigInvalid  = errors.New("configuration invalid")
	ErrRequestInvalid = errors.New("container request invalid")
	ErrLogStore       = errors.New("log store operation failed")
)

// PodrunnerError carries one of the sentinel types above together with the
// human-facing context and the underlying cause.
type PodrunnerError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *PodrunnerError) Error() string {
	if e.OriginalErr == nil {
		return e.Context
	}
	if e.Context == "" {
		return e.OriginalErr.Error()
	}
	return e.Context + ": " + e.OriginalErr.Error()
}

func (e *PodrunnerError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the error's type so callers can use errors.Is(err, ErrStart).
func (e *PodrunnerError) Is(target error) bool {
	return e.Type == target
}

func NewPodrunnerError(errorType error, context, cause, suggestion string, originalErr error) *PodrunnerError {
	return &PodrunnerError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewEngineInitError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrEngineInit, context, causeOf(originalErr),
		"Check that the podman socket is running and podman_socket_url is correct", originalErr)
}

func NewStartError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrStart, context, causeOf(originalErr), "", originalErr)
}

func NewImagePullError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrImagePull, context, causeOf(originalErr),
		"Verify the image reference and registry credentials", originalErr)
}

func NewNotFoundError(context string) *PodrunnerError {
	return NewPodrunnerError(ErrNotFound, context, "", "", nil)
}

func NewStatusError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrStatus, context, causeOf(originalErr), "", originalErr)
}

func NewUpdateLogsError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrUpdateLogs, context, causeOf(originalErr), "", originalErr)
}

func NewCleanupError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrCleanup, context, causeOf(originalErr),
		"Retry the cleanup; the container may still exist on the engine", originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewRequestError(context, cause, suggestion string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrRequestInvalid, context, cause, suggestion, originalErr)
}

func NewLogStoreError(context string, originalErr error) *PodrunnerError {
	return NewPodrunnerError(ErrLogStore, context, causeOf(originalErr), "", originalErr)
}

func causeOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
