package runtime

// Messages surfaced in activation status and activation logs.
const (
	msgMissingImageURL   = "Missing image url"
	msgStartError        = "Container Start Error"
	msgContainerStarted  = "Container %s is started."
	msgStartingContainer = "Starting Container"
	msgContainerArgs     = "Container args %q"
	msgPullingImage      = "Pulling image %s"
	msgImageNotFound     = "Image %s not found"
	msgImagePullFailed   = "Failed to pull image %s"
	msgImagePullError    = "Image %s pull failed. The image might be invalid or unreachable."

	msgContainerNotFound   = "Container %s not found."
	msgContainerIDNotFound = "Container id %s not found"
	msgContainerCleanedUp  = "Container %s is cleaned up."
	msgUpdateLogsFailed    = "Failed to update logs of container %s"
	msgCleanupFailed       = "Failed to cleanup container %s"
	msgStatusFailed        = "Failed to get status of container %s"

	msgPodCompleted   = "Container %s completed"
	msgPodGenericFail = "Container %s failed with exit code %d"
	msgPodRunning     = "Container %s is running"
	msgPodNotRunning  = "Container %s is not running"
	msgPodWrongState  = "Container %s is in a wrong state %s"
	msgPodUnexpected  = "Container %s is in an unexpected state %s"
)
