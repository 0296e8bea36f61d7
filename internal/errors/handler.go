package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"podrunner/internal/ui"
)

const (
	logFileName     = "podrunner.log"
	logDirEnv       = "PODRUNNER_LOG_DIR"
	maxLogSizeBytes = 10 * 1024 * 1024
	maxLogFiles     = 5
)

// ErrorHandler records failures as JSON in the podrunner log file and shows
// them on the console.
type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler() (*ErrorHandler, error) {
	logFile, err := createLogFile()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &ErrorHandler{
		logger:  logger,
		console: ui.NewConsole(),
	}, nil
}

// getOSStandardLogDir returns the OS-standard log directory path
func getOSStandardLogDir() (string, error) {
	if customLogDir := os.Getenv(logDirEnv); customLogDir != "" {
		return customLogDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "Podrunner"), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		// XDG state lives under ~/.local/state
		return filepath.Join(homeDir, ".local", "state", "podrunner", "logs"), nil
	default:
		return filepath.Join(homeDir, ".podrunner", "logs"), nil
	}
}

// createLogDirectoryWithFallback creates the log directory, falling back to
// the working directory when the standard one is not writable.
func createLogDirectoryWithFallback() (string, bool, error) {
	logDir, err := getOSStandardLogDir()
	if err == nil {
		if err = os.MkdirAll(logDir, 0750); err == nil {
			if err = probeWritable(logDir); err == nil {
				return logDir, false, nil
			}
		}
		err = fmt.Errorf("cannot access standard log directory %s: %w", logDir, err)
	}

	currentDir, cwdErr := os.Getwd()
	if cwdErr != nil {
		return "", true, fmt.Errorf("cannot determine current directory for fallback logging: %w", cwdErr)
	}

	fmt.Fprintf(os.Stderr, "Warning: %v. Falling back to current directory for logging.\n", err)
	return currentDir, true, nil
}

func probeWritable(dir string) error {
	testFile := filepath.Join(dir, ".test_write")
	f, err := os.Create(testFile)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		slog.Warn("Failed to close test file", "path", testFile, "error", err)
	}
	if err := os.Remove(testFile); err != nil {
		slog.Warn("Failed to remove test file", "path", testFile, "error", err)
	}
	return nil
}

// rotateLogFile shifts podrunner.log.N to .N+1, dropping the oldest generation.
func rotateLogFile(logPath string) error {
	oldest := fmt.Sprintf("%s.%d", logPath, maxLogFiles-1)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			slog.Warn("Failed to remove old log file", "path", oldest, "error", err)
		}
	}

	for i := maxLogFiles - 2; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", logPath, i)
		newPath := fmt.Sprintf("%s.%d", logPath, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			if err := os.Rename(oldPath, newPath); err != nil {
				slog.Warn("Failed to rotate log file", "old", oldPath, "new", newPath, "error", err)
			}
		}
	}

	if _, err := os.Stat(logPath); err == nil {
		return os.Rename(logPath, logPath+".1")
	}
	return nil
}

// checkLogRotation rotates the log once it reaches maxLogSizeBytes.
func checkLogRotation(logPath string) error {
	info, err := os.Stat(logPath)
	if err != nil {
		return nil
	}

	if info.Size() >= maxLogSizeBytes {
		return rotateLogFile(logPath)
	}
	return nil
}

func createLogFile() (*os.File, error) {
	logDir, _, err := createLogDirectoryWithFallback()
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName)
	if err := checkLogRotation(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to rotate log file: %v\n", err)
	}

	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var podErr *PodrunnerError
	if errors.As(err, &podErr) {
		h.handlePodrunnerError(podErr)
	} else {
		h.handleGenericError(err)
	}
}

func (h *ErrorHandler) handlePodrunnerError(err *PodrunnerError) {
	h.logStructuredError(err)

	message := h.console.FormatErrorMessage(err.Context, err.Cause, err.Suggestion)
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
	)

	h.console.PrintError(err.Error())
}

func (h *ErrorHandler) logStructuredError(err *PodrunnerError) {
	logAttrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("context", err.Context),
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "Podrunner error occurred", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrEngineInit:
		return "engine_init_failed"
	case ErrStart:
		return "start_failed"
	case ErrImagePull:
		return "image_pull_failed"
	case ErrNotFound:
		return "container_not_found"
	case ErrStatus:
		return "status_failed"
	case ErrUpdateLogs:
		return "update_logs_failed"
	case ErrCleanup:
		return "cleanup_failed"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrRequestInvalid:
		return "request_invalid"
	case ErrLogStore:
		return "log_store_failed"
	default:
		return "unknown"
	}
}
