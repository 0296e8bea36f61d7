package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	perrors "podrunner/internal/errors"
	"podrunner/internal/logstore"
	"podrunner/internal/ui"
	"podrunner/pkg/activation"
)

// MockContainerEngine is a mock implementation of the ContainerEngine interface
type MockContainerEngine struct {
	*mock.Mock
}

func NewMockContainerEngine() *MockContainerEngine {
	return &MockContainerEngine{Mock: &mock.Mock{}}
}

func (m *MockContainerEngine) Start(ctx context.Context, request *activation.ContainerRequest, logHandler activation.LogHandler) (string, error) {
	args := m.Called(ctx, request, logHandler)
	return args.String(0), args.Error(1)
}

func (m *MockContainerEngine) GetStatus(ctx context.Context, containerID string) (activation.ContainerStatus, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(activation.ContainerStatus), args.Error(1)
}

func (m *MockContainerEngine) UpdateLogs(ctx context.Context, containerID string, logHandler activation.LogHandler) error {
	args := m.Called(ctx, containerID, logHandler)
	return args.Error(0)
}

func (m *MockContainerEngine) Cleanup(ctx context.Context, containerID string, logHandler activation.LogHandler) error {
	args := m.Called(ctx, containerID, logHandler)
	return args.Error(0)
}

func newTestStore(t *testing.T) *logstore.Store {
	t.Helper()
	store, err := logstore.Open(filepath.Join(t.TempDir(), "podrunner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testOptions(out *bytes.Buffer) RunOptions {
	return RunOptions{
		ActivationID: "act-1",
		PollInterval: 10 * time.Millisecond,
		Console:      ui.NewPlainConsole(out, out),
	}
}

var (
	running   = activation.ContainerStatus{Status: activation.StatusRunning, Message: "Container c1 is running"}
	completed = activation.ContainerStatus{Status: activation.StatusCompleted, Message: "Container c1 completed"}
	request   = &activation.ContainerRequest{ImageURL: "quay.io/app:1"}
)

func TestRun_Completes(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).Return(nil)
	engine.On("GetStatus", mock.Anything, "c1").Return(running, nil).Twice()
	engine.On("GetStatus", mock.Anything, "c1").Return(completed, nil)
	engine.On("Cleanup", mock.Anything, "c1", mock.Anything).Return(nil)

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.NoError(t, err)
	assert.Equal(t, "c1", state.ContainerID)
	assert.Equal(t, completed, state.Status)
	assert.Equal(t, StageCleanup, state.LastSuccessfulStage)
	engine.AssertNumberOfCalls(t, "GetStatus", 3)
	engine.AssertNumberOfCalls(t, "UpdateLogs", 3)

	containerID, err := store.ContainerID("act-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", containerID)

	// Unchanged statuses are printed once.
	assert.Equal(t, 1, strings.Count(out.String(), "RUNNING"))
	assert.Contains(t, out.String(), "COMPLETED Container c1 completed")
}

func TestRun_StartFailure(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).
		Return("", perrors.NewImagePullError("Image quay.io/app:1 not found", nil))

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrImagePull))
	assert.Contains(t, err.Error(), "start stage failed")
	assert.Empty(t, state.ContainerID)
	engine.AssertNotCalled(t, "Cleanup", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_ContainerDisappears(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).Return(nil)
	engine.On("GetStatus", mock.Anything, "c1").
		Return(activation.ContainerStatus{}, perrors.NewNotFoundError("Container id c1 not found"))
	engine.On("Cleanup", mock.Anything, "c1", mock.Anything).Return(nil)

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.NoError(t, err)
	assert.Equal(t, activation.StatusError, state.Status.Status)
	assert.Equal(t, "Container id c1 not found", state.Status.Message)
	engine.AssertCalled(t, "Cleanup", mock.Anything, "c1", mock.Anything)
}

func TestRun_StatusFailureStillCleansUp(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).Return(nil)
	engine.On("GetStatus", mock.Anything, "c1").
		Return(activation.ContainerStatus{}, perrors.NewStatusError("Failed to get status of container c1", errors.New("socket closed")))
	engine.On("Cleanup", mock.Anything, "c1", mock.Anything).Return(nil)

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrStatus))
	assert.Equal(t, StageCleanup, state.LastSuccessfulStage)
	engine.AssertCalled(t, "Cleanup", mock.Anything, "c1", mock.Anything)
}

func TestRun_LogFailureKeepsPolling(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).
		Return(perrors.NewUpdateLogsError("Failed to update logs of container c1", errors.New("broken pipe")))
	engine.On("GetStatus", mock.Anything, "c1").Return(completed, nil)
	engine.On("Cleanup", mock.Anything, "c1", mock.Anything).Return(nil)

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.NoError(t, err)
	assert.Equal(t, completed, state.Status)
	assert.Contains(t, out.String(), "Failed to update logs of container c1")
}

func TestRun_CancelledRunCleansUp(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).Return(nil)
	engine.On("GetStatus", mock.Anything, "c1").Return(running, nil).Run(func(args mock.Arguments) {
		if polls.Add(1) == 2 {
			cancel()
		}
	})
	engine.On("Cleanup", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "c1", mock.Anything).Return(nil)

	state, err := Run(ctx, engine, store, request, testOptions(&out))

	require.NoError(t, err)
	assert.Equal(t, activation.StatusRunning, state.Status.Status)
	assert.Contains(t, out.String(), "Interrupted, cleaning up container c1")
	engine.AssertCalled(t, "Cleanup", mock.Anything, "c1", mock.Anything)
}

func TestRun_CleanupFailure(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("c1", nil)
	engine.On("UpdateLogs", mock.Anything, "c1", mock.Anything).Return(nil)
	engine.On("GetStatus", mock.Anything, "c1").Return(completed, nil)
	engine.On("Cleanup", mock.Anything, "c1", mock.Anything).
		Return(perrors.NewCleanupError("Failed to cleanup container c1", errors.New("engine busy")))

	state, err := Run(context.Background(), engine, store, request, testOptions(&out))

	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrCleanup))
	assert.Contains(t, err.Error(), "cleanup stage failed")
	assert.Equal(t, StageMonitor, state.LastSuccessfulStage)
}

func TestRun_GeneratesActivationID(t *testing.T) {
	store := newTestStore(t)
	engine := NewMockContainerEngine()
	var out bytes.Buffer

	engine.On("Start", mock.Anything, request, mock.Anything).Return("", perrors.NewStartError("Missing image url", nil))

	opts := testOptions(&out)
	opts.ActivationID = ""
	state, err := Run(context.Background(), engine, store, request, opts)

	require.Error(t, err)
	assert.Len(t, state.ActivationID, 36)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "start", NewStartStage(nil, nil, nil, nil).Name())
	assert.Equal(t, "monitor", NewMonitorStage(nil, nil, nil, time.Second).Name())
	assert.Equal(t, "cleanup", NewCleanupStage(nil, nil, nil).Name())
}
