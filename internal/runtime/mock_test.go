package runtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEngineClient is a mock implementation of the EngineClient interface
type MockEngineClient struct {
	*mock.Mock
}

func NewMockEngineClient() *MockEngineClient {
	return &MockEngineClient{Mock: &mock.Mock{}}
}

func (m *MockEngineClient) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockEngineClient) Login(ctx context.Context, username, password, serverAddress string) error {
	args := m.Called(ctx, username, password, serverAddress)
	return args.Error(0)
}

func (m *MockEngineClient) GetImage(ctx context.Context, ref string) (ImageInfo, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(ImageInfo), args.Error(1)
}

func (m *MockEngineClient) PullImage(ctx context.Context, ref string, auth *RegistryAuth) (ImageInfo, error) {
	args := m.Called(ctx, ref, auth)
	return args.Get(0).(ImageInfo), args.Error(1)
}

func (m *MockEngineClient) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	args := m.Called(ctx, containerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngineClient) InspectContainer(ctx context.Context, containerID string) (ContainerInfo, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(ContainerInfo), args.Error(1)
}

func (m *MockEngineClient) RunContainer(ctx context.Context, spec RunSpec) (ContainerInfo, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(ContainerInfo), args.Error(1)
}

func (m *MockEngineClient) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockEngineClient) RemoveContainer(ctx context.Context, containerID string, force, removeVolumes bool) error {
	args := m.Called(ctx, containerID, force, removeVolumes)
	return args.Error(0)
}

func (m *MockEngineClient) ContainerLogs(ctx context.Context, containerID string, opts LogOptions) ([]string, error) {
	args := m.Called(ctx, containerID, opts)
	lines, _ := args.Get(0).([]string)
	return lines, args.Error(1)
}

func (m *MockEngineClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type writeCall struct {
	lines     string
	flush     bool
	timestamp bool
}

// fakeLogHandler records everything written to it.
type fakeLogHandler struct {
	writes    []writeCall
	flushes   int
	readAt    time.Time
	hasReadAt bool
	setCalls  int

	writeErr error
	flushErr error
	setErr   error
}

func (h *fakeLogHandler) Write(lines string, flush, timestamp bool) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	h.writes = append(h.writes, writeCall{lines: lines, flush: flush, timestamp: timestamp})
	return nil
}

func (h *fakeLogHandler) Flush() error {
	if h.flushErr != nil {
		return h.flushErr
	}
	h.flushes++
	return nil
}

func (h *fakeLogHandler) LogReadAt() (time.Time, bool) {
	return h.readAt, h.hasReadAt
}

func (h *fakeLogHandler) SetLogReadAt(t time.Time) error {
	if h.setErr != nil {
		return h.setErr
	}
	h.readAt = t
	h.hasReadAt = true
	h.setCalls++
	return nil
}

func (h *fakeLogHandler) lines() []string {
	out := make([]string, 0, len(h.writes))
	for _, w := range h.writes {
		out = append(out, w.lines)
	}
	return out
}

func (h *fakeLogHandler) contains(substr string) bool {
	for _, w := range h.writes {
		if strings.Contains(w.lines, substr) {
			return true
		}
	}
	return false
}

// newTestEngine builds an Engine over m with a discarded logger and an
// isolated runtime directory.
func newTestEngine(t *testing.T, m *MockEngineClient) *Engine {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	m.On("Version", mock.Anything).Return("4.9.3", nil).Maybe()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := NewEngine(context.Background(), m, WithLogger(logger))
	require.NoError(t, err)
	return engine
}
