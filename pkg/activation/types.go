// Package activation holds the contract between the activation manager and a
// container engine adapter.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PullPolicyAlways forces an image pull on every start. Any other policy
// pulls only when the image is missing locally.
const PullPolicyAlways = "Always"

// ActivationStatus is the application-level status of an activation's container.
type ActivationStatus string

const (
	StatusRunning   ActivationStatus = "running"
	StatusCompleted ActivationStatus = "completed"
	StatusFailed    ActivationStatus = "failed"
	StatusError     ActivationStatus = "error"
)

// IsTerminal reports whether no further transition is expected.
func (s ActivationStatus) IsTerminal() bool {
	return s != StatusRunning
}

// Credential is a registry login.
type Credential struct {
	Username string `yaml:"username" validate:"required"`
	Secret   string `yaml:"secret" validate:"required"`
}

// String hides the secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s:******", c.Username)
}

// LogValue hides the secret from slog output.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// Cmdline is the command and arguments handed to the container.
type Cmdline struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// CommandAndArgs flattens the command line into an argv slice.
func (c Cmdline) CommandAndArgs() []string {
	var argv []string
	if c.Command != "" {
		argv = append(argv, c.Command)
	}
	return append(argv, c.Args...)
}

// PortMapping publishes ContainerPort on HostPort. A zero HostPort publishes
// on the same port number.
type PortMapping struct {
	ContainerPort int `yaml:"containerPort" validate:"required,min=1,max=65535"`
	HostPort      int `yaml:"hostPort" validate:"min=0,max=65535"`
}

// Mount describes a volume or bind mount.
type Mount struct {
	Type     string `yaml:"type" validate:"omitempty,oneof=bind volume tmpfs"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target" validate:"required"`
	ReadOnly bool   `yaml:"readOnly"`
}

// ContainerRequest describes the container to start for one activation.
type ContainerRequest struct {
	Name       string            `yaml:"name"`
	ImageURL   string            `yaml:"imageUrl" validate:"required"`
	Cmdline    Cmdline           `yaml:"cmdline"`
	Credential *Credential       `yaml:"credential,omitempty" validate:"omitempty"`
	PullPolicy string            `yaml:"pullPolicy"`
	Ports      []PortMapping     `yaml:"ports,omitempty" validate:"dive"`
	MemLimit   string            `yaml:"memLimit,omitempty"`
	Mounts     []Mount           `yaml:"mounts,omitempty" validate:"dive"`
	EnvVars    map[string]string `yaml:"envVars,omitempty"`
	ExtraArgs  map[string]any    `yaml:"extraArgs,omitempty"`
}

// ContainerStatus is a point-in-time view of an activation's container.
type ContainerStatus struct {
	Status  ActivationStatus
	Message string
}

// LogHandler is the activation's log sink and the owner of its read watermark.
type LogHandler interface {
	// Write records lines. With flush set, buffered lines are persisted
	// immediately; with timestamp set, the sink stamps them with wall time.
	Write(lines string, flush bool, timestamp bool) error
	Flush() error
	// LogReadAt returns the watermark, if one has been stored.
	LogReadAt() (time.Time, bool)
	SetLogReadAt(t time.Time) error
}

// ContainerEngine drives one container per activation.
type ContainerEngine interface {
	Start(ctx context.Context, request *ContainerRequest, logHandler LogHandler) (string, error)
	GetStatus(ctx context.Context, containerID string) (ContainerStatus, error)
	UpdateLogs(ctx context.Context, containerID string, logHandler LogHandler) error
	Cleanup(ctx context.Context, containerID string, logHandler LogHandler) error
}
