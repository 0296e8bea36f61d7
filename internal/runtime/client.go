package runtime

import (
	"context"
	"errors"
	"fmt"
)

// Engine-level failures. The Docker wrapper reports every engine error as one
// of these so the adapter never inspects SDK error types directly.
var (
	ErrEngineNotFound      = errors.New("no such container")
	ErrEngineImageNotFound = errors.New("image not known")
)

// EngineAPIError is a generic engine API failure.
type EngineAPIError struct {
	Op  string
	Err error
}

func (e *EngineAPIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineAPIError) Unwrap() error {
	return e.Err
}

// ContainerRunError is returned when the engine refuses to create or start a
// container.
type ContainerRunError struct {
	Image string
	Err   error
}

func (e *ContainerRunError) Error() string {
	return fmt.Sprintf("container from image %s could not run: %v", e.Image, e.Err)
}

func (e *ContainerRunError) Unwrap() error {
	return e.Err
}

// RegistryAuth is attached inline to an image pull.
type RegistryAuth struct {
	Username      string
	Password      string
	ServerAddress string
}

// ImageInfo is the engine's record of a local image. ID may be empty when the
// engine reports success without a usable image.
type ImageInfo struct {
	ID   string
	Tags []string
}

// ContainerInfo is the subset of container inspection the adapter relies on.
type ContainerInfo struct {
	ID       string
	Name     string
	Status   string
	ExitCode int
	Error    string
	Tty      bool
}

// LogOptions selects container log output. Since is a unix timestamp in
// seconds; zero requests the full log.
type LogOptions struct {
	Since      int64
	Timestamps bool
	Stderr     bool
	Tty        bool
}

// MountSpec is a mount in engine run parameters.
type MountSpec struct {
	Type     string `mapstructure:"type"`
	Source   string `mapstructure:"source"`
	Target   string `mapstructure:"target"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// RunSpec holds the engine start parameters. Image and Command are set by the
// launcher; everything else is decoded from the pod argument map, so extra
// arguments may override computed keys.
type RunSpec struct {
	Image   string   `mapstructure:"-"`
	Command []string `mapstructure:"-"`

	Name        string            `mapstructure:"name"`
	Ports       map[string]int    `mapstructure:"ports"`
	MemLimit    string            `mapstructure:"mem_limit"`
	Mounts      []MountSpec       `mapstructure:"mounts"`
	Environment map[string]string `mapstructure:"environment"`
	User        string            `mapstructure:"user"`
	WorkingDir  string            `mapstructure:"working_dir"`
	Hostname    string            `mapstructure:"hostname"`
	Entrypoint  []string          `mapstructure:"entrypoint"`
	Labels      map[string]string `mapstructure:"labels"`
	NetworkMode string            `mapstructure:"network_mode"`
	Privileged  bool              `mapstructure:"privileged"`
	ReadOnly    bool              `mapstructure:"read_only"`
	CapAdd      []string          `mapstructure:"cap_add"`
	CapDrop     []string          `mapstructure:"cap_drop"`
	DNS         []string          `mapstructure:"dns"`
	SecurityOpt []string          `mapstructure:"security_opt"`

	Stdout bool `mapstructure:"-"`
	Stderr bool `mapstructure:"-"`
	Remove bool `mapstructure:"-"`
}

// EngineClient is the container engine control API used by Engine.
type EngineClient interface {
	Version(ctx context.Context) (string, error)
	Login(ctx context.Context, username, password, serverAddress string) error

	GetImage(ctx context.Context, ref string) (ImageInfo, error)
	PullImage(ctx context.Context, ref string, auth *RegistryAuth) (ImageInfo, error)

	ContainerExists(ctx context.Context, containerID string) (bool, error)
	InspectContainer(ctx context.Context, containerID string) (ContainerInfo, error)
	// RunContainer creates and starts a detached container.
	RunContainer(ctx context.Context, spec RunSpec) (ContainerInfo, error)
	StopContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string, force, removeVolumes bool) error
	ContainerLogs(ctx context.Context, containerID string, opts LogOptions) ([]string, error)

	Close() error
}
