package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"

	perrors "podrunner/internal/errors"
)

// maxLogLineSize bounds a single container log line.
const maxLogLineSize = 1024 * 1024

// DockerClient implements EngineClient against the Docker-compatible REST API
// that podman exposes on its service socket.
type DockerClient struct {
	client *client.Client
}

// NewEngineClient connects to the engine at the resolved socket URL. It does
// not contact the engine; NewEngine probes the version.
func NewEngineClient(socketURL string, opts ...client.Opt) (*DockerClient, error) {
	url := ResolveSocketURL(socketURL)
	slog.Info("Using podman socket", "url", url)

	clientOpts := append([]client.Opt{
		client.WithHost(url),
		client.WithAPIVersionNegotiation(),
	}, opts...)

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		slog.Error("Failed to initialize podman client", "url", url, "error", err)
		return nil, perrors.NewEngineInitError("Failed to initialize podman client", err)
	}

	return &DockerClient{client: cli}, nil
}

// Version returns the engine's API version.
func (d *DockerClient) Version(ctx context.Context) (string, error) {
	v, err := d.client.ServerVersion(ctx)
	if err != nil {
		return "", &EngineAPIError{Op: "version", Err: err}
	}
	return v.Version, nil
}

// Login authenticates against a registry.
func (d *DockerClient) Login(ctx context.Context, username, password, serverAddress string) error {
	_, err := d.client.RegistryLogin(ctx, registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: serverAddress,
	})
	if err != nil {
		return &EngineAPIError{Op: "login", Err: err}
	}
	return nil
}

// GetImage looks an image up by reference without pulling it.
func (d *DockerClient) GetImage(ctx context.Context, ref string) (ImageInfo, error) {
	images, err := d.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return ImageInfo{}, &EngineAPIError{Op: "image list", Err: err}
	}
	if len(images) == 0 {
		return ImageInfo{}, fmt.Errorf("%s: %w", ref, ErrEngineImageNotFound)
	}

	return ImageInfo{ID: images[0].ID, Tags: images[0].RepoTags}, nil
}

// PullImage pulls ref and returns the resulting local image. A pull the engine
// reports as successful but which left no matching image returns an empty
// ImageInfo and no error.
func (d *DockerClient) PullImage(ctx context.Context, ref string, auth *RegistryAuth) (ImageInfo, error) {
	opts := image.PullOptions{}
	if auth != nil {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			ServerAddress: auth.ServerAddress,
		})
		if err != nil {
			return ImageInfo{}, fmt.Errorf("failed to encode registry auth: %w", err)
		}
		opts.RegistryAuth = encoded
	}

	reader, err := d.client.ImagePull(ctx, ref, opts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ImageInfo{}, fmt.Errorf("%s: %w", ref, ErrEngineImageNotFound)
		}
		return ImageInfo{}, &EngineAPIError{Op: "image pull", Err: err}
	}
	defer reader.Close()

	// The pull stream reports registry failures in-band.
	if err := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil); err != nil {
		var jsonErr *jsonmessage.JSONError
		if errors.As(err, &jsonErr) && isImageNotFoundMessage(jsonErr.Message) {
			return ImageInfo{}, fmt.Errorf("%s: %s: %w", ref, jsonErr.Message, ErrEngineImageNotFound)
		}
		return ImageInfo{}, &EngineAPIError{Op: "image pull", Err: err}
	}

	info, err := d.GetImage(ctx, ref)
	if errors.Is(err, ErrEngineImageNotFound) {
		return ImageInfo{}, nil
	}
	return info, err
}

func isImageNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "manifest unknown") ||
		strings.Contains(msg, "does not exist")
}

// ContainerExists reports whether the engine knows the container.
func (d *DockerClient) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	_, err := d.InspectContainer(ctx, containerID)
	if errors.Is(err, ErrEngineNotFound) {
		return false, nil
	}
	return err == nil, err
}

// InspectContainer returns the container's state.
func (d *DockerClient) InspectContainer(ctx context.Context, containerID string) (ContainerInfo, error) {
	resp, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerInfo{}, fmt.Errorf("%s: %w", containerID, ErrEngineNotFound)
		}
		return ContainerInfo{}, &EngineAPIError{Op: "container inspect", Err: err}
	}
	if resp.ContainerJSONBase == nil {
		return ContainerInfo{}, &EngineAPIError{Op: "container inspect", Err: fmt.Errorf("empty inspect response for %s", containerID)}
	}

	info := ContainerInfo{
		ID:   resp.ID,
		Name: strings.TrimPrefix(resp.Name, "/"),
	}
	if resp.State != nil {
		info.Status = string(resp.State.Status)
		info.ExitCode = resp.State.ExitCode
		info.Error = resp.State.Error
	}
	if resp.Config != nil {
		info.Tty = resp.Config.Tty
	}
	return info, nil
}

// RunContainer creates and starts a container.
func (d *DockerClient) RunContainer(ctx context.Context, spec RunSpec) (ContainerInfo, error) {
	config, hostConfig, err := buildContainerConfig(spec)
	if err != nil {
		return ContainerInfo{}, &ContainerRunError{Image: spec.Image, Err: err}
	}

	resp, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerInfo{}, fmt.Errorf("%s: %w", spec.Image, ErrEngineImageNotFound)
		}
		return ContainerInfo{}, &ContainerRunError{Image: spec.Image, Err: err}
	}
	for _, warning := range resp.Warnings {
		slog.Warn("Engine warning on container create", "containerID", resp.ID, "warning", warning)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if removeErr := d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			slog.Error("Failed to remove container after start failure", "containerID", resp.ID, "error", removeErr)
		}
		return ContainerInfo{}, &ContainerRunError{Image: spec.Image, Err: err}
	}

	info, err := d.InspectContainer(ctx, resp.ID)
	if err != nil {
		// An auto-removed container can be gone already; the id is still valid output.
		slog.Debug("Could not inspect started container", "containerID", resp.ID, "error", err)
		return ContainerInfo{ID: resp.ID, Name: spec.Name}, nil
	}
	return info, nil
}

func buildContainerConfig(spec RunSpec) (*container.Config, *container.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for key, hostPort := range spec.Ports {
		proto, port := nat.SplitProtoPort(key)
		p, err := nat.NewPort(proto, port)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port %q: %w", key, err)
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostPort: strconv.Itoa(hostPort)}}
	}

	var memory int64
	if spec.MemLimit != "" {
		limit, err := units.RAMInBytes(spec.MemLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid mem_limit %q: %w", spec.MemLimit, err)
		}
		memory = limit
	}

	var mounts []mount.Mount
	for _, m := range spec.Mounts {
		mountType := mount.TypeBind
		if m.Type != "" {
			mountType = mount.Type(m.Type)
		}
		mounts = append(mounts, mount.Mount{
			Type:     mountType,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	config := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Env:          envList(spec.Environment),
		User:         spec.User,
		WorkingDir:   spec.WorkingDir,
		Hostname:     spec.Hostname,
		Entrypoint:   spec.Entrypoint,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
		AttachStdout: spec.Stdout,
		AttachStderr: spec.Stderr,
	}

	hostConfig := &container.HostConfig{
		AutoRemove:     spec.Remove,
		PortBindings:   bindings,
		Mounts:         mounts,
		NetworkMode:    container.NetworkMode(spec.NetworkMode),
		Privileged:     spec.Privileged,
		ReadonlyRootfs: spec.ReadOnly,
		CapAdd:         spec.CapAdd,
		CapDrop:        spec.CapDrop,
		DNS:            spec.DNS,
		SecurityOpt:    spec.SecurityOpt,
		Resources: container.Resources{
			Memory: memory,
		},
	}

	return config, hostConfig, nil
}

// envList renders the environment as sorted KEY=value pairs.
func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for key, value := range env {
		list = append(list, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(list)
	return list
}

// StopContainer stops a container. Stopping a stopped container succeeds.
func (d *DockerClient) StopContainer(ctx context.Context, containerID string) error {
	if err := d.client.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("%s: %w", containerID, ErrEngineNotFound)
		}
		if isAlreadyStopped(err) {
			return nil
		}
		return &EngineAPIError{Op: "container stop", Err: err}
	}
	return nil
}

// isAlreadyStopped matches engines that reject stopping a stopped container
// instead of answering 304 Not Modified.
func isAlreadyStopped(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already stopped") || strings.Contains(msg, "not running")
}

// RemoveContainer removes a container.
func (d *DockerClient) RemoveContainer(ctx context.Context, containerID string, force, removeVolumes bool) error {
	err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: removeVolumes,
	})
	if err == nil {
		return nil
	}
	// Auto-removal racing an explicit remove means the container is going away.
	if client.IsErrNotFound(err) || strings.Contains(err.Error(), "already in progress") {
		return fmt.Errorf("%s: %w", containerID, ErrEngineNotFound)
	}
	return &EngineAPIError{Op: "container remove", Err: err}
}

// ContainerLogs returns the container's log lines in engine order. Stdout and
// stderr are demultiplexed into a single stream.
func (d *DockerClient) ContainerLogs(ctx context.Context, containerID string, opts LogOptions) ([]string, error) {
	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: opts.Stderr,
		Timestamps: opts.Timestamps,
	}
	if opts.Since > 0 {
		logOpts.Since = strconv.FormatInt(opts.Since, 10)
	}

	reader, err := d.client.ContainerLogs(ctx, containerID, logOpts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("%s: %w", containerID, ErrEngineNotFound)
		}
		return nil, &EngineAPIError{Op: "container logs", Err: err}
	}
	defer reader.Close()

	var buf bytes.Buffer
	if opts.Tty {
		_, err = io.Copy(&buf, reader)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, reader)
	}
	if err != nil {
		return nil, &EngineAPIError{Op: "container logs", Err: err}
	}

	var lines []string
	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &EngineAPIError{Op: "container logs", Err: err}
	}
	return lines, nil
}

// Close closes the engine connection.
func (d *DockerClient) Close() error {
	return d.client.Close()
}
