package runtime

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"podrunner/pkg/activation"
)

// loadPodArgs computes the engine start arguments for a request. Extra args
// are applied last and replace any computed key.
func (e *Engine) loadPodArgs(request *activation.ContainerRequest) map[string]any {
	name := request.Name
	if name == "" {
		name = "activation-" + uuid.NewString()
	}
	podArgs := map[string]any{"name": name}

	if len(request.Ports) > 0 {
		podArgs["ports"] = portMap(request.Ports)
	}

	if request.MemLimit != "" {
		podArgs["mem_limit"] = request.MemLimit
	}

	if len(request.Mounts) > 0 {
		mounts := make([]map[string]any, 0, len(request.Mounts))
		for _, m := range request.Mounts {
			mounts = append(mounts, map[string]any{
				"type":      m.Type,
				"source":    m.Source,
				"target":    m.Target,
				"read_only": m.ReadOnly,
			})
		}
		podArgs["mounts"] = mounts
	}

	if len(request.EnvVars) > 0 {
		podArgs["environment"] = request.EnvVars
	}

	for key, value := range request.ExtraArgs {
		podArgs[key] = value
	}

	keys := make([]string, 0, len(podArgs))
	for key := range podArgs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	e.logger.Debug("Loaded pod args", "keys", keys)

	return podArgs
}

// portMap publishes each container port as "<port>/tcp".
func portMap(ports []activation.PortMapping) map[string]any {
	out := make(map[string]any, len(ports))
	for _, p := range ports {
		hostPort := p.HostPort
		if hostPort == 0 {
			hostPort = p.ContainerPort
		}
		out[strconv.Itoa(p.ContainerPort)+"/tcp"] = hostPort
	}
	return out
}

// runSpec decodes the pod args into engine start parameters. Output capture,
// auto-removal and detached execution are always requested.
func (e *Engine) runSpec(request *activation.ContainerRequest, command []string) (RunSpec, error) {
	var spec RunSpec
	var metadata mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &spec,
		Metadata:         &metadata,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return RunSpec{}, err
	}
	if err := decoder.Decode(e.loadPodArgs(request)); err != nil {
		return RunSpec{}, fmt.Errorf("invalid pod args: %w", err)
	}

	for _, key := range metadata.Unused {
		e.logger.Warn("Ignoring unsupported pod arg", "key", key)
	}

	spec.Image = request.ImageURL
	spec.Command = command
	spec.Stdout = true
	spec.Stderr = true
	spec.Remove = true
	return spec, nil
}
