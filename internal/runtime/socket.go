package runtime

import (
	"fmt"
	"os"
	"path/filepath"
)

const rootSocketURL = "unix:///run/podman/podman.sock"

// ResolveSocketURL picks the engine endpoint: the configured URL if any, the
// system socket when running as root, otherwise the rootless user socket.
func ResolveSocketURL(configured string) string {
	if configured != "" {
		return configured
	}

	if os.Geteuid() == 0 {
		return rootSocketURL
	}

	return "unix://" + filepath.Join(runtimeDir(), "podman", "podman.sock")
}

// runtimeDir returns $XDG_RUNTIME_DIR, or the conventional per-uid path.
func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return fmt.Sprintf("/run/user/%d", os.Getuid())
}
