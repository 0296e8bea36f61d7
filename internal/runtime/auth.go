package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podrunner/pkg/activation"
)

// authEntry is one registry record in a containers auth.json file.
type authEntry struct {
	Auth string `json:"auth"`
}

// registryHost is the part of an image reference before the first slash.
func registryHost(imageURL string) string {
	host, _, _ := strings.Cut(imageURL, "/")
	return host
}

// setAuthJSONFile refreshes the auth file location. The file is only used
// when its directory already exists.
func (e *Engine) setAuthJSONFile() {
	authFile := filepath.Join(runtimeDir(), "containers", "auth.json")

	e.mu.Lock()
	defer e.mu.Unlock()

	if info, err := os.Stat(filepath.Dir(authFile)); err == nil && info.IsDir() {
		e.authFile = authFile
		e.logger.Debug("Will use auth file", "path", authFile)
		return
	}
	e.authFile = ""
	e.logger.Debug("Will not use auth file")
}

func (e *Engine) authJSONFile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authFile
}

func (e *Engine) login(ctx context.Context, request *activation.ContainerRequest) error {
	credential := request.Credential
	if credential == nil {
		return nil
	}

	registry := registryHost(request.ImageURL)
	if err := e.client.Login(ctx, credential.Username, credential.Secret, registry); err != nil {
		e.logger.Error("Registry login failed", "registry", registry, "error", err)
		return fmt.Errorf("login to %s failed: %w", registry, err)
	}

	e.logger.Debug("Registry login succeeded", "username", credential.Username, "registry", registry)
	return nil
}

// writeAuthJSON merges the request's credential into the auth file, keeping
// entries for other registries and any unrelated keys.
func (e *Engine) writeAuthJSON(request *activation.ContainerRequest) error {
	authFile := e.authJSONFile()
	if authFile == "" {
		e.logger.Debug("No auth file to create")
		return nil
	}

	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(authFile)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse auth file %s: %w", authFile, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read auth file %s: %w", authFile, err)
	}

	auths := map[string]json.RawMessage{}
	if raw, ok := doc["auths"]; ok {
		if err := json.Unmarshal(raw, &auths); err != nil {
			return fmt.Errorf("failed to parse auths in %s: %w", authFile, err)
		}
	}
	// "auths": null decodes to a nil map.
	if auths == nil {
		auths = map[string]json.RawMessage{}
	}

	entry, err := json.Marshal(createAuthKey(request.Credential))
	if err != nil {
		return err
	}
	auths[registryHost(request.ImageURL)] = entry

	if doc["auths"], err = json.Marshal(auths); err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc, "", "      ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(authFile, out, 0600); err != nil {
		return fmt.Errorf("failed to write auth file %s: %w", authFile, err)
	}
	return nil
}

func createAuthKey(credential *activation.Credential) authEntry {
	data := credential.Username + ":" + credential.Secret
	return authEntry{Auth: base64.StdEncoding.EncodeToString([]byte(data))}
}
