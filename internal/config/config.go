// Package config loads podrunner settings from a config file, PODRUNNER_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	perrors "podrunner/internal/errors"
)

// Setting keys.
const (
	KeySocketURL    = "podman_socket_url"
	KeyLogLevel     = "log_level"
	KeyStorePath    = "store_path"
	KeyPollInterval = "poll_interval"
	KeyMetricsAddr  = "metrics_addr"
)

const (
	envPrefix  = "PODRUNNER"
	configName = "podrunner"
)

// Config is the podrunner runtime configuration.
type Config struct {
	// PodmanSocketURL overrides the engine endpoint. Empty selects the
	// default socket for the current user.
	PodmanSocketURL string        `mapstructure:"podman_socket_url"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	StorePath       string        `mapstructure:"store_path" validate:"required"`
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"min=100ms"`
	MetricsAddr     string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

var validate = validator.New()

// New returns a viper instance with podrunner defaults and environment
// bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeySocketURL, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStorePath, defaultStorePath())
	v.SetDefault(KeyPollInterval, 5*time.Second)
	v.SetDefault(KeyMetricsAddr, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and returns the validated
// configuration. Without configFile, podrunner.yaml is looked up in the
// working directory and in ~/.config/podrunner.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, perrors.NewConfigError("Failed to read configuration file", err.Error(),
				"Check that the file exists and is valid YAML", err)
		}
	} else {
		slog.Debug("Loaded configuration file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, perrors.NewConfigError("Failed to decode configuration", err.Error(), "", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, perrors.NewConfigError("Invalid configuration", describe(err),
			"Valid log levels are debug, info, warn and error", err)
	}

	return &cfg, nil
}

// SlogLevel converts the configured level for a slog handler.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	var msgs []string
	for _, e := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", e.Field(), e.Tag(), e.Value()))
	}
	return strings.Join(msgs, "; ")
}

func defaultStorePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, configName, "podrunner.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", configName, "podrunner.db")
	}
	return "podrunner.db"
}
