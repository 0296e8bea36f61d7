package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podrunner/internal/app"
	"podrunner/internal/config"
	perrors "podrunner/internal/errors"
	"podrunner/internal/logstore"
	"podrunner/internal/metrics"
	"podrunner/internal/parser"
	"podrunner/internal/runtime"
	"podrunner/internal/ui"
)

// version is set at build time via ldflags
var version = "dev"

var (
	v       = config.New()
	cfg     *config.Config
	console = ui.NewConsole()
)

var rootCmd = &cobra.Command{
	Use:     "podrunner",
	Short:   "Podrunner - run activation containers on podman",
	Version: version,
	Long: `Podrunner starts one container per activation on a podman engine, reports
its status, collects its logs into a local log store and cleans it up.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})))
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the container of an activation",
	Long: `Start parses a container request file, pulls the image if needed and starts
the container. The activation id can be used with status, logs and cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		activationID, _ := cmd.Flags().GetString("activation-id")

		request, err := parser.Parse(file)
		if err != nil {
			return err
		}

		return withEngine(cmd.Context(), func(ctx context.Context, engine *runtime.Engine, store *logstore.Store) error {
			if activationID == "" {
				activationID = uuid.NewString()
			}

			containerID, err := engine.Start(ctx, request, store.Handler(activationID))
			if err != nil {
				return err
			}
			if err := store.SetContainerID(activationID, containerID); err != nil {
				return err
			}

			console.PrintSuccess(fmt.Sprintf("Activation %s started container %s", activationID, containerID))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <activation-id|container-id>",
	Short: "Show the status of an activation's container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, engine *runtime.Engine, store *logstore.Store) error {
			status, err := engine.GetStatus(ctx, resolveContainer(store, args[0]))
			if err != nil {
				return err
			}
			console.PrintStatus(status)
			return nil
		})
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <activation-id>",
	Short: "Collect and print the logs of an activation",
	Long: `Logs reads new output from the activation's container into the log store and
prints everything stored for the activation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		activationID := args[0]
		offline, _ := cmd.Flags().GetBool("offline")

		printLogs := func(store *logstore.Store) error {
			entries, err := store.Lines(activationID)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.Time.IsZero() {
					console.PrintLine(entry.Line)
				} else {
					console.PrintLine(entry.Time.Local().Format(time.RFC3339) + " " + entry.Line)
				}
			}
			return nil
		}

		if offline {
			store, err := logstore.Open(cfg.StorePath)
			if err != nil {
				return err
			}
			defer store.Close()
			return printLogs(store)
		}

		return withEngine(cmd.Context(), func(ctx context.Context, engine *runtime.Engine, store *logstore.Store) error {
			if containerID := resolveContainer(store, activationID); containerID != activationID {
				if err := engine.UpdateLogs(ctx, containerID, store.Handler(activationID)); err != nil {
					return err
				}
			}
			return printLogs(store)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <activation-id>",
	Short: "Stop and remove the container of an activation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		activationID := args[0]
		purge, _ := cmd.Flags().GetBool("purge")

		return withEngine(cmd.Context(), func(ctx context.Context, engine *runtime.Engine, store *logstore.Store) error {
			containerID := resolveContainer(store, activationID)
			if err := engine.Cleanup(ctx, containerID, store.Handler(activationID)); err != nil {
				return err
			}
			if purge {
				if err := store.Delete(activationID); err != nil {
					return perrors.NewLogStoreError("Failed to purge activation logs", err)
				}
			}
			console.PrintSuccess(fmt.Sprintf("Container %s cleaned up", containerID))
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an activation until its container finishes",
	Long: `Run starts the container of a request file, polls its status and logs every
poll interval until it reaches a terminal status or is interrupted, and then
cleans it up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		activationID, _ := cmd.Flags().GetString("activation-id")

		request, err := parser.Parse(file)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.MetricsAddr != "" {
			shutdown := serveMetrics(cfg.MetricsAddr)
			defer shutdown()
		}

		return withEngine(ctx, func(ctx context.Context, engine *runtime.Engine, store *logstore.Store) error {
			state, err := app.Run(ctx, engine, store, request, app.RunOptions{
				ActivationID: activationID,
				PollInterval: cfg.PollInterval,
				Console:      console,
			})
			if err != nil {
				return err
			}

			console.PrintInfo(fmt.Sprintf("Activation %s finished", state.ActivationID))
			console.PrintStatus(state.Status)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the podrunner version",
	RunE: func(cmd *cobra.Command, args []string) error {
		console.PrintLine("podrunner " + version)
		return nil
	},
}

// withEngine opens the log store and the engine for the duration of fn.
func withEngine(ctx context.Context, fn func(context.Context, *runtime.Engine, *logstore.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := logstore.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := app.NewEngineFactory(cfg, slog.Default()).NewEngine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("Failed to close engine", "error", err)
		}
	}()

	return fn(ctx, engine, store)
}

// resolveContainer maps an activation id to its recorded container. Unknown
// ids are taken to be container ids.
func resolveContainer(store *logstore.Store, id string) string {
	containerID, err := store.ContainerID(id)
	if err != nil || containerID == "" {
		return id
	}
	return containerID
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("Failed to stop metrics server", "error", err)
		}
	}
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		slog.Error("Failed to bind flag", "flag", flag, "error", err)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a podrunner config file")
	rootCmd.PersistentFlags().String("socket-url", "", "Podman socket URL (default: the current user's podman socket)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "", "Path to the activation log store")
	bindFlag(config.KeySocketURL, "socket-url")
	bindFlag(config.KeyLogLevel, "log-level")
	bindFlag(config.KeyStorePath, "store")

	for _, cmd := range []*cobra.Command{startCmd, runCmd} {
		cmd.Flags().StringP("file", "f", "", "Path to the container request YAML file (required)")
		cmd.Flags().String("activation-id", "", "Activation id (default: generated)")
		if err := cmd.MarkFlagRequired("file"); err != nil {
			slog.Error("Failed to mark file flag as required", "command", cmd.Name(), "error", err)
		}
	}

	logsCmd.Flags().Bool("offline", false, "Print stored logs without contacting the engine")
	cleanupCmd.Flags().Bool("purge", false, "Also delete the activation's stored logs")

	rootCmd.AddCommand(startCmd, statusCmd, logsCmd, cleanupCmd, runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		perrors.HandleError(err)
		os.Exit(1)
	}
}
