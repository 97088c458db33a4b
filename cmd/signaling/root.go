package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/logging"
)

var (
	flagPort     string
	flagEnv      string
	flagLogLevel string
)

// errConfig marks failures that should exit with status 2.
var errConfig = errors.New("configuration error")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signaling",
		Short: "WebRTC signaling relay",
		Long: `Relays WebRTC offers, answers and ICE candidates between peers that
join the same named room over a WebSocket connection.

Configuration is read from the environment (and a local .env file);
flags override the environment.

Examples:
  signaling
  signaling --port 9000 --env production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logging.New(cfg.Environment, cfg.LogLevel))
		},
	}

	cmd.Flags().StringVarP(&flagPort, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&flagEnv, "env", "", "environment name (overrides ENVIRONMENT)")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("env") {
		cfg.Environment = flagEnv
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errConfig):
		return 2
	default:
		return 1
	}
}

// Execute runs the root command until SIGINT or SIGTERM and exits with
// its status.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
