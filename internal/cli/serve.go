package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dolu89/ghost-relay/internal/config"
	"github.com/Dolu89/ghost-relay/internal/eventstore"
	"github.com/Dolu89/ghost-relay/internal/server"
	"github.com/Dolu89/ghost-relay/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port     int
	Database string
	LogLevel string

	// Listener overrides the configured listen address (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Long: `Run the websocket relay until interrupted.

Configuration comes from the environment (PORT, HOST, DB_PATH, LOG_LEVEL,
LOG_FORMAT, MAX_MESSAGE_BYTES, RESTRICT_FILTERS). Flags override it.

Example:
  ghost-relay serve
  ghost-relay serve --port 7777 --db ./ghost.db --log-level debug`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides PORT)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides DB_PATH)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	return cmd
}

// resolveConfig loads the environment and applies flag overrides.
func resolveConfig(opts *ServeOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.Port
	}
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	logger.Info("opening database", "path", cfg.DBPath)
	table, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := table.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	events, err := eventstore.New(ctx, table, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}
	logger.Info("event store ready", "events", events.Len())

	srv := server.New(events, server.Options{
		MaxMessageBytes: cfg.MaxMessageBytes,
		RestrictFilters: cfg.RestrictFilters,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ghost relay listening on %s\n", ln.Addr())

	if err := srv.Serve(ctx, ln); err != nil {
		return WrapExitError(ExitFailure, "relay error", err)
	}
	return nil
}
