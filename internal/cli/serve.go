package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/api"
	"github.com/Othello1111/edx-platform/internal/config"
	"github.com/Othello1111/edx-platform/internal/enrollments"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Listen     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the XBlock API",
		Long: `Serve the XBlock HTTP API over the configured learning contexts.

The server runs until interrupted (Ctrl+C or SIGTERM), then drains
in-flight requests and exits.`,
		Example: `  blockrt serve --config blockrt.yaml
  blockrt serve --config blockrt.yaml --listen 127.0.0.1:9000 -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (required)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), opts.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer a.Close()

	signer, err := api.NewTokenSigner([]byte(cfg.SecretKey), nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	srv, err := api.New(a.runtime, signer, platformUsers(a.enroll),
		api.WithLogger(logger),
		api.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d learning context(s) on %s\n", len(cfg.Contexts), cfg.Listen)
	if err := srv.Run(ctx, cfg.Listen); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}

// platformUsers adapts the enrollments user table to the API's lookup.
func platformUsers(store *enrollments.Store) api.UserLookup {
	return api.UserLookupFunc(func(ctx context.Context, id int64) (runtime.User, error) {
		u, err := store.UserByID(ctx, id)
		if errors.Is(err, enrollments.ErrUserNotFound) {
			return runtime.User{}, fmt.Errorf("%w: %d", api.ErrUserNotFound, id)
		}
		if err != nil {
			return runtime.User{}, err
		}
		return runtime.User{ID: u.ID, Username: u.Username}, nil
	})
}
