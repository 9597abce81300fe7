package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
	"github.com/otterscale/fluxstrap/internal/transport"
)

func NewBootstrapCommand(conf *config.Config, newBootstrapper BootstrapperInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "bootstrap",
		Short:   "Install the latest (or pinned) Flux release and point it at a Git repository",
		Example: "fluxstrap bootstrap --repo-url=ssh://git@github.com/example/fleet.git --repo-path=./clusters/prod",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var listeners []transport.Listener
			if address := conf.MetricsAddress(); address != "" {
				srv, err := newMetricsServer(address)
				if err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				listeners = append(listeners, srv)
			}

			b, cleanup, err := newBootstrapper()
			if err != nil {
				return fmt.Errorf("failed to initialize bootstrapper: %w", err)
			}
			defer cleanup()

			return transport.Run(cmd.Context(), func(ctx context.Context) error {
				report, err := b.Run(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d objects\n", len(report.Applied))
				return err
			}, listeners...)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ApplyOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

func NewRenderCommand(newBootstrapper BootstrapperInjector) *cobra.Command {
	return &cobra.Command{
		Use:     "render",
		Short:   "Print the objects a bootstrap run would apply, in order, without touching a cluster",
		Example: "fluxstrap render --flux-version=v2.1.0 --repo-url=https://github.com/example/fleet.git --repo-path=./clusters/dev",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, cleanup, err := newBootstrapper()
			if err != nil {
				return fmt.Errorf("failed to initialize bootstrapper: %w", err)
			}
			defer cleanup()

			return b.Render(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func NewVersionCommand(v core.Version) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fluxstrap version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return err
		},
	}
}

// ConfigureLogging installs the default slog handler at the configured
// level. It runs before every subcommand.
func ConfigureLogging(conf *config.Config) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: conf.LogLevel()})
		slog.SetDefault(slog.New(handler))
	}
}
