// Package main is the entry point for the fluxstrap binary. It
// supports three subcommands:
//
//   - bootstrap: installs Flux and its bootstrap resources on a cluster
//   - render:    prints the planned objects without touching a cluster
//   - version:   prints the build version
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otterscale/fluxstrap/internal/bootstrap"
	"github.com/otterscale/fluxstrap/internal/cmd"
	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the subcommands. Release and repository options are
// persistent because both bootstrap and render plan a release.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:              "fluxstrap",
		Short:            "fluxstrap: install Flux from its release bundle and bootstrap GitOps sync.",
		Version:          version,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRun: cmd.ConfigureLogging(conf),
	}

	if err := conf.BindFlags(c.PersistentFlags(), config.ReleaseOptions); err != nil {
		return nil, err
	}

	newBootstrapper := func() (*bootstrap.Bootstrapper, func(), error) {
		return wireBootstrapper(conf)
	}

	bootstrapCmd, err := cmd.NewBootstrapCommand(conf, newBootstrapper)
	if err != nil {
		return nil, err
	}

	c.AddCommand(
		bootstrapCmd,
		cmd.NewRenderCommand(newBootstrapper),
		cmd.NewVersionCommand(core.Version(version)),
	)

	return c, nil
}
