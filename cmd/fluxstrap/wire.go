//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/otterscale/fluxstrap/internal/bootstrap"
	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
	"github.com/otterscale/fluxstrap/internal/providers"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireBootstrapper(*config.Config) (*bootstrap.Bootstrapper, func(), error) {
	panic(wire.Build(
		bootstrap.ProviderSet,
		core.ProviderSet,
		providers.ProviderSet,
	))
}
