// Package cmd defines the Cobra subcommands (bootstrap, render,
// version). It bridges configuration, dependency injection, and the
// transport/application layers.
package cmd

import (
	"github.com/otterscale/fluxstrap/internal/bootstrap"
)

// BootstrapperInjector builds a fully wired Bootstrapper. Commands call
// it from RunE so that construction happens after flags are parsed and
// the logger is configured.
type BootstrapperInjector func() (*bootstrap.Bootstrapper, func(), error)
