// Package providers aggregates all infrastructure-layer implementations
// (github, manifest, kubernetes) into a single Wire provider set.
package providers

import (
	"github.com/google/wire"

	"github.com/otterscale/fluxstrap/internal/core"
	"github.com/otterscale/fluxstrap/internal/providers/github"
	"github.com/otterscale/fluxstrap/internal/providers/kubernetes"
	"github.com/otterscale/fluxstrap/internal/providers/manifest"
)

// ProviderSet is the Wire provider set for all external adapters.
var ProviderSet = wire.NewSet(
	github.NewClientFromConfig,
	github.NewFluxReleases,
	wire.Bind(new(core.ReleaseSource), new(*github.Releases)),
	github.NewCompanionCRDs,
	wire.Bind(new(core.CRDSource), new(*github.CRDs)),
	manifest.NewDecoder,
	wire.Bind(new(core.ManifestDecoder), new(*manifest.Decoder)),
	manifest.NewRenderer,
	wire.Bind(new(core.ManifestRenderer), new(*manifest.Renderer)),
	kubernetes.NewApplier,
	wire.Bind(new(core.ApplyTarget), new(*kubernetes.Applier)),
)
