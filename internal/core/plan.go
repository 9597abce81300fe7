package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Chain names used for unit IDs.
const (
	FluxChain      = "flux"
	CompanionChain = "companion"
)

// PlanRequest is the caller-supplied configuration for one bootstrap
// run.
type PlanRequest struct {
	// PinnedVersion selects a release explicitly. Empty means latest.
	PinnedVersion string

	Repository     RepositorySpec
	Reconciliation ReconciliationSpec

	// CompanionEnabled adds the companion controller's CRD set as an
	// independent chain.
	CompanionEnabled   bool
	CompanionNamespace string
}

// Plan is the complete, ordered outcome of one run of the sequencing
// engine. Nothing in it has been applied.
type Plan struct {
	RunID     string
	Version   ReleaseVersion
	BundleURL string

	Flux           *DependencyChain
	Repository     BootstrapResource
	Reconciliation BootstrapResource

	// Companion is nil when the companion CRD set is disabled.
	Companion          *DependencyChain
	CompanionURL       string
	CompanionNamespace string
}

type PlanUseCase struct {
	release   *ReleaseUseCase
	bootstrap *BootstrapUseCase
	crds      CRDSource
	decoder   ManifestDecoder
	builder   ChainBuilder
	log       *slog.Logger
}

func NewPlanUseCase(release *ReleaseUseCase, bootstrap *BootstrapUseCase, crds CRDSource, decoder ManifestDecoder, builder ChainBuilder) *PlanUseCase {
	return &PlanUseCase{
		release:   release,
		bootstrap: bootstrap,
		crds:      crds,
		decoder:   decoder,
		builder:   builder,
		log:       slog.Default().With("component", "planner"),
	}
}

// Plan resolves the release, fetches and decomposes its bundle, builds
// the dependency chain and attaches the bootstrap resources to its
// tail. Stages run strictly in sequence and the first failure aborts
// the run.
func (uc *PlanUseCase) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	runID := uuid.NewString()
	log := uc.log.With("run", runID)

	version, err := uc.release.Resolve(ctx, req.PinnedVersion)
	if err != nil {
		return nil, fmt.Errorf("resolve release: %w", err)
	}
	bundleURL := uc.release.BundleURL(version)
	log.Info("resolved release", "version", version, "pinned", req.PinnedVersion != "", "url", bundleURL)

	bundle, err := uc.release.Fetch(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}

	flux, err := uc.chain(FluxChain, bundle)
	if err != nil {
		return nil, err
	}
	log.Info("built dependency chain", "chain", flux.Name(), "units", flux.Len())

	repo, policy, err := uc.bootstrap.Attach(flux, req.Repository, req.Reconciliation)
	if err != nil {
		return nil, fmt.Errorf("attach bootstrap resources: %w", err)
	}

	plan := &Plan{
		RunID:          runID,
		Version:        version,
		BundleURL:      bundleURL,
		Flux:           flux,
		Repository:     repo,
		Reconciliation: policy,
	}

	if !req.CompanionEnabled {
		return plan, nil
	}

	if req.CompanionNamespace == "" {
		return nil, &ErrInvalidInput{Field: "companion namespace", Message: "must not be empty"}
	}

	crds, err := uc.crds.FetchCRDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch companion CRDs: %w", err)
	}

	companion, err := uc.chain(CompanionChain, crds)
	if err != nil {
		return nil, err
	}
	log.Info("built dependency chain", "chain", companion.Name(), "units", companion.Len())

	plan.Companion = companion
	plan.CompanionURL = uc.crds.URL()
	plan.CompanionNamespace = req.CompanionNamespace
	return plan, nil
}

func (uc *PlanUseCase) chain(name string, bundle ManifestBundle) (*DependencyChain, error) {
	docs, err := uc.decoder.Decompose(bundle)
	if err != nil {
		return nil, fmt.Errorf("decompose %s bundle: %w", name, err)
	}
	chain, err := uc.builder.Build(name, docs)
	if err != nil {
		return nil, fmt.Errorf("build %s chain: %w", name, err)
	}
	return chain, nil
}
