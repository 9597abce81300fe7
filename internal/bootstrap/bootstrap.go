// Package bootstrap wires the release planner and the chain applier
// into the two operations the CLI exposes: applying a full bootstrap
// run to a cluster, and rendering the planned objects as YAML for
// review.
//
// All applies are idempotent: re-running bootstrap on a cluster that
// already has the resources installed is a safe no-op (or a controlled
// version bump).
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/otterscale/fluxstrap/internal/config"
	"github.com/otterscale/fluxstrap/internal/core"
)

// Annotations added to every rendered object.
const (
	UnitAnnotation      = "fluxstrap.otterscale.io/unit"
	DependsOnAnnotation = "fluxstrap.otterscale.io/depends-on"
)

// Bootstrapper turns configuration into a plan and either applies or
// renders it.
type Bootstrapper struct {
	conf  *config.Config
	plan  *core.PlanUseCase
	apply *core.ApplyUseCase
	log   *slog.Logger
}

func New(conf *config.Config, plan *core.PlanUseCase, apply *core.ApplyUseCase) *Bootstrapper {
	return &Bootstrapper{
		conf:  conf,
		plan:  plan,
		apply: apply,
		log:   slog.Default().With("component", "bootstrap"),
	}
}

// Request builds the plan request from configuration. The Kustomization
// always pulls from the GitRepository rendered alongside it.
func (b *Bootstrapper) Request() core.PlanRequest {
	name, namespace := b.conf.SyncName(), b.conf.SyncNamespace()
	interval := b.conf.RepoInterval()

	return core.PlanRequest{
		PinnedVersion: b.conf.FluxVersion(),
		Repository: core.RepositorySpec{
			Name:      name,
			Namespace: namespace,
			URL:       b.conf.RepoURL(),
			Branch:    b.conf.RepoBranch(),
			SecretRef: b.conf.RepoSecret(),
			Interval:  interval,
		},
		Reconciliation: core.ReconciliationSpec{
			Name:       name,
			Namespace:  namespace,
			Path:       b.conf.RepoPath(),
			Prune:      true,
			Interval:   interval,
			SourceName: name,
		},
		CompanionEnabled:   b.conf.CompanionEnabled(),
		CompanionNamespace: b.conf.CompanionNamespace(),
	}
}

// Run plans a release and applies it to the cluster.
func (b *Bootstrapper) Run(ctx context.Context) (core.ApplyReport, error) {
	plan, err := b.plan.Plan(ctx, b.Request())
	if err != nil {
		return core.ApplyReport{}, err
	}

	log := b.log.With("run", plan.RunID, "version", plan.Version)
	log.Info("starting bootstrap", "bundle", plan.BundleURL, "units", plan.Flux.Len())

	report, err := b.apply.Apply(ctx, plan)
	if err != nil {
		log.Error("bootstrap failed", "applied", len(report.Applied), "error", err)
		return report, err
	}

	log.Info("bootstrap completed successfully", "applied", len(report.Applied))
	return report, nil
}

// Render plans a release and writes every object to w as
// multi-document YAML in apply order, without touching a cluster.
func (b *Bootstrapper) Render(ctx context.Context, w io.Writer) error {
	plan, err := b.plan.Plan(ctx, b.Request())
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "# flux %s from %s\n", plan.Version, plan.BundleURL); err != nil {
		return err
	}

	for _, u := range plan.Flux.Units() {
		if err := writeObject(w, u.Document.Object, u.ID, u.Predecessor); err != nil {
			return err
		}
	}
	for _, res := range []core.BootstrapResource{plan.Repository, plan.Reconciliation} {
		if err := writeObject(w, res.Object, res.ID, res.DependsOn); err != nil {
			return err
		}
	}
	for _, u := range plan.Companion.Units() {
		if err := writeObject(w, u.Document.Object, u.ID, u.Predecessor); err != nil {
			return err
		}
	}

	b.log.Info("rendered plan", "run", plan.RunID, "version", plan.Version)
	return nil
}

func writeObject(w io.Writer, obj *unstructured.Unstructured, id, dependsOn string) error {
	out := obj.DeepCopy()
	annotations := out.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[UnitAnnotation] = id
	if dependsOn != "" {
		annotations[DependsOnAnnotation] = dependsOn
	}
	out.SetAnnotations(annotations)

	data, err := yaml.Marshal(out.Object)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
