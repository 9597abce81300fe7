package core

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ApplyTarget submits individual objects to a cluster. It is the
// applying mechanism: it knows nothing about chains and applies
// exactly one object per call.
type ApplyTarget interface {
	Apply(ctx context.Context, chain string, obj *unstructured.Unstructured) error
	EnsureNamespace(ctx context.Context, name string) error
}

// ApplyReport lists the IDs of everything that was applied, in order.
type ApplyReport struct {
	Applied []string
}

type ApplyUseCase struct {
	target ApplyTarget
	log    *slog.Logger
}

func NewApplyUseCase(target ApplyTarget) *ApplyUseCase {
	return &ApplyUseCase{
		target: target,
		log:    slog.Default().With("component", "applier"),
	}
}

// Apply submits every unit of plan one at a time. A unit is submitted
// only after its predecessor has succeeded, and the first failure
// stops the run: later units are never attempted. The bootstrap
// resources are submitted last, each after the unit it depends on.
func (uc *ApplyUseCase) Apply(ctx context.Context, plan *Plan) (ApplyReport, error) {
	var report ApplyReport
	done := map[string]bool{}

	log := uc.log.With("run", plan.RunID)

	if err := uc.applyChain(ctx, log, plan.Flux, done, &report); err != nil {
		return report, err
	}

	for _, res := range []BootstrapResource{plan.Repository, plan.Reconciliation} {
		if !done[res.DependsOn] {
			return report, &ErrApply{Unit: res.ID, Err: fmt.Errorf("dependency %q has not been applied", res.DependsOn)}
		}
		if err := uc.target.Apply(ctx, "bootstrap", res.Object); err != nil {
			return report, &ErrApply{Unit: res.ID, Err: err}
		}
		done[res.ID] = true
		report.Applied = append(report.Applied, res.ID)
		log.Info("applied bootstrap resource", "unit", res.ID, "kind", res.Object.GetKind(), "name", res.Object.GetName())
	}

	if plan.Companion == nil {
		return report, nil
	}

	if err := uc.target.EnsureNamespace(ctx, plan.CompanionNamespace); err != nil {
		return report, fmt.Errorf("ensure companion namespace %s: %w", plan.CompanionNamespace, err)
	}
	if err := uc.applyChain(ctx, log, plan.Companion, done, &report); err != nil {
		return report, err
	}

	return report, nil
}

func (uc *ApplyUseCase) applyChain(ctx context.Context, log *slog.Logger, chain *DependencyChain, done map[string]bool, report *ApplyReport) error {
	for _, u := range chain.Units() {
		if u.Predecessor != "" && !done[u.Predecessor] {
			return &ErrApply{Unit: u.ID, Err: fmt.Errorf("predecessor %q has not been applied", u.Predecessor)}
		}
		if err := ctx.Err(); err != nil {
			return &ErrApply{Unit: u.ID, Err: err}
		}
		obj := u.Document.Object
		if err := uc.target.Apply(ctx, chain.Name(), obj); err != nil {
			return &ErrApply{Unit: u.ID, Err: err}
		}
		done[u.ID] = true
		report.Applied = append(report.Applied, u.ID)
		log.Info("applied unit",
			"unit", u.ID,
			"kind", obj.GetKind(),
			"namespace", obj.GetNamespace(),
			"name", obj.GetName(),
		)
	}
	return nil
}
