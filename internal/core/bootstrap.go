package core

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// RepositorySpec describes the Git repository the installed controller
// syncs from.
type RepositorySpec struct {
	Name      string
	Namespace string
	URL       string
	Branch    string
	SecretRef string
	Interval  time.Duration
}

// ReconciliationSpec describes how the controller reconciles the
// content of the repository.
type ReconciliationSpec struct {
	Name       string
	Namespace  string
	Path       string
	Prune      bool
	Interval   time.Duration
	SourceName string
}

// BootstrapResource is a follow-on object created after a bundle has
// been applied. DependsOn is the ID of the unit it waits for.
type BootstrapResource struct {
	ID        string
	Object    *unstructured.Unstructured
	DependsOn string
}

// ManifestRenderer builds the declarative bootstrap objects from their
// specs. Keeping it behind an interface leaves template details in the
// infrastructure layer.
type ManifestRenderer interface {
	RenderRepository(spec RepositorySpec) (*unstructured.Unstructured, error)
	RenderReconciliation(spec ReconciliationSpec) (*unstructured.Unstructured, error)
}

type BootstrapUseCase struct {
	renderer ManifestRenderer
}

func NewBootstrapUseCase(renderer ManifestRenderer) *BootstrapUseCase {
	return &BootstrapUseCase{
		renderer: renderer,
	}
}

// Attach renders the repository reference and the reconciliation
// policy and makes both depend directly on the tail of chain. The two
// resources do not depend on each other.
func (uc *BootstrapUseCase) Attach(chain *DependencyChain, repo RepositorySpec, policy ReconciliationSpec) (BootstrapResource, BootstrapResource, error) {
	tail := chain.Tail()
	if tail == nil {
		return BootstrapResource{}, BootstrapResource{}, &ErrEmptyChain{Chain: chain.Name()}
	}

	if err := validateRepository(repo); err != nil {
		return BootstrapResource{}, BootstrapResource{}, err
	}
	if err := validateReconciliation(policy); err != nil {
		return BootstrapResource{}, BootstrapResource{}, err
	}

	repoObj, err := uc.renderer.RenderRepository(repo)
	if err != nil {
		return BootstrapResource{}, BootstrapResource{}, fmt.Errorf("render repository: %w", err)
	}
	policyObj, err := uc.renderer.RenderReconciliation(policy)
	if err != nil {
		return BootstrapResource{}, BootstrapResource{}, fmt.Errorf("render reconciliation: %w", err)
	}

	repoRes := BootstrapResource{
		ID:        sanitizeName("bootstrap-" + repoObj.GetKind() + "-" + repoObj.GetName()),
		Object:    repoObj,
		DependsOn: tail.ID,
	}
	policyRes := BootstrapResource{
		ID:        sanitizeName("bootstrap-" + policyObj.GetKind() + "-" + policyObj.GetName()),
		Object:    policyObj,
		DependsOn: tail.ID,
	}
	return repoRes, policyRes, nil
}

func validateRepository(spec RepositorySpec) error {
	switch {
	case spec.URL == "":
		return &ErrInvalidInput{Field: "repository url", Message: "must not be empty"}
	case spec.Branch == "":
		return &ErrInvalidInput{Field: "repository branch", Message: "must not be empty"}
	case spec.Name == "" || spec.Namespace == "":
		return &ErrInvalidInput{Field: "repository name", Message: "name and namespace are required"}
	}
	return nil
}

func validateReconciliation(spec ReconciliationSpec) error {
	switch {
	case spec.Path == "":
		return &ErrInvalidInput{Field: "sync path", Message: "must not be empty"}
	case spec.SourceName == "":
		return &ErrInvalidInput{Field: "source name", Message: "must not be empty"}
	case spec.Name == "" || spec.Namespace == "":
		return &ErrInvalidInput{Field: "reconciliation name", Message: "name and namespace are required"}
	}
	return nil
}
