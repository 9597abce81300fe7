// Package manifest turns raw YAML into domain objects and back. The
// Decoder splits release bundles into resource documents; the Renderer
// executes the embedded bootstrap templates. Templates and parsing
// details stay here, keeping the domain layer (core) free of
// infrastructure concerns.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/fluxstrap/internal/core"
	"github.com/otterscale/fluxstrap/manifests"
)

// Renderer implements core.ManifestRenderer by executing Go
// text/templates that each produce a single YAML document.
type Renderer struct {
	repository     *template.Template
	reconciliation *template.Template
}

// Verify at compile time that Renderer satisfies core.ManifestRenderer.
var _ core.ManifestRenderer = (*Renderer)(nil)

// NewRenderer parses the embedded bootstrap templates.
func NewRenderer() (*Renderer, error) {
	repository, err := parseTemplate("gitrepository.yaml")
	if err != nil {
		return nil, err
	}
	reconciliation, err := parseTemplate("kustomization.yaml")
	if err != nil {
		return nil, err
	}
	return &Renderer{
		repository:     repository,
		reconciliation: reconciliation,
	}, nil
}

// RenderRepository produces the GitRepository the controller pulls
// from. The secretRef block is omitted when no secret is configured.
func (r *Renderer) RenderRepository(spec core.RepositorySpec) (*unstructured.Unstructured, error) {
	data := repositoryData{
		Name:      spec.Name,
		Namespace: spec.Namespace,
		URL:       spec.URL,
		Branch:    spec.Branch,
		SecretRef: spec.SecretRef,
		Interval:  spec.Interval.String(),
	}
	return execute(r.repository, data)
}

// RenderReconciliation produces the Kustomization that syncs the
// configured path of the repository.
func (r *Renderer) RenderReconciliation(spec core.ReconciliationSpec) (*unstructured.Unstructured, error) {
	data := reconciliationData{
		Name:       spec.Name,
		Namespace:  spec.Namespace,
		Path:       spec.Path,
		Prune:      spec.Prune,
		Interval:   spec.Interval.String(),
		SourceName: spec.SourceName,
	}
	return execute(r.reconciliation, data)
}

// repositoryData holds the template parameters for the GitRepository.
type repositoryData struct {
	Name      string
	Namespace string
	URL       string
	Branch    string
	SecretRef string
	Interval  string
}

// reconciliationData holds the template parameters for the
// Kustomization.
type reconciliationData struct {
	Name       string
	Namespace  string
	Path       string
	Prune      bool
	Interval   string
	SourceName string
}

func execute(tmpl *template.Template, data any) (*unstructured.Unstructured, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	obj, err := decodeObject(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tmpl.Name(), err)
	}
	if obj == nil {
		return nil, fmt.Errorf("template %s rendered an empty document", tmpl.Name())
	}
	return obj, nil
}

// templateFuncNames lists the sprig functions the bootstrap templates
// may use. Everything else (dates, random, crypto, os, network) is
// left out so rendering stays deterministic.
var templateFuncNames = map[string]struct{}{
	"trim":       {},
	"trimSuffix": {},
	"lower":      {},
	"default":    {},
}

func templateFuncs() template.FuncMap {
	funcs := template.FuncMap{}
	for key, value := range sprig.TxtFuncMap() {
		if _, ok := templateFuncNames[key]; ok {
			funcs[key] = value
		}
	}
	funcs["yamlQuote"] = yamlQuote
	return funcs
}

func parseTemplate(name string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncs()).
		ParseFS(manifests.Bootstrap, "bootstrap/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// yamlQuote produces a JSON-encoded string (with surrounding quotes)
// that is safe to embed in a YAML double-quoted scalar. JSON string
// escaping is a strict subset of YAML double-quoted string escaping,
// so the result is always valid YAML regardless of the input content.
func yamlQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
