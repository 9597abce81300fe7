package core

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// reNonAlphaNum matches one or more consecutive non-alphanumeric
// characters.
var reNonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// ManifestBundle is the raw multi-document text retrieved for one
// release. Source records where the content came from.
type ManifestBundle struct {
	Source  string
	Content []byte
}

// ResourceDocument is one installable object extracted from a bundle.
// Ordinal is its position among the non-empty documents of the bundle,
// contiguous from zero.
type ResourceDocument struct {
	Ordinal int
	Object  *unstructured.Unstructured
}

// ApplyUnit wraps a ResourceDocument with at most one dependency edge.
// Predecessor holds the ID of the unit that must be applied first and
// is empty for the head of a chain.
type ApplyUnit struct {
	ID          string
	Ordinal     int
	Document    ResourceDocument
	Predecessor string
}

// DependencyChain is the ordered, linear set of apply units built for
// one bundle. It is immutable once constructed.
type DependencyChain struct {
	name  string
	units []*ApplyUnit
	index map[string]*ApplyUnit
}

// NewDependencyChain validates the given units and returns a chain
// over them. Unit IDs must be unique and every predecessor must refer
// to a unit that appears earlier in the slice.
func NewDependencyChain(name string, units []*ApplyUnit) (*DependencyChain, error) {
	c := &DependencyChain{
		name:  name,
		units: make([]*ApplyUnit, 0, len(units)),
		index: make(map[string]*ApplyUnit, len(units)),
	}
	for _, u := range units {
		if u == nil || u.ID == "" {
			return nil, &ErrInvalidInput{Field: "unit", Message: "unit ID is required"}
		}
		if _, dup := c.index[u.ID]; dup {
			return nil, &ErrInvalidInput{Field: "unit", Message: fmt.Sprintf("duplicate unit ID %q", u.ID)}
		}
		if u.Predecessor != "" {
			if _, ok := c.index[u.Predecessor]; !ok {
				return nil, &ErrInvalidInput{
					Field:   "unit",
					Message: fmt.Sprintf("unit %q depends on %q which does not precede it", u.ID, u.Predecessor),
				}
			}
		}
		c.units = append(c.units, u)
		c.index[u.ID] = u
	}
	return c, nil
}

// Name returns the chain name (e.g. "flux").
func (c *DependencyChain) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Len returns the number of units in the chain.
func (c *DependencyChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.units)
}

// Units returns the units in apply order. The returned slice is a
// copy; the units themselves must not be modified.
func (c *DependencyChain) Units() []*ApplyUnit {
	if c == nil {
		return nil
	}
	out := make([]*ApplyUnit, len(c.units))
	copy(out, c.units)
	return out
}

// Head returns the first unit, or nil when the chain is empty.
func (c *DependencyChain) Head() *ApplyUnit {
	if c.Len() == 0 {
		return nil
	}
	return c.units[0]
}

// Tail returns the last unit, or nil when the chain is empty.
func (c *DependencyChain) Tail() *ApplyUnit {
	if c.Len() == 0 {
		return nil
	}
	return c.units[len(c.units)-1]
}

// Unit looks up a unit by ID.
func (c *DependencyChain) Unit(id string) (*ApplyUnit, bool) {
	if c == nil {
		return nil, false
	}
	u, ok := c.index[id]
	return u, ok
}

// ChainBuilder turns an ordered sequence of documents into a chain of
// apply units. Implementations decide the dependency edges; the
// default LinearChainBuilder trusts declaration order only.
type ChainBuilder interface {
	Build(name string, docs []ResourceDocument) (*DependencyChain, error)
}

// LinearChainBuilder links every unit to the unit built from the
// document immediately before it. True inter-resource dependencies are
// not inferred from document content.
type LinearChainBuilder struct{}

var _ ChainBuilder = LinearChainBuilder{}

// NewLinearChainBuilder returns the default chain builder.
func NewLinearChainBuilder() LinearChainBuilder {
	return LinearChainBuilder{}
}

func (LinearChainBuilder) Build(name string, docs []ResourceDocument) (*DependencyChain, error) {
	units := make([]*ApplyUnit, 0, len(docs))
	prev := ""
	for _, doc := range docs {
		u := &ApplyUnit{
			ID:          UnitID(name, doc),
			Ordinal:     doc.Ordinal,
			Document:    doc,
			Predecessor: prev,
		}
		units = append(units, u)
		prev = u.ID
	}
	return NewDependencyChain(name, units)
}

// UnitID derives a stable, Kubernetes-name-compatible identifier for
// the unit built from doc within the named chain, in the form
// <chain>-<ordinal>-<kind>-<name>.
func UnitID(chain string, doc ResourceDocument) string {
	var kind, name string
	if doc.Object != nil {
		kind = doc.Object.GetKind()
		name = doc.Object.GetName()
	}
	raw := fmt.Sprintf("%s-%04d-%s-%s", chain, doc.Ordinal, kind, name)
	return sanitizeName(raw)
}

// sanitizeName lower-cases s, replaces non-alphanumeric runs with a
// single hyphen and trims leading/trailing hyphens. The result is
// capped at 63 characters. An input made only of special characters
// falls back to a hash-based name.
func sanitizeName(s string) string {
	original := s
	s = strings.ToLower(s)
	s = reNonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 63 {
		s = s[:63]
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		h := sha256.Sum256([]byte(original))
		s = fmt.Sprintf("u-%x", h[:8])
	}
	return s
}
