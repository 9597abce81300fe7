package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"

	"github.com/otterscale/fluxstrap/internal/core"
)

// Decoder implements core.ManifestDecoder for multi-document YAML
// bundles separated by "---" lines.
type Decoder struct{}

// Verify at compile time that Decoder satisfies core.ManifestDecoder.
var _ core.ManifestDecoder = (*Decoder)(nil)

// NewDecoder returns a new manifest Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decompose splits bundle into resource documents in source order.
// Empty, comment-only and null documents are skipped and do not
// consume an ordinal. Any other document that fails to parse aborts
// the whole bundle; no partial result is returned.
func (d *Decoder) Decompose(bundle core.ManifestBundle) ([]core.ResourceDocument, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(bundle.Content)))

	var docs []core.ResourceDocument
	for segment := 0; ; segment++ {
		raw, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &core.ErrParse{Document: segment, Err: err}
		}
		if isBlank(raw) {
			continue
		}

		obj, err := decodeObject(raw)
		if err != nil {
			return nil, &core.ErrParse{Document: segment, Err: err}
		}
		if obj == nil {
			continue
		}

		docs = append(docs, core.ResourceDocument{Ordinal: len(docs), Object: obj})
	}

	return docs, nil
}

// decodeObject converts a single YAML document into an unstructured
// object. A nil object with a nil error means the document is null.
func decodeObject(raw []byte) (*unstructured.Unstructured, error) {
	data, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("document is not a mapping")
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return obj, nil
}

// isBlank reports whether raw holds only whitespace, comments and
// document markers.
func isBlank(raw []byte) bool {
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") || strings.HasPrefix(line, "#") {
			continue
		}
		return false
	}
	return true
}
