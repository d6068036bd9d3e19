// Package openapi publishes the OpenAPI 3 description of the JSON routes.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var source []byte

var (
	once    sync.Once
	doc     *openapi3.T
	docErr  error
	asJSON  []byte
	asYAML  []byte
	version = "0.1.0"
)

// SetVersion overrides the document's info.version. It must be called before
// the first Document call.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func load() {
	loader := openapi3.NewLoader()
	d, err := loader.LoadFromData(source)
	if err != nil {
		docErr = fmt.Errorf("load openapi document: %w", err)
		return
	}
	if err := d.Validate(context.Background()); err != nil {
		docErr = fmt.Errorf("validate openapi document: %w", err)
		return
	}
	d.Info.Version = version

	js, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		docErr = fmt.Errorf("encode openapi json: %w", err)
		return
	}
	ym, err := toYAML(js)
	if err != nil {
		docErr = fmt.Errorf("encode openapi yaml: %w", err)
		return
	}
	doc, asJSON, asYAML = d, js, ym
}

// Document returns the parsed and validated document.
func Document() (*openapi3.T, error) {
	once.Do(load)
	return doc, docErr
}

// JSON returns the document encoded as indented JSON.
func JSON() ([]byte, error) {
	once.Do(load)
	return asJSON, docErr
}

// YAML returns the document encoded as block-style YAML, keys in document
// order.
func YAML() ([]byte, error) {
	once.Do(load)
	return asYAML, docErr
}

// toYAML re-encodes JSON as YAML. JSON is valid YAML, so decoding it into a
// node keeps key order; only the flow styles need clearing.
func toYAML(js []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(js, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
