// Package manifest parses and validates the declaration a plugin
// ships alongside its bytecode: its module id and the rendezvous
// addresses it intends to use. Loading the bytecode itself is out of
// scope for this package and for the core; manifest only describes
// the module's addressing surface.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/machinefabric/meshkernel-go/meshaddr"
)

// ConnectSpec declares one address a module intends to connect to at
// startup.
type ConnectSpec struct {
	Peer meshaddr.ModuleId `json:"peer"`
	Port meshaddr.Port     `json:"port"`
}

// Manifest is a plugin's self-description.
type Manifest struct {
	ModuleId meshaddr.ModuleId `json:"module_id"`
	Listens  []meshaddr.Port   `json:"listens,omitempty"`
	Connects []ConnectSpec     `json:"connects,omitempty"`
}

const schemaDocument = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["module_id"],
	"properties": {
		"module_id": {"type": "string", "minLength": 1},
		"listens": {
			"type": "array",
			"items": {"type": "integer", "minimum": 0, "maximum": 65535}
		},
		"connects": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["peer", "port"],
				"properties": {
					"peer": {"type": "string", "minLength": 1},
					"port": {"type": "integer", "minimum": 0, "maximum": 65535}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaDocument)

// Parse validates data against the manifest schema and decodes it.
func Parse(data []byte) (Manifest, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: schema validation error: %w", err)
	}
	if !result.Valid() {
		return Manifest{}, fmt.Errorf("manifest: invalid manifest: %s", joinErrors(result.Errors()))
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode: %w", err)
	}
	return m, nil
}

func joinErrors(errs []gojsonschema.ResultError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}
