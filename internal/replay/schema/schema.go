package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// treeSchema covers the default tree layout: versions at the root, a
// property map or pair list, and network_frames.frames.
const treeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "engine_version":   {"type": "integer"},
    "licensee_version": {"type": "integer"},
    "patch_version":    {"type": ["integer", "null"]},
    "properties":       {"type": ["object", "array"]},
    "network_frames": {
      "type": "object",
      "properties": {
        "frames": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["time"],
            "properties": {
              "time":  {"type": "number"},
              "delta": {"type": "number"},
              "replications": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["actor_id", "value"],
                  "properties": {
                    "actor_id": {
                      "type": "object",
                      "required": ["value"],
                      "properties": {"value": {"type": "integer", "minimum": 0}}
                    },
                    "value": {"type": "object"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func treeValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString("tree.schema.json", treeSchema)
	})
	return compiled, compileErr
}

// Validate checks raw against the tree layout.
func Validate(raw []byte) error {
	s, err := treeValidator()
	if err != nil {
		return fmt.Errorf("compile tree schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode tree: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("tree schema: %w", err)
	}
	return nil
}
