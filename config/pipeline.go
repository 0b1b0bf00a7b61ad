// Package config loads and saves pipeline descriptions and the process
// runtime settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"augpipe/core"
)

const SupportedSchema = "v1"

// File is the on-disk pipeline document: a schema gate around the
// serialized transform tree.
type File struct {
	SchemaVersion string     `yaml:"schema_version"`
	Pipeline      *core.Node `yaml:"pipeline"`
}

// LoadPipeline parses a pipeline YAML, validates schema_version, and
// rebuilds the transform tree through the class registry.
func LoadPipeline(path string) (core.Transform, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.SchemaVersion == "" {
		f.SchemaVersion = SupportedSchema
	}
	if f.SchemaVersion != SupportedSchema {
		return nil, fmt.Errorf("config: pipeline schema_version %q not supported (want %q)", f.SchemaVersion, SupportedSchema)
	}
	if f.Pipeline == nil {
		return nil, fmt.Errorf("config: %s has no pipeline section", path)
	}
	return core.Build(f.Pipeline)
}

// SavePipeline writes the transform's description as a pipeline YAML.
func SavePipeline(path string, t core.Transform) error {
	raw, err := yaml.Marshal(File{SchemaVersion: SupportedSchema, Pipeline: t.Definition()})
	if err != nil {
		return fmt.Errorf("config: encode pipeline: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
