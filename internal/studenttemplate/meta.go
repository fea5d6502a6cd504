// Package studenttemplate implements the deterministic, side-effect-free
// part of the Student-Template Workflow (spec §4.8): parsing an example's
// meta.yaml and filtering its file tree down to what a student may see.
// It takes already-fetched in-memory byte maps and returns new byte maps;
// all Git and object-store I/O happens in the calling activities.
package studenttemplate

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ExecutionBackendRef names the execution backend an example requires.
type ExecutionBackendRef struct {
	Slug string `yaml:"slug"`
}

// DependencySpec is one testDependencies entry: either a bare identifier
// string or an object with an optional version constraint.
type DependencySpec struct {
	Slug       string
	Constraint string
}

// Meta is the subset of meta.yaml the release pipeline consumes (spec §6
// "Example metadata").
type Meta struct {
	Kind string `yaml:"kind"`
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`

	Properties struct {
		StudentTemplates       []string             `yaml:"studentTemplates"`
		StudentSubmissionFiles []string             `yaml:"studentSubmissionFiles"`
		AdditionalFiles        []string             `yaml:"additionalFiles"`
		TestFiles              []string             `yaml:"testFiles"`
		ExecutionBackend       ExecutionBackendRef  `yaml:"executionBackend"`
	} `yaml:"properties"`

	TestDependencies []DependencySpec `yaml:"-"`
}

// rawDependency supports both grammars testDependencies entries may use.
type rawDependency struct {
	Slug    string
	Version string
}

func (d *rawDependency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&d.Slug)
	}
	var obj struct {
		Slug    string `yaml:"slug"`
		Version string `yaml:"version"`
	}
	if err := value.Decode(&obj); err != nil {
		return err
	}
	d.Slug, d.Version = obj.Slug, obj.Version
	return nil
}

type rawMeta struct {
	Meta             `yaml:",inline"`
	TestDependencies []rawDependency `yaml:"testDependencies"`
}

// ParseMeta parses a meta.yaml file's bytes and returns a non-nil Meta on
// success. Callers that find no meta.yaml do not call ParseMeta and pass a
// nil Meta onward themselves.
func ParseMeta(content []byte) (*Meta, error) {
	var raw rawMeta
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing meta.yaml: %w", err)
	}
	m := raw.Meta
	for _, d := range raw.TestDependencies {
		if d.Version != "" {
			m.TestDependencies = append(m.TestDependencies, DependencySpec{Slug: d.Slug, Constraint: d.Version})
			continue
		}
		constraint, slug := splitConstraint(d.Slug)
		m.TestDependencies = append(m.TestDependencies, DependencySpec{Slug: slug, Constraint: constraint})
	}
	return &m, nil
}

var constraintPrefixes = []string{"^", "~", ">=", "<=", "==", ">", "<"}

// splitConstraint parses a bare testDependencies string entry like "^foo"
// into (constraint, slug); a plain "foo" has no constraint.
func splitConstraint(raw string) (constraint, slug string) {
	for _, prefix := range constraintPrefixes {
		if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
			return prefix, raw[len(prefix):]
		}
	}
	return "", raw
}
