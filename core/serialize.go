package core

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Node is one entry of the serialized pipeline description: class name,
// constructor arguments (child transforms are serialized recursively, not
// as an argument) and, in the replay form, the recorded parameters and
// whether the node's branch actually ran. ID is runtime-only bookkeeping
// and never leaves the process.
type Node struct {
	ClassName  string  `yaml:"class_name" json:"class_name"`
	Args       Args    `yaml:"args,omitempty" json:"args,omitempty"`
	Transforms []*Node `yaml:"transforms,omitempty" json:"transforms,omitempty"`
	Params     Params  `yaml:"params,omitempty" json:"params,omitempty"`
	Applied    *bool   `yaml:"applied,omitempty" json:"applied,omitempty"`

	ID int `yaml:"-" json:"-"`
}

// Args carries a node's constructor arguments. Values arrive as plain
// decoded YAML/JSON scalars, so accessors coerce the usual suspects.
type Args map[string]any

// Float returns the argument as a float64, accepting ints.
func (a Args) Float(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Int returns the argument as an int, accepting whole floats.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the argument as a bool.
func (a Args) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// String returns the argument as a string.
func (a Args) String(key, def string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return def
}

// IntSlice returns the argument as []int, accepting decoded []any.
func (a Args) IntSlice(key string) []int {
	switch v := a[key].(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, x := range v {
			switch n := x.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			}
		}
		return out
	}
	return nil
}

// StringMap returns the argument as map[string]string.
func (a Args) StringMap(key string) map[string]string {
	switch v := a[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, x := range v {
			if s, ok := x.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

// Map returns a nested argument map, or nil when absent or null.
func (a Args) Map(key string) Args {
	switch v := a[key].(type) {
	case Args:
		return v
	case map[string]any:
		return Args(v)
	}
	return nil
}

// Factory rebuilds a transform from its serialized arguments and already
// reconstructed children.
type Factory func(args Args, children []Transform) (Transform, error)

var registry = map[string]Factory{}

// Register maps a class name to its factory. Called from init in each
// package that contributes serializable transforms; a produced Definition
// must use a name resolvable here.
func Register(name string, f Factory) {
	registry[name] = f
}

// Build reconstructs a transform tree from its description.
func Build(n *Node) (Transform, error) {
	f, ok := registry[n.ClassName]
	if !ok {
		return nil, fmt.Errorf("core: unknown transform class %q", n.ClassName)
	}
	children := make([]Transform, len(n.Transforms))
	for i, c := range n.Transforms {
		t, err := Build(c)
		if err != nil {
			return nil, err
		}
		children[i] = t
	}
	return f(n.Args, children)
}

// ToYAML serializes a pipeline's structure.
func ToYAML(t Transform) ([]byte, error) {
	return yaml.Marshal(t.Definition())
}

// FromYAML restores a pipeline serialized with ToYAML.
func FromYAML(b []byte) (Transform, error) {
	var n Node
	if err := yaml.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("core: decode pipeline: %w", err)
	}
	return Build(&n)
}

// ToJSON serializes a pipeline's structure as JSON.
func ToJSON(t Transform) ([]byte, error) {
	return json.Marshal(t.Definition())
}

// FromJSON restores a pipeline serialized with ToJSON.
func FromJSON(b []byte) (Transform, error) {
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("core: decode pipeline: %w", err)
	}
	return Build(&n)
}
