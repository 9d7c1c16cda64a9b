// Package schema defines the validator abstraction the hydration engine runs
// payload sections through, plus three interchangeable implementations: a
// declarative structural schema, and rule schemas backed by expr-lang and
// CEL.
package schema

import "strings"

// Issue is one field-level validation failure.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Issues formats as "<dotted.path>: <message>" entries joined by ", ".
// Issues with an empty path omit the prefix.
type Issues []Issue

func (is Issues) String() string {
	parts := make([]string, 0, len(is))
	for _, i := range is {
		if i.Path == "" {
			parts = append(parts, i.Message)
			continue
		}
		parts = append(parts, i.Path+": "+i.Message)
	}
	return strings.Join(parts, ", ")
}

// Schema structurally checks an arbitrary decoded value. On success it
// returns the validated object and a nil issue list; on failure the issue
// list is non-empty and the value is nil.
type Schema interface {
	Validate(v any) (map[string]any, Issues)
}

// FieldLister is the optional introspection capability: a schema that can
// enumerate its declared field names. Validators without it degrade the
// engine's strict consistency check to the validated value's own keys.
type FieldLister interface {
	Fields() []string
}

// Func adapts a plain function into a Schema. The result is opaque: it does
// not implement FieldLister.
type Func func(v any) (map[string]any, Issues)

func (f Func) Validate(v any) (map[string]any, Issues) { return f(v) }
