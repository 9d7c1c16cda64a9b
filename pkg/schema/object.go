package schema

import (
	"fmt"
	"sort"
)

type kind int

const (
	kindAny kind = iota
	kindString
	kindNumber
	kindBool
	kindList
	kindMap
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "bool"
	case kindList:
		return "list"
	case kindMap:
		return "object"
	}
	return "any"
}

// Type describes the expected shape of one field.
type Type struct {
	kind     kind
	optional bool
	elem     *Type
	fields   Fields
}

// Fields maps field names to their expected types.
type Fields map[string]Type

func String() Type { return Type{kind: kindString} }
func Number() Type { return Type{kind: kindNumber} }
func Bool() Type   { return Type{kind: kindBool} }
func Any() Type    { return Type{kind: kindAny} }

// List expects a JSON array whose elements all match elem.
func List(elem Type) Type { return Type{kind: kindList, elem: &elem} }

// Map expects a nested JSON object matching the given fields.
func Map(fields Fields) Type { return Type{kind: kindMap, fields: fields} }

// Optional marks a field that may be absent. Absent optional fields are
// omitted from the validated value and therefore never written to a cell.
func Optional(t Type) Type {
	t.optional = true
	return t
}

// ObjectSchema is the declarative structural validator. It implements
// FieldLister, so strict-mode hydration can compare its declared fields
// against a section's cell map.
type ObjectSchema struct {
	fields Fields
}

// Object builds a schema expecting a JSON object with the given fields.
// Unknown keys are rejected.
func Object(fields Fields) *ObjectSchema {
	return &ObjectSchema{fields: fields}
}

// Fields returns the declared field names in sorted order.
func (s *ObjectSchema) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *ObjectSchema) Validate(v any) (map[string]any, Issues) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, Issues{{Message: fmt.Sprintf("expected object, got %s", typeName(v))}}
	}

	var issues Issues
	validated := make(map[string]any, len(m))

	for _, name := range s.Fields() {
		typ := s.fields[name]
		val, present := m[name]
		if !present {
			if !typ.optional {
				issues = append(issues, Issue{Path: name, Message: "required field missing"})
			}
			continue
		}
		issues = append(issues, checkType(name, val, typ)...)
		validated[name] = val
	}

	unknown := make([]string, 0)
	for key := range m {
		if _, declared := s.fields[key]; !declared {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		issues = append(issues, Issue{Path: key, Message: "unknown field"})
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return validated, nil
}

func checkType(path string, v any, typ Type) Issues {
	if v == nil {
		// null satisfies any; concrete kinds reject it.
		if typ.kind == kindAny {
			return nil
		}
		return Issues{{Path: path, Message: fmt.Sprintf("expected %s, got null", typ.kind)}}
	}

	switch typ.kind {
	case kindAny:
		return nil
	case kindString:
		if _, ok := v.(string); !ok {
			return Issues{{Path: path, Message: fmt.Sprintf("expected string, got %s", typeName(v))}}
		}
	case kindNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
		default:
			return Issues{{Path: path, Message: fmt.Sprintf("expected number, got %s", typeName(v))}}
		}
	case kindBool:
		if _, ok := v.(bool); !ok {
			return Issues{{Path: path, Message: fmt.Sprintf("expected bool, got %s", typeName(v))}}
		}
	case kindList:
		list, ok := v.([]any)
		if !ok {
			return Issues{{Path: path, Message: fmt.Sprintf("expected list, got %s", typeName(v))}}
		}
		var issues Issues
		for i, elem := range list {
			issues = append(issues, checkType(fmt.Sprintf("%s.%d", path, i), elem, *typ.elem)...)
		}
		return issues
	case kindMap:
		nested, ok := v.(map[string]any)
		if !ok {
			return Issues{{Path: path, Message: fmt.Sprintf("expected object, got %s", typeName(v))}}
		}
		var issues Issues
		for _, sub := range Object(typ.fields).validateNested(nested) {
			if sub.Path == "" {
				sub.Path = path
			} else {
				sub.Path = path + "." + sub.Path
			}
			issues = append(issues, sub)
		}
		return issues
	}
	return nil
}

// validateNested runs Validate but only returns the issues; nested objects
// keep their own relative paths.
func (s *ObjectSchema) validateNested(m map[string]any) Issues {
	_, issues := s.Validate(m)
	return issues
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, int32:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
