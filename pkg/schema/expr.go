package schema

import (
	"fmt"
	"sort"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// RuleSchema validates sections with expr-lang programs, one per field. A
// rule sees `value` (the field's value) and `fields` (the whole section
// object) and must evaluate to true. Fields without a rule pass through
// unchecked; fields named by a rule must be present.
//
// RuleSchema is deliberately opaque: it does not implement FieldLister, so
// it exercises the engine's reduced-strictness fallback.
type RuleSchema struct {
	rules    map[string]string
	programs map[string]*exprvm.Program
}

// Rules compiles the given field rules eagerly; a rule that does not compile
// surfaces as a validation issue on every call rather than a constructor
// error, keeping the Schema interface uniform.
func Rules(rules map[string]string) *RuleSchema {
	s := &RuleSchema{rules: rules, programs: make(map[string]*exprvm.Program, len(rules))}
	for field, rule := range rules {
		program, err := exprlang.Compile(rule, exprlang.AllowUndefinedVariables())
		if err == nil {
			s.programs[field] = program
		}
	}
	return s
}

func (s *RuleSchema) Validate(v any) (map[string]any, Issues) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, Issues{{Message: fmt.Sprintf("expected object, got %s", typeName(v))}}
	}

	fields := make([]string, 0, len(s.rules))
	for field := range s.rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var issues Issues
	for _, field := range fields {
		val, present := m[field]
		if !present {
			issues = append(issues, Issue{Path: field, Message: "required field missing"})
			continue
		}
		program, ok := s.programs[field]
		if !ok {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule does not compile: %s", s.rules[field])})
			continue
		}
		env := map[string]any{"value": val, "fields": m}
		out, err := exprlang.Run(program, env)
		if err != nil {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule error: %v", err)})
			continue
		}
		pass, ok := out.(bool)
		if !ok {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule did not yield a bool: %s", s.rules[field])})
			continue
		}
		if !pass {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule failed: %s", s.rules[field])})
		}
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return m, nil
}
