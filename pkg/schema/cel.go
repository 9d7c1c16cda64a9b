package schema

import (
	"fmt"
	"sort"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// CELSchema is the cel-go twin of RuleSchema for hosts already carrying CEL
// policies. Rules see `value` and `fields` and must evaluate to true. Like
// RuleSchema it is opaque (no FieldLister).
type CELSchema struct {
	rules    map[string]string
	programs map[string]celgo.Program
	envErr   error
}

// CEL compiles the given field rules against an environment exposing
// `value` and `fields` as dyn variables.
func CEL(rules map[string]string) *CELSchema {
	s := &CELSchema{rules: rules, programs: make(map[string]celgo.Program, len(rules))}
	env, err := celgo.NewEnv(
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("fields", celgo.DynType),
	)
	if err != nil {
		s.envErr = err
		return s
	}
	for field, rule := range rules {
		ast, issues := env.Compile(rule)
		if issues != nil && issues.Err() != nil {
			continue
		}
		program, err := env.Program(ast)
		if err != nil {
			continue
		}
		s.programs[field] = program
	}
	return s
}

func (s *CELSchema) Validate(v any) (map[string]any, Issues) {
	if s.envErr != nil {
		return nil, Issues{{Message: fmt.Sprintf("cel environment unavailable: %v", s.envErr)}}
	}
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
		out, _, err := program.Eval(map[string]any{"value": val, "fields": m})
		if err != nil {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule error: %v", err)})
			continue
		}
		if out != types.True {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("rule failed: %s", s.rules[field])})
		}
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return m, nil
}
