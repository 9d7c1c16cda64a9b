package hydrate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"statehydrate/pkg/blob"
	"statehydrate/pkg/schema"
)

// HydrateOptions configures Apply and ApplyToken.
type HydrateOptions struct {
	// Strict enforces full correspondence between a section's schema
	// fields and its cell map before any write.
	Strict bool
	Logger *zap.Logger
}

// DefaultOptions returns the standard hydration options: strict mode on.
func DefaultOptions() HydrateOptions {
	return HydrateOptions{Strict: true}
}

// Apply validates each payload section against the registry and writes the
// validated fields into the section's cells. Sections present only in the
// payload or only in the registry are skipped without a result entry.
// Section failures are recorded in-band; Apply itself never fails.
func Apply(payload map[string]any, reg Registry, opts HydrateOptions) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	result := newResult()
	for _, name := range reg.sectionNames() {
		raw, ok := payload[name]
		if !ok {
			continue
		}
		sr := applySection(raw, reg[name], opts)
		if sr.Success {
			logger.Debug("section hydrated",
				zap.String("section", name),
				zap.Strings("fields", sr.AppliedFields),
				zap.Int("warnings", len(sr.Warnings)))
		} else {
			logger.Warn("section hydration failed",
				zap.String("section", name),
				zap.String("error", sr.Error))
		}
		result.addSection(name, sr)
	}
	return result
}

// ApplyToken decodes a blob token and hydrates it. A malformed token fails
// every section defined in the registry with the decode error, and no cell
// is touched.
func ApplyToken(token string, reg Registry, opts HydrateOptions) *Result {
	decoded, err := blob.Decode(token)
	if err != nil {
		return failAll(reg, err.Error())
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return failAll(reg, "payload root is not an object")
	}
	return Apply(payload, reg, opts)
}

// failAll marks every registry section failed with the same message.
func failAll(reg Registry, msg string) *Result {
	result := newResult()
	for _, name := range reg.sectionNames() {
		result.addSection(name, SectionResult{Success: false, Error: msg})
	}
	result.OverallSuccess = false
	return result
}

func applySection(raw any, sec Section, opts HydrateOptions) SectionResult {
	validated, issues := sec.Schema.Validate(raw)
	if len(issues) > 0 {
		return SectionResult{Success: false, Error: issues.String()}
	}

	var warnings []string
	if opts.Strict {
		failure, warning := checkConsistency(sec, validated)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if failure != "" {
			return SectionResult{Success: false, Error: failure, Warnings: warnings}
		}
	}

	if sec.mode() == ModeWhole {
		return applyWhole(validated, sec, warnings)
	}
	return applyFlat(validated, sec, opts, warnings)
}

// checkConsistency enforces the strict-mode contract: the schema's declared
// fields and the section's cell map must correspond exactly. Schemas that
// cannot enumerate their fields degrade to the validated value's own keys
// with a diagnostic warning.
func checkConsistency(sec Section, validated map[string]any) (failure, warning string) {
	var fields []string
	if lister, ok := sec.Schema.(schema.FieldLister); ok {
		fields = lister.Fields()
	} else {
		fields = sortedKeys(validated)
		warning = "schema does not expose declared fields; strict check reduced to validated value keys"
	}

	if sec.mode() == ModeWhole {
		if len(sec.Cells) != 1 {
			return fmt.Sprintf("whole-mode section requires exactly one atom, found %d", len(sec.Cells)), warning
		}
		return "", warning
	}

	var missing []string
	for _, f := range fields {
		if _, ok := sec.Cells[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "Schema fields missing atom: " + strings.Join(missing, ", "), warning
	}

	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f] = struct{}{}
	}
	var extra []string
	for name := range sec.Cells {
		if _, ok := declared[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return "Extra atoms not in schema: " + strings.Join(extra, ", "), warning
	}
	return "", warning
}

// applyFlat writes each validated field into the cell of the same name.
// Only fields actually present after validation are applied, so optional
// absent fields are skipped. A failed write stops the section; fields
// already applied stay applied.
func applyFlat(validated map[string]any, sec Section, opts HydrateOptions, warnings []string) SectionResult {
	var applied []string
	for _, field := range sortedKeys(validated) {
		c, ok := sec.Cells[field]
		if !ok {
			// Unreachable in strict mode: checkConsistency already
			// enforced full correspondence.
			warnings = append(warnings, "No atom found for field: "+field)
			continue
		}
		if err := c.Write(validated[field]); err != nil {
			return SectionResult{
				Success:       false,
				Error:         fmt.Sprintf("Failed to set atom for field %s: %v", field, err),
				Warnings:      warnings,
				AppliedFields: applied,
			}
		}
		applied = append(applied, field)
	}
	return SectionResult{Success: true, Warnings: warnings, AppliedFields: applied}
}

// applyWhole writes the entire validated object into the section's single
// cell.
func applyWhole(validated map[string]any, sec Section, warnings []string) SectionResult {
	if len(sec.Cells) != 1 {
		// Non-strict mode arrives here unchecked.
		return SectionResult{
			Success:  false,
			Error:    fmt.Sprintf("whole-mode section requires exactly one atom, found %d", len(sec.Cells)),
			Warnings: warnings,
		}
	}
	var name string
	for n := range sec.Cells {
		name = n
	}
	if err := sec.Cells[name].Write(validated); err != nil {
		return SectionResult{
			Success:  false,
			Error:    fmt.Sprintf("Failed to set atom for field %s: %v", name, err),
			Warnings: warnings,
		}
	}
	return SectionResult{Success: true, Warnings: warnings, AppliedFields: []string{name}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
