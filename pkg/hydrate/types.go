// Package hydrate implements the state hydration engine: registry-driven
// validation and application of externally supplied state snapshots, a
// readiness barrier for cells backed by asynchronous storage, and the
// bootstrap orchestration that discovers payload tokens, applies them, and
// publishes the outcome for the driving test to read back.
package hydrate

import (
	"sort"
	"time"

	"statehydrate/pkg/cell"
	"statehydrate/pkg/schema"
)

// Mode selects how a section's validated object reaches its cells.
type Mode string

const (
	// ModeFlat writes each validated field into the cell of the same name.
	// This is the default.
	ModeFlat Mode = "flat"
	// ModeWhole writes the entire validated object into the section's
	// single cell.
	ModeWhole Mode = "whole"
)

// Section describes one named slice of application state.
type Section struct {
	// Schema validates the raw payload value for this section.
	Schema schema.Schema
	// Cells maps field names to the host-owned cells that receive them.
	// In ModeWhole the map holds exactly one entry.
	Cells map[string]cell.Cell
	// Persisted names the fields whose cells are backed by asynchronous
	// storage and must settle before hydration writes to them. Names not
	// present in Cells are ignored.
	Persisted []string
	// Mode defaults to ModeFlat when empty.
	Mode Mode
}

func (s Section) mode() Mode {
	if s.Mode == "" {
		return ModeFlat
	}
	return s.Mode
}

// Registry maps section names to their definitions. The registry references
// cells, it never owns them.
type Registry map[string]Section

// sectionNames returns the registry's section names in sorted order, the
// deterministic processing order for everything in this package.
func (r Registry) sectionNames() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SectionResult is the immutable outcome for one section of one hydration
// pass.
type SectionResult struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	AppliedFields []string `json:"appliedFields,omitempty"`
}

// Result is the outcome of one hydration pass, or of an orchestration run
// aggregating several passes. OverallSuccess is the AND of every section
// result present; sections absent from the payload contribute nothing.
type Result struct {
	Sections       map[string]SectionResult `json:"sections"`
	OverallSuccess bool                     `json:"overallSuccess"`
}

func newResult() *Result {
	return &Result{Sections: make(map[string]SectionResult), OverallSuccess: true}
}

// merge folds a later pass's result into the aggregate: same-named sections
// overwrite, overall success ANDs.
func (r *Result) merge(other *Result) {
	for name, sr := range other.Sections {
		r.Sections[name] = sr
	}
	r.OverallSuccess = r.OverallSuccess && other.OverallSuccess
}

func (r *Result) addSection(name string, sr SectionResult) {
	r.Sections[name] = sr
	if !sr.Success {
		r.OverallSuccess = false
	}
}

// BarrierOptions configures WaitPersisted.
type BarrierOptions struct {
	// Timeout bounds the whole wait. Zero means DefaultBarrierTimeout.
	Timeout time.Duration
}

// DefaultBarrierTimeout is the barrier deadline when none is configured.
const DefaultBarrierTimeout = 3 * time.Second

func (o BarrierOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultBarrierTimeout
	}
	return o.Timeout
}
