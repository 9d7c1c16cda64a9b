package hydrate

import (
	"fmt"
	"time"
)

// PersistedLoadError reports that a persisted cell's initial load failed
// while the barrier was waiting on it.
type PersistedLoadError struct {
	Err error
}

func (e *PersistedLoadError) Error() string {
	return fmt.Sprintf("hydrate: persisted cell failed to load: %v", e.Err)
}

func (e *PersistedLoadError) Unwrap() error { return e.Err }

// TimeoutError reports that persisted cells did not settle within the
// configured barrier deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("hydrate: persisted cells not ready after %dms", e.Timeout.Milliseconds())
}

// OrchestrationError wraps a failure outside the per-section hydration path
// (barrier failures, publication failures, replay guard I/O). Per-section
// validation and write failures are never wrapped in it; they surface
// in-band through SectionResult.
type OrchestrationError struct {
	Stage string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("hydrate: bootstrap failed during %s: %v", e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }
