package hydrate

import (
	"context"
	"time"

	"statehydrate/pkg/cell"
)

// WaitPersisted blocks until every cell named in some section's Persisted
// list has produced its first value. Cells referenced from several sections
// count once; persisted names missing from a section's cell map are skipped.
// With nothing to wait on it returns immediately and never starts a timer.
//
// The barrier only observes readiness; it never writes a cell. On failure it
// returns *PersistedLoadError (first rejected future in collection order
// after all settled), *TimeoutError (deadline elapsed), or the context's
// error. All paths release the deadline timer.
func WaitPersisted(ctx context.Context, reg Registry, opts BarrierOptions) error {
	cells := persistedCells(reg)
	if len(cells) == 0 {
		return nil
	}

	var futures []cell.Future
	for _, c := range cells {
		_, fut, err := cell.Settle(c)
		if err != nil {
			return &PersistedLoadError{Err: err}
		}
		if fut != nil {
			futures = append(futures, fut)
		}
	}
	if len(futures) == 0 {
		return nil
	}

	timeout := opts.timeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for _, fut := range futures {
		select {
		case <-fut.Done():
		case <-timer.C:
			return &TimeoutError{Timeout: timeout}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, fut := range futures {
		if err := fut.Err(); err != nil {
			return &PersistedLoadError{Err: err}
		}
	}
	return nil
}

// persistedCells collects the unique cells reachable through Persisted
// lists, in deterministic order: sections sorted by name, fields in their
// declared Persisted order.
func persistedCells(reg Registry) []cell.Cell {
	seen := make(map[cell.Cell]struct{})
	var out []cell.Cell
	for _, name := range reg.sectionNames() {
		sec := reg[name]
		for _, field := range sec.Persisted {
			c, ok := sec.Cells[field]
			if !ok {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
