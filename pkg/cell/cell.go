// Package cell models the reactive state slots the hydration engine reads
// and writes. A Cell is an opaque handle owned by the host application; the
// engine never creates or destroys cells, it only checks readiness and
// overwrites values.
package cell

import "fmt"

// Future is the settled-or-pending handle a storage-backed cell exposes
// while its initial load is in flight. Done is closed once the load settles;
// Err reports the load failure, if any, and is only meaningful after Done.
type Future interface {
	Done() <-chan struct{}
	Err() error
}

// Cell is a readable, writable state slot.
//
// Read reports the current value. A cell backed by asynchronous storage may
// instead signal that its first value is still loading, either by returning
// a value that implements Future or by returning a *Pending error. Settle
// normalizes both forms; callers inside the engine go through it.
type Cell interface {
	Read() (any, error)
	Write(v any) error
}

// Pending is the error a cell may raise from Read while its initial load is
// still in flight. It carries the Future the caller should wait on.
type Pending struct {
	Future Future
}

func (p *Pending) Error() string { return "cell: initial load pending" }

// Settle normalizes the three possible Read outcomes: a plain value, a
// returned Future, or a raised *Pending. It reports exactly one of value,
// future, or error.
func Settle(c Cell) (any, Future, error) {
	v, err := c.Read()
	if err != nil {
		if p, ok := err.(*Pending); ok {
			return nil, p.Future, nil
		}
		return nil, nil, err
	}
	if f, ok := v.(Future); ok {
		return nil, f, nil
	}
	return v, nil, nil
}

// Value returns the cell's settled value, waiting on the future first if the
// cell is still loading. Intended for tests and host code, not the engine's
// barrier (which must race futures against one deadline).
func Value(c Cell) (any, error) {
	v, fut, err := Settle(c)
	if err != nil {
		return nil, err
	}
	if fut == nil {
		return v, nil
	}
	<-fut.Done()
	if ferr := fut.Err(); ferr != nil {
		return nil, fmt.Errorf("cell: initial load failed: %w", ferr)
	}
	return c.Read()
}
