package cell

import "sync"

// future is the settled/pending handle Async hands out while loading.
type future struct {
	done chan struct{}
	err  error
}

func (f *future) Done() <-chan struct{} { return f.done }

func (f *future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// NewFuture returns a Future plus the function that settles it. Useful for
// tests and for adapting host storage layers that expose their own
// completion callbacks.
func NewFuture() (Future, func(err error)) {
	f := &future{done: make(chan struct{})}
	var once sync.Once
	settle := func(err error) {
		once.Do(func() {
			f.err = err
			close(f.done)
		})
	}
	return f, settle
}

// Async is a cell whose first value comes from asynchronous storage. The
// loader runs on a goroutine started by NewAsync; until it settles, Read
// signals pending. A Write that lands before the load settles wins: the
// loaded value is discarded.
type Async struct {
	mu      sync.Mutex
	fut     *future
	value   any
	settled bool

	// Raise selects the suspense-style signaling form: Read returns a
	// *Pending error instead of the Future value.
	Raise bool
}

// NewAsync starts loader on its own goroutine and returns the cell.
func NewAsync(loader func() (any, error)) *Async {
	a := &Async{fut: &future{done: make(chan struct{})}}
	go func() {
		v, err := loader()
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.settled {
			if err == nil {
				a.value = v
				a.settled = true
			}
			a.fut.err = err
		}
		select {
		case <-a.fut.done:
		default:
			close(a.fut.done)
		}
	}()
	return a
}

func (a *Async) Read() (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settled {
		return a.value, nil
	}
	select {
	case <-a.fut.done:
		// Load finished with an error and nothing was written since.
		return nil, &Pending{Future: a.fut}
	default:
	}
	if a.Raise {
		return nil, &Pending{Future: a.fut}
	}
	return a.fut, nil
}

func (a *Async) Write(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = v
	a.settled = true
	return nil
}
