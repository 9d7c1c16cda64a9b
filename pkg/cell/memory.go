package cell

import "sync"

// Memory is a plain in-memory cell. It is never pending.
type Memory struct {
	mu sync.RWMutex
	v  any
}

// NewMemory returns a memory cell holding the given initial value.
func NewMemory(initial any) *Memory {
	return &Memory{v: initial}
}

func (m *Memory) Read() (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v, nil
}

func (m *Memory) Write(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = v
	return nil
}
