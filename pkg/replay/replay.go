// Package replay provides the content-addressed replay guard: a durable
// record of which payload tokens have already been applied, so reloading
// the application does not re-apply state that persisted in the
// page-preparation channel. Tokens are keyed by hash, never stored whole.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Key returns the stable content address for a token: hex-encoded SHA-256
// of the token text.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Guard records completed hydration tokens by key.
type Guard interface {
	// Seen reports whether the key was recorded by a prior successful
	// hydration.
	Seen(ctx context.Context, key string) (bool, error)
	// Record marks the key completed. Recording an existing key is a
	// no-op.
	Record(ctx context.Context, key string) error
}

// Memory is a process-local Guard for tests and single-run tools.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemory returns an empty in-memory guard.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[key]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = struct{}{}
	return nil
}
