package hydrate

import (
	"fmt"
	"net/url"
	"sync"
)

// QueryKey is the query parameter the orchestrator reads a token from when
// neither an explicit token nor the queue provides one.
const QueryKey = "hydrate"

// QueueEntry is one token staged by the page-preparation step.
type QueueEntry struct {
	Token     string `json:"token"`
	ReplayKey string `json:"replayKey"`
}

// BootstrapContext is the explicit stand-in for the handful of well-known
// page globals the engine touches: the page-preparation token queue, the
// current navigable location, and the result publication channel. One
// context belongs to one application instance; the orchestrator and the
// bridge share it (directly in-process, or through Handler over HTTP).
type BootstrapContext struct {
	mu       sync.Mutex
	queue    []QueueEntry
	location *url.URL
	channel  Channel
}

// NewBootstrapContext returns a context publishing results in memory.
func NewBootstrapContext() *BootstrapContext {
	return &BootstrapContext{channel: NewMemoryChannel()}
}

// SetChannel replaces the result publication channel. Call before the first
// orchestration run.
func (bc *BootstrapContext) SetChannel(ch Channel) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.channel = ch
}

// PushToken stages a token for the next orchestration run. Pushing a token
// already in the queue is a no-op, so the preparation step is idempotent
// per distinct token.
func (bc *BootstrapContext) PushToken(token, replayKey string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	for _, e := range bc.queue {
		if e.Token == token {
			return
		}
	}
	bc.queue = append(bc.queue, QueueEntry{Token: token, ReplayKey: replayKey})
}

// DrainQueue consumes and clears the staged tokens atomically, so a
// re-entrant orchestration run never reprocesses them.
func (bc *BootstrapContext) DrainQueue() []QueueEntry {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	drained := bc.queue
	bc.queue = nil
	return drained
}

// QueueLen reports how many tokens are currently staged.
func (bc *BootstrapContext) QueueLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.queue)
}

// SetLocation records the current navigable location, the source for
// query-parameter token discovery.
func (bc *BootstrapContext) SetLocation(rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return fmt.Errorf("hydrate: invalid location: %w", err)
	}
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.location = u
	return nil
}

// QueryToken returns the token carried by the location's query parameter,
// if any. Only the first value of the key is read.
func (bc *BootstrapContext) QueryToken(key string) (string, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.location == nil {
		return "", false
	}
	token := bc.location.Query().Get(key)
	return token, token != ""
}

// Publish exposes the orchestration result on the context's channel,
// overwriting any previous run's result.
func (bc *BootstrapContext) Publish(res *Result) error {
	bc.mu.Lock()
	ch := bc.channel
	bc.mu.Unlock()
	return ch.Publish(res)
}

// LoadResult reads back the most recently published result.
func (bc *BootstrapContext) LoadResult() (*Result, bool, error) {
	bc.mu.Lock()
	ch := bc.channel
	bc.mu.Unlock()
	return ch.Load()
}
