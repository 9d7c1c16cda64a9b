// Package bridge is the driver-side helper an automated test uses to push a
// state snapshot at an application and read back what the hydration engine
// did with it. Targets abstract the transport: same process, HTTP, or a
// real browser page.
package bridge

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"statehydrate/pkg/blob"
	"statehydrate/pkg/hydrate"
	"statehydrate/pkg/replay"
)

// Target is the application under test, seen from the driving side.
type Target interface {
	// PushToken stages a token in the target's page-preparation queue.
	PushToken(ctx context.Context, token, replayKey string) error
	// ReadResult reads the published hydration result, reporting whether
	// one exists yet.
	ReadResult(ctx context.Context) (*hydrate.Result, bool, error)
	// Navigate points the target at a URL, triggering its (re)load and
	// with it the bootstrap orchestration.
	Navigate(ctx context.Context, rawurl string) error
}

// DefaultAwaitTimeout bounds AwaitResult when the caller passes zero.
const DefaultAwaitTimeout = 10 * time.Second

const pollInterval = 50 * time.Millisecond

// FailureError is returned when hydration completed with failed sections.
// The message lists every failure and warning; Result carries the full
// machine-readable outcome for programmatic assertions.
type FailureError struct {
	Result *hydrate.Result
}

func (e *FailureError) Error() string {
	names := make([]string, 0, len(e.Result.Sections))
	for name := range e.Result.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"hydration failed:"}
	for _, name := range names {
		sr := e.Result.Sections[name]
		if !sr.Success {
			lines = append(lines, fmt.Sprintf("%s: %s", name, sr.Error))
		}
		for _, w := range sr.Warnings {
			lines = append(lines, fmt.Sprintf("%s (warning): %s", name, w))
		}
	}
	return strings.Join(lines, "\n")
}

// Prepare encodes data and stages it on the target. Pushing the same data
// twice stages it once: tokens are content-addressed and the queue drops
// duplicates.
func Prepare(ctx context.Context, t Target, data any) (token string, err error) {
	token, err = blob.Encode(data)
	if err != nil {
		return "", err
	}
	if err := t.PushToken(ctx, token, replay.Key(token)); err != nil {
		return "", fmt.Errorf("bridge: failed to stage token: %w", err)
	}
	return token, nil
}

// AwaitResult polls the target until a hydration result is published. A
// result with OverallSuccess=false is returned wrapped in *FailureError so
// tests fail loudly by default while keeping the structured result
// attached.
func AwaitResult(ctx context.Context, t Target, timeout time.Duration) (*hydrate.Result, error) {
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		res, ok, err := t.ReadResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("bridge: failed to read result: %w", err)
		}
		if ok {
			if !res.OverallSuccess {
				return res, &FailureError{Result: res}
			}
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bridge: no hydration result after %v: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// HydrateAndLoad stages data, navigates, and waits for the outcome: the
// one-call path for most tests.
func HydrateAndLoad(ctx context.Context, t Target, data any, rawurl string) (*hydrate.Result, error) {
	if _, err := Prepare(ctx, t, data); err != nil {
		return nil, err
	}
	if err := t.Navigate(ctx, rawurl); err != nil {
		return nil, fmt.Errorf("bridge: navigation failed: %w", err)
	}
	return AwaitResult(ctx, t, 0)
}

// LoadWithQuery carries the payload in the navigation URL's query string
// instead of the preparation queue, for targets without a queue hook.
func LoadWithQuery(ctx context.Context, t Target, data any, rawurl string) (*hydrate.Result, error) {
	token, err := blob.Encode(data)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("bridge: invalid url: %w", err)
	}
	q := u.Query()
	q.Set(hydrate.QueryKey, token)
	u.RawQuery = q.Encode()

	if err := t.Navigate(ctx, u.String()); err != nil {
		return nil, fmt.Errorf("bridge: navigation failed: %w", err)
	}
	return AwaitResult(ctx, t, 0)
}
