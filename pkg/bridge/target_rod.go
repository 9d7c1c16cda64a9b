package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"statehydrate/pkg/hydrate"
)

// Rod targets a real browser page whose frontend embeds the page-side
// hydration runtime: the queue lives at window.__hydrationQueue and the
// published result at window.__hydrationResult. The test owns the page and
// its browser lifecycle; Rod only talks to them.
type Rod struct {
	Page *rod.Page
	// NavigationTimeout defaults to 30s.
	NavigationTimeout time.Duration
}

func (t *Rod) navTimeout() time.Duration {
	if t.NavigationTimeout > 0 {
		return t.NavigationTimeout
	}
	return 30 * time.Second
}

func (t *Rod) PushToken(ctx context.Context, token, replayKey string) error {
	// Stage on every new document, not just the current one: the queue
	// must survive the navigation that triggers hydration.
	script := fmt.Sprintf(`(() => {
		window.__hydrationQueue = window.__hydrationQueue || [];
		if (window.__hydrationQueue.some(e => e.token === %q)) return;
		window.__hydrationQueue.push({token: %q, replayKey: %q});
	})();`, token, token, replayKey)

	if _, err := t.Page.EvalOnNewDocument(script); err != nil {
		return fmt.Errorf("failed to install token script: %w", err)
	}
	if _, err := t.Page.Context(ctx).Eval(script); err != nil {
		return fmt.Errorf("failed to stage token in page: %w", err)
	}
	return nil
}

func (t *Rod) ReadResult(ctx context.Context) (*hydrate.Result, bool, error) {
	res, err := t.Page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => window.__hydrationResult ? JSON.stringify(window.__hydrationResult) : ""`,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read result from page: %w", err)
	}
	raw := res.Value.Str()
	if raw == "" {
		return nil, false, nil
	}
	var result hydrate.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("failed to parse page result: %w", err)
	}
	return &result, true, nil
}

func (t *Rod) Navigate(ctx context.Context, rawurl string) error {
	page := t.Page.Context(ctx).Timeout(t.navTimeout())
	if err := page.Navigate(rawurl); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return page.WaitLoad()
}
