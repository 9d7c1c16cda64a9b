package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"statehydrate/pkg/hydrate"
)

// HTTP targets an application in another process that mounts
// hydrate.Handler under /hydration. Navigate issues a plain GET against the
// given URL, which is what triggers a server-side orchestration run in apps
// that bootstrap per request; targets with other load semantics can swap in
// NavigateFn.
type HTTP struct {
	// BaseURL is the application root, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Client defaults to a client with a 10s timeout.
	Client *http.Client
	// NavigateFn overrides the default GET navigation.
	NavigateFn func(ctx context.Context, rawurl string) error
}

func (t *HTTP) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (t *HTTP) endpoint(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/hydration" + path
}

func (t *HTTP) PushToken(ctx context.Context, token, replayKey string) error {
	body, err := json.Marshal(hydrate.QueueEntry{Token: token, ReplayKey: replayKey})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("/queue"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("queue push failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("queue push rejected: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (t *HTTP) ReadResult(ctx context.Context) (*hydrate.Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("/result"), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("result read failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("result read rejected: %s", resp.Status)
	}
	var res hydrate.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, false, fmt.Errorf("result parse failed: %w", err)
	}
	return &res, true, nil
}

func (t *HTTP) Navigate(ctx context.Context, rawurl string) error {
	if t.NavigateFn != nil {
		return t.NavigateFn(ctx, rawurl)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("navigation request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("navigation returned %s", resp.Status)
	}
	return nil
}
