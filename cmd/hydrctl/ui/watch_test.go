package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statehydrate/pkg/hydrate"
)

type staticTarget struct {
	res *hydrate.Result
}

func (t *staticTarget) PushToken(ctx context.Context, token, replayKey string) error { return nil }

func (t *staticTarget) ReadResult(ctx context.Context) (*hydrate.Result, bool, error) {
	if t.res == nil {
		return nil, false, nil
	}
	return t.res, true, nil
}

func (t *staticTarget) Navigate(ctx context.Context, rawurl string) error { return nil }

func TestWatchViewWhileWaiting(t *testing.T) {
	model := NewWatchModel(&staticTarget{}, time.Second)

	view := model.View()
	assert.Contains(t, view, "waiting for hydration result")
	assert.Contains(t, view, "press q to cancel")
}

func TestWatchRendersResult(t *testing.T) {
	model := NewWatchModel(&staticTarget{}, time.Second)

	res := &hydrate.Result{
		Sections: map[string]hydrate.SectionResult{
			"user":     {Success: true, AppliedFields: []string{"age", "name"}},
			"settings": {Success: false, Error: "Extra atoms not in schema: legacy"},
		},
		OverallSuccess: false,
	}
	updated, cmd := model.Update(resultMsg{res: res})
	require.NotNil(t, cmd, "result must quit the program")

	view := updated.(WatchModel).View()
	assert.Contains(t, view, "hydration failed")
	assert.Contains(t, view, "user")
	assert.Contains(t, view, "Extra atoms not in schema: legacy")

	// Sections render sorted by name.
	assert.Less(t, strings.Index(view, "settings"), strings.Index(view, "user"))
}

func TestWatchTimesOut(t *testing.T) {
	model := NewWatchModel(&staticTarget{}, time.Millisecond)
	model.started = model.started.Add(-time.Second)

	updated, cmd := model.Update(pollMsg{})
	require.NotNil(t, cmd)

	m := updated.(WatchModel)
	assert.True(t, m.done)
	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "no hydration result")
}

func TestWatchCancelKey(t *testing.T) {
	model := NewWatchModel(&staticTarget{}, time.Second)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)

	m := updated.(WatchModel)
	assert.True(t, m.done)
	assert.Error(t, m.err)
}
