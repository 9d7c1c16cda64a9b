// Package ui holds the live terminal views for hydrctl.
package ui

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"statehydrate/pkg/bridge"
	"statehydrate/pkg/hydrate"
)

// Styles collects the lipgloss styles the watch view renders with.
type Styles struct {
	Title   lipgloss.Style
	OK      lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Dim     lipgloss.Style
	Section lipgloss.Style
}

// DefaultStyles returns the standard watch palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		Section: lipgloss.NewStyle().PaddingLeft(2),
	}
}

type resultMsg struct {
	res *hydrate.Result
	err error
}

type pollMsg struct{}

// WatchModel polls a target for its hydration result and renders the
// per-section outcome as it lands.
type WatchModel struct {
	target  bridge.Target
	timeout time.Duration
	started time.Time

	spinner spinner.Model
	styles  Styles
	width   int

	result *hydrate.Result
	err    error
	done   bool
}

// NewWatchModel builds a watch view over the given target.
func NewWatchModel(target bridge.Target, timeout time.Duration) WatchModel {
	if timeout <= 0 {
		timeout = bridge.DefaultAwaitTimeout
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return WatchModel{
		target:  target,
		timeout: timeout,
		started: time.Now(),
		spinner: sp,
		styles:  DefaultStyles(),
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m WatchModel) poll() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		res, ok, err := m.target.ReadResult(ctx)
		if err != nil {
			return resultMsg{err: err}
		}
		if ok {
			return resultMsg{res: res}
		}
		return pollMsg{}
	})
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			if m.result == nil && m.err == nil {
				m.err = fmt.Errorf("watch cancelled")
			}
			return m, tea.Quit
		}
		return m, nil

	case pollMsg:
		if time.Since(m.started) > m.timeout {
			m.err = fmt.Errorf("no hydration result after %v", m.timeout)
			m.done = true
			return m, tea.Quit
		}
		return m, m.poll()

	case resultMsg:
		m.result = msg.res
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) View() string {
	s := m.styles
	if !m.done {
		elapsed := time.Since(m.started).Round(100 * time.Millisecond)
		return fmt.Sprintf("%s %s %s\n%s\n",
			m.spinner.View(),
			s.Title.Render("waiting for hydration result"),
			s.Dim.Render(elapsed.String()),
			s.Dim.Render("press q to cancel"))
	}
	if m.err != nil && m.result == nil {
		return s.Fail.Render("watch failed: "+m.err.Error()) + "\n"
	}
	return m.renderResult()
}

func (m WatchModel) renderResult() string {
	s := m.styles
	res := m.result

	header := s.OK.Render("hydration succeeded")
	if !res.OverallSuccess {
		header = s.Fail.Render("hydration failed")
	}
	out := header + "\n"

	names := make([]string, 0, len(res.Sections))
	for name := range res.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sr := res.Sections[name]
		status := s.OK.Render("ok")
		if !sr.Success {
			status = s.Fail.Render("failed")
		}
		line := fmt.Sprintf("%s  %s", status, name)
		if len(sr.AppliedFields) > 0 {
			line += "  " + s.Dim.Render(fmt.Sprintf("applied: %v", sr.AppliedFields))
		}
		out += s.Section.Render(line) + "\n"
		if sr.Error != "" {
			out += s.Section.Render("  "+s.Fail.Render(sr.Error)) + "\n"
		}
		for _, w := range sr.Warnings {
			out += s.Section.Render("  "+s.Warn.Render("warning: "+w)) + "\n"
		}
	}
	return out
}

// Watch runs the live view until a result is published, the timeout
// expires, or the user cancels. The published result is returned even when
// hydration failed, so the caller decides the exit code.
func Watch(ctx context.Context, target bridge.Target, timeout time.Duration) (*hydrate.Result, error) {
	p := tea.NewProgram(NewWatchModel(target, timeout), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(WatchModel)
	if !ok {
		return nil, fmt.Errorf("unexpected watch model %T", final)
	}
	if m.result != nil {
		return m.result, nil
	}
	return nil, m.err
}
