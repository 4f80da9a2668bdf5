package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
)

type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	items   map[string][]alfred.Item
	err     error
}

func (f *fakeRunner) Run(_ context.Context, query string) ([]alfred.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.items[query], f.err
}

var testItems = []alfred.Item{
	{Title: "Upgrade database", Subtitle: "5 minutes ago", Arg: "https://gitlab.test/i/3;Upgrade database", Description: "Move to **v16**."},
	{Title: "Fix login", Subtitle: "3 hours ago", Arg: "https://gitlab.test/i/1;Fix login"},
}

func newTestModel(t *testing.T, r Runner) model {
	t.Helper()
	m := newModel(Config{GlamourStyle: "notty"}, r)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(model)
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func stubClipboard(t *testing.T) *[]string {
	t.Helper()
	var copied []string
	orig := writeClipboard
	writeClipboard = func(s string) error {
		copied = append(copied, s)
		return nil
	}
	t.Cleanup(func() { writeClipboard = orig })
	return &copied
}

func TestResults(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m, _ = update(t, m, resultsMsg{query: "", items: testItems})

	if m.loading {
		t.Error("should not be loading after results arrived")
	}
	if len(m.items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(m.items))
	}
	view := m.View()
	if !strings.Contains(view, "Upgrade database") || !strings.Contains(view, "Fix login") {
		t.Errorf("view does not list items:\n%s", view)
	}

	// Results for a query that has since been edited are dropped.
	m, _ = update(t, m, resultsMsg{query: "stale", items: nil})
	if len(m.items) != 2 {
		t.Error("stale results should be ignored")
	}
}

func TestTypingRunsQuery(t *testing.T) {
	r := &fakeRunner{items: map[string][]alfred.Item{"w": testItems}}
	m := newTestModel(t, r)

	m, cmd := update(t, m, key("w"))
	if m.input.Value() != "w" {
		t.Fatalf("input = %q", m.input.Value())
	}
	if !m.loading {
		t.Error("should be loading after the query changed")
	}

	msg := findResults(t, cmd)
	if msg.query != "w" || len(msg.items) != 2 {
		t.Errorf("unexpected results %+v", msg)
	}
}

func TestCursorAndCopy(t *testing.T) {
	copied := stubClipboard(t)
	m := newTestModel(t, &fakeRunner{})
	m, _ = update(t, m, resultsMsg{query: "", items: testItems})

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("down"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	m, _ = update(t, m, key("up"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}

	m, cmd := update(t, m, key("enter"))
	if cmd == nil {
		t.Error("expected a status message timeout command")
	}
	if len(*copied) != 1 || (*copied)[0] != "https://gitlab.test/i/3" {
		t.Errorf("copied = %v", *copied)
	}
	if !strings.Contains(m.statusMessage, "Copied") {
		t.Errorf("status message = %q", m.statusMessage)
	}

	m, _ = update(t, m, statusMessageTimeoutMsg(listContext))
	if m.statusMessage != "" {
		t.Error("status message should be cleared")
	}
}

func TestEnterCompletesCommand(t *testing.T) {
	r := &fakeRunner{}
	m := newTestModel(t, r)
	m, _ = update(t, m, resultsMsg{query: "", items: []alfred.Item{
		{Title: "work", Autocomplete: "work ", Arg: "https://gitlab.test/g/work;work"},
	}})

	m, cmd := update(t, m, key("enter"))
	if m.input.Value() != "work " {
		t.Errorf("input = %q", m.input.Value())
	}
	if msg := findResults(t, cmd); msg.query != "work " {
		t.Errorf("query = %q", msg.query)
	}
}

func TestDetail(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m, _ = update(t, m, resultsMsg{query: "", items: testItems})

	m, cmd := update(t, m, key("tab"))
	if m.state != stateShowDetail {
		t.Fatalf("state = %s", m.state)
	}
	if cmd == nil {
		t.Fatal("expected a render command")
	}
	msg, ok := cmd().(contentRenderedMsg)
	if !ok {
		t.Fatalf("unexpected message %T", cmd())
	}
	if !strings.Contains(msg.content, "v16") {
		t.Errorf("rendered content misses the description:\n%s", msg.content)
	}

	m, _ = update(t, m, msg)
	if m.common.rendered.Len() != 1 {
		t.Error("render should be memoized")
	}
	if !strings.Contains(m.View(), "Upgrade database") {
		t.Errorf("detail view:\n%s", m.View())
	}

	// Back and forth again hits the memo.
	m, _ = update(t, m, key("esc"))
	if m.state != stateShowList {
		t.Fatalf("state = %s", m.state)
	}
	m, cmd = update(t, m, key("tab"))
	if cmd != nil {
		t.Error("memoized render should not be recomputed")
	}
	if m.state != stateShowDetail {
		t.Errorf("state = %s", m.state)
	}
}

func TestRefreshTick(t *testing.T) {
	r := &fakeRunner{}
	m := newTestModel(t, r)
	m.inflight = false

	m, cmd := update(t, m, refreshTickMsg{})
	if !m.inflight {
		t.Error("tick should start a query")
	}
	if cmd == nil {
		t.Fatal("expected commands")
	}

	// A tick while a query is in flight only reschedules.
	_, cmd = update(t, m, refreshTickMsg{})
	if cmd == nil {
		t.Fatal("expected the next tick to be scheduled")
	}
}

func TestQueryError(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m, _ = update(t, m, resultsMsg{query: "", err: errors.New("timeout waiting for cached data")})
	if !strings.Contains(m.View(), "timeout waiting for cached data") {
		t.Errorf("view does not show the error:\n%s", m.View())
	}
}

func TestEscClearsThenQuits(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m, _ = update(t, m, key("w"))

	m, _ = update(t, m, key("esc"))
	if m.input.Value() != "" {
		t.Errorf("input = %q", m.input.Value())
	}

	_, cmd := update(t, m, key("esc"))
	if cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc on an empty input should quit")
	}
}

// findResults runs cmd, descending into batches, and returns the first
// resultsMsg it produces.
func findResults(t *testing.T, cmd tea.Cmd) resultsMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("nil command")
	}
	switch msg := cmd().(type) {
	case resultsMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if res, ok := c().(resultsMsg); ok {
				return res
			}
		}
	}
	t.Fatal("no results message")
	return resultsMsg{}
}
