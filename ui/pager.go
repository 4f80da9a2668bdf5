package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

type contentRenderedMsg struct {
	key     string
	content string
}

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
)

// pagerModel shows the rendered description of one work item.
type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	state    pagerState

	item alfred.Item

	// key of the render currently shown or awaited
	renderKey string

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newPagerModel(common *commonModel) pagerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0

	return pagerModel{
		common:   common,
		state:    pagerStateBrowse,
		viewport: vp,
	}
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight
}

// load shows item, rendering its description unless a render for the
// current width is memoized.
func (m *pagerModel) load(item alfred.Item) tea.Cmd {
	m.item = item
	m.state = pagerStateBrowse
	m.viewport.YOffset = 0

	width := m.renderWidth()
	m.renderKey = renderKey(item, m.common.cfg.GlamourStyle, width)
	if out, ok := m.common.rendered.Get(m.renderKey); ok {
		m.viewport.SetContent(string(out))
		return nil
	}

	m.viewport.SetContent("")
	return renderWithGlamour(m.renderKey, m.common.cfg.GlamourStyle, width, itemMarkdown(item))
}

// unload leaves the detail view. Memoized renders are kept.
func (m *pagerModel) unload() {
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	*m = pagerModel{common: m.common, viewport: m.viewport}
	m.viewport.SetContent("")
	m.viewport.GotoTop()
}

func (m *pagerModel) showStatusMessage(msg string) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(pagerContext, m.statusMessageTimer)
}

func (m *pagerModel) clearStatusMessage() {
	m.state = pagerStateBrowse
	m.statusMessage = ""
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		case "c", "enter":
			u := m.item.URL()
			if u == "" {
				return m, nil
			}
			status := "Copied " + u
			if err := writeClipboard(u); err != nil {
				log.Error("unable to copy to clipboard", "error", err)
				status = "Unable to copy: " + err.Error()
			}
			cmd := m.showStatusMessage(status)
			return m, cmd
		}

	case contentRenderedMsg:
		if err := m.common.rendered.Put(msg.key, []byte(msg.content)); err != nil {
			log.Debug("render not memoized", "key", msg.key, "error", err)
		}
		if msg.key != m.renderKey {
			return m, nil
		}
		m.viewport.SetContent(msg.content)
		return m, nil

	case tea.WindowSizeMsg:
		if m.item.Title != "" {
			cmds = append(cmds, m.load(m.item))
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m pagerModel) View() string {
	return m.viewport.View() + "\n" + m.statusBarView()
}

// statusBarView lays out logo, note, scroll position and help across the
// full width. The note gives way when space runs out.
func (m pagerModel) statusBarView() string {
	noteStyle, helpStyle := statusBarNoteStyle, statusBarHelpStyle
	note := m.item.Title
	if m.state == pagerStateStatusMessage {
		noteStyle, helpStyle = statusBarMessageStyle, statusBarMessageHelpStyle
		note = m.statusMessage
	}

	logo := logoView()
	scroll := statusBarScrollPosStyle(fmt.Sprintf(" %3.f%% ", 100*clamp(m.viewport.ScrollPercent(), 0, 1)))
	help := helpStyle(" c copy • esc back ")

	fixed := ansi.PrintableRuneWidth(logo) + ansi.PrintableRuneWidth(scroll) + ansi.PrintableRuneWidth(help)
	room := max(0, m.common.width-fixed)
	note = truncate.StringWithTail(" "+note+" ", uint(room), ellipsis) //nolint:gosec
	fill := strings.Repeat(" ", max(0, room-ansi.PrintableRuneWidth(note)))

	return logo + noteStyle(note+fill) + scroll + help
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (m pagerModel) renderWidth() int {
	width := m.viewport.Width
	if maxWidth := int(m.common.cfg.GlamourMaxWidth); maxWidth > 0 { //nolint:gosec
		width = min(width, maxWidth)
	}
	return max(0, width)
}

func renderKey(item alfred.Item, style string, width int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", item.Arg, style, width)
}

// itemMarkdown is the document shown for an item.
func itemMarkdown(item alfred.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	if item.Subtitle != "" {
		fmt.Fprintf(&b, "*%s*\n\n", item.Subtitle)
	}
	if u := item.URL(); u != "" {
		fmt.Fprintf(&b, "<%s>\n\n", u)
	}
	if item.Description != "" {
		b.WriteString("---\n\n")
		b.WriteString(item.Description)
	}
	return b.String()
}

// COMMANDS

func renderWithGlamour(key, style string, width int, md string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(style, width, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg{key: key, content: s}
	}
}

func glamourRender(style string, width int, markdown string) (string, error) {
	styleOpt := glamour.WithStylePath(style)
	if _, ok := styles.DefaultStyles[style]; ok {
		styleOpt = glamour.WithStandardStyle(style)
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}
