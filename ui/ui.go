// Package ui provides the interactive terminal lookup.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	"github.com/gitlab-lookup/gitlab-lookup/internal/cache"
	"github.com/muesli/reflow/truncate"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout   = time.Second * 3 // how long to show status messages like "copied!"
	defaultRefreshInterval = time.Second
	ellipsis               = "…"

	headerHeight    = 2
	statusBarHeight = 1
	itemHeight      = 3
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// Runner answers queries. *lookup.Lookup implements it.
type Runner interface {
	Run(ctx context.Context, query string) ([]alfred.Item, error)
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, runner Runner) *tea.Program {
	log.Debug("Starting tui", "query", cfg.Query, "style", cfg.GlamourStyle)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, runner), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	resultsMsg struct {
		query string
		items []alfred.Item
		err   error
	}
	refreshTickMsg          struct{}
	statusMessageTimeoutMsg applicationContext
)

// applicationContext indicates the area of the application something applies
// to. Occasionally used as an argument to commands and messages.
type applicationContext int

const (
	listContext applicationContext = iota
	pagerContext
)

// state is the top-level application state.
type state int

const (
	stateShowList state = iota
	stateShowDetail
)

func (s state) String() string {
	return map[state]string{
		stateShowList:   "showing results",
		stateShowDetail: "showing detail",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg      Config
	runner   Runner
	rendered *cache.MemoryCache
	width    int
	height   int
}

type model struct {
	common *commonModel
	state  state

	input   textinput.Model
	spinner spinner.Model

	items    []alfred.Item
	cursor   int
	loading  bool
	inflight bool
	err      error

	statusMessage      string
	statusMessageTimer *time.Timer

	pager pagerModel
}

func newModel(cfg Config, runner Runner) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}

	common := &commonModel{
		cfg:      cfg,
		runner:   runner,
		rendered: cache.NewMemoryCache(max(cfg.RenderCacheSize, 1<<20)),
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "command query, e.g. work ~bug @jane"
	ti.SetValue(cfg.Query)
	ti.CursorEnd()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return model{
		common:  common,
		state:   stateShowList,
		input:   ti,
		spinner: sp,
		loading: true,
		pager:   newPagerModel(common),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		runQuery(m.common.runner, m.input.Value()),
		refreshTick(m.common.cfg.RefreshInterval),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Ctrl+C always quits no matter where in the application you are.
		case "ctrl+c":
			m.logRenderStats()
			return m, tea.Quit
		case "ctrl+z":
			return m, tea.Suspend
		}

		if m.state == stateShowDetail {
			switch msg.String() {
			case "esc", "q", "h", "left":
				m.state = stateShowList
				m.pager.unload()
				return m, nil
			}
			var cmd tea.Cmd
			m.pager, cmd = m.pager.update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "esc":
			if m.input.Value() == "" {
				m.logRenderStats()
				return m, tea.Quit
			}
			return m.setQuery("")

		case "up", "ctrl+p", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n", "ctrl+j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil

		case "enter":
			item, ok := m.selected()
			if !ok {
				return m, nil
			}
			if item.Autocomplete != "" {
				return m.setQuery(item.Autocomplete)
			}
			cmd := m.copyURL(item)
			return m, cmd

		case "tab":
			item, ok := m.selected()
			if !ok {
				return m, nil
			}
			if item.Autocomplete != "" {
				return m.setQuery(item.Autocomplete)
			}
			m.state = stateShowDetail
			cmd := m.pager.load(item)
			return m, cmd
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.input.Value() != before {
			m.cursor = 0
			m.loading = true
			m.inflight = true
			cmds = append(cmds, runQuery(m.common.runner, m.input.Value()))
		}
		return m, tea.Batch(cmds...)

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.input.Width = max(0, msg.Width-lipgloss.Width(logoView())-4)
		m.pager.setSize(msg.Width, msg.Height)

	case resultsMsg:
		if msg.query != m.input.Value() {
			// Answer to a query that has since been edited.
			return m, nil
		}
		m.inflight = false
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			log.Debug("query failed", "query", msg.query, "error", msg.err)
			return m, nil
		}
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case refreshTickMsg:
		cmds = append(cmds, refreshTick(m.common.cfg.RefreshInterval))
		if !m.inflight {
			m.inflight = true
			cmds = append(cmds, runQuery(m.common.runner, m.input.Value()))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMessageTimeoutMsg:
		if applicationContext(msg) == listContext {
			m.statusMessage = ""
		} else {
			m.pager.clearStatusMessage()
		}
		return m, nil

	case contentRenderedMsg:
		var cmd tea.Cmd
		m.pager, cmd = m.pager.update(msg)
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	if m.state == stateShowDetail {
		var cmd tea.Cmd
		m.pager, cmd = m.pager.update(msg)
		cmds = append(cmds, cmd)
	} else {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) setQuery(q string) (tea.Model, tea.Cmd) {
	m.input.SetValue(q)
	m.input.CursorEnd()
	m.cursor = 0
	m.loading = true
	m.inflight = true
	return m, runQuery(m.common.runner, q)
}

func (m model) selected() (alfred.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return alfred.Item{}, false
	}
	return m.items[m.cursor], true
}

func (m *model) copyURL(item alfred.Item) tea.Cmd {
	u := item.URL()
	if u == "" {
		return nil
	}
	msg := "Copied " + u
	if err := writeClipboard(u); err != nil {
		log.Error("unable to copy to clipboard", "error", err)
		msg = "Unable to copy: " + err.Error()
	}
	return m.showStatusMessage(msg)
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(listContext, m.statusMessageTimer)
}

func (m model) logRenderStats() {
	r := m.common.rendered
	log.Debug("render memo", "entries", r.Len(), "bytes", r.Size(), "hit_rate", r.HitRate())
}

func (m model) View() string {
	if m.state == stateShowDetail {
		return m.pager.View()
	}

	var b strings.Builder

	// Header
	header := logoView() + " " + m.input.View()
	if m.loading {
		header += " " + m.spinner.View()
	}
	fmt.Fprintf(&b, "%s\n\n", header)

	// Results
	switch {
	case m.err != nil:
		fmt.Fprintf(&b, "%s %s\n", errorTitleStyle("ERROR"), m.err)
	case len(m.items) == 0 && !m.loading:
		b.WriteString(subtleStyle("No results.") + "\n")
	default:
		m.itemsView(&b)
	}

	// Footer
	lines := strings.Count(b.String(), "\n")
	if gap := m.common.height - lines - statusBarHeight; gap > 0 {
		b.WriteString(strings.Repeat("\n", gap))
	}
	b.WriteString(m.statusBarView())
	return b.String()
}

func (m model) itemsView(b *strings.Builder) {
	width := max(0, m.common.width-4)
	perPage := max(1, (m.common.height-headerHeight-statusBarHeight-1)/itemHeight)
	start := (m.cursor / perPage) * perPage
	end := min(len(m.items), start+perPage)

	for i := start; i < end; i++ {
		item := m.items[i]
		title := truncate.StringWithTail(item.Title, uint(width), ellipsis)       //nolint:gosec
		subtitle := truncate.StringWithTail(item.Subtitle, uint(width), ellipsis) //nolint:gosec
		if i == m.cursor {
			fmt.Fprintf(b, "%s %s\n  %s\n\n", selectedTitleStyle("│"), selectedTitleStyle(title), selectedSubtitleStyle(subtitle))
		} else {
			fmt.Fprintf(b, "  %s\n  %s\n\n", title, subtitleStyle(subtitle))
		}
	}

	if pages := (len(m.items) + perPage - 1) / perPage; pages > 1 {
		b.WriteString(paginationStyle(fmt.Sprintf("  %d/%d", start/perPage+1, pages)) + "\n")
	}
}

func (m model) statusBarView() string {
	help := statusBarHelpStyle(" enter copy • tab details • esc clear ")
	note := fmt.Sprintf(" %d results ", len(m.items))
	style := statusBarNoteStyle
	if m.statusMessage != "" {
		note = " " + m.statusMessage + " "
		style = statusBarMessageStyle
		help = statusBarMessageHelpStyle(" enter copy • tab details • esc clear ")
	}
	note = truncate.StringWithTail(note, uint(max(0, m.common.width-lipgloss.Width(help))), ellipsis) //nolint:gosec
	padding := max(0, m.common.width-lipgloss.Width(note)-lipgloss.Width(help))
	return style(note+strings.Repeat(" ", padding)) + help
}

// COMMANDS

func runQuery(r Runner, query string) tea.Cmd {
	return func() tea.Msg {
		items, err := r.Run(context.Background(), query)
		return resultsMsg{query: query, items: items, err: err}
	}
}

func refreshTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func waitForStatusMessageTimeout(appCtx applicationContext, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg(appCtx)
	}
}
