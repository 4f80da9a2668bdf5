// Package printer renders result items for a terminal.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

const ellipsis = "…"

// Printer writes items as a plain list:
//
//	1  Upgrade database
//	   5 minutes ago, assigned to Jane Doe
//	   https://gitlab.com/group/work/-/issues/3
type Printer struct {
	w     io.Writer
	width int
	links bool

	index    lipgloss.Style
	title    lipgloss.Style
	subtitle lipgloss.Style
	url      lipgloss.Style
}

// New returns a Printer for w. Lines are truncated to width cells; zero
// disables truncation. Colors and hyperlinks are used only when w is a
// terminal that supports them.
func New(w io.Writer, width int) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		width:    width,
		links:    r.ColorProfile() != termenv.Ascii,
		index:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}),
		title:    r.NewStyle().Bold(true),
		subtitle: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}),
		url:      r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#04B575"}),
	}
}

// Print writes items, or a note when there are none.
func (p *Printer) Print(items []alfred.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(p.w, p.subtitle.Render("No results."))
		return err
	}

	numWidth := runewidth.StringWidth(fmt.Sprint(len(items)))
	pad := strings.Repeat(" ", numWidth+2)

	var b strings.Builder
	for i, item := range items {
		num := fmt.Sprintf("%*d", numWidth, i+1)
		b.WriteString(p.line(p.index.Render(num) + "  " + p.title.Render(item.Title)))
		if item.Subtitle != "" {
			b.WriteString(p.line(pad + p.subtitle.Render(item.Subtitle)))
		}
		if u := item.URL(); u != "" {
			b.WriteString(p.line(pad + p.link(u)))
		}
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// PrintError writes err the way items are written.
func (p *Printer) PrintError(err error) error {
	_, werr := io.WriteString(p.w, p.line(p.title.Render("Error: ")+err.Error()))
	return werr
}

func (p *Printer) link(u string) string {
	s := p.url.Render(u)
	if p.links {
		return termenv.Hyperlink(u, s)
	}
	return s
}

func (p *Printer) line(s string) string {
	if p.width > 0 {
		s = truncate.StringWithTail(s, uint(p.width), ellipsis) //nolint:gosec
	}
	return s + "\n"
}
