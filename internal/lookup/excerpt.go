package lookup

import (
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const maxExcerptWidth = 600

var markdown = goldmark.New()

// Excerpt renders the text content of a markdown document, one line per
// block, without markup or code blocks, truncated to a few hundred cells.
func Excerpt(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var (
		lines []string
		line  strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				line.Write(n.Segment.Value(source))
				if n.SoftLineBreak() || n.HardLineBreak() {
					line.WriteByte(' ')
				}
			}
		case *ast.AutoLink:
			if entering {
				line.Write(n.URL(source))
			}
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()

	return truncate.StringWithTail(strings.Join(lines, "\n"), maxExcerptWidth, "…")
}
