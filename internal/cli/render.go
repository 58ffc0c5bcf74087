// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// ANSWER RENDERING
// =============================================================================

// Renderer formats answers, citations and listings for one output stream.
// Markdown is only rendered when enabled and the renderer could be built;
// otherwise answers are printed as the raw text.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
	color bool
}

// NewRenderer builds a Renderer for w.
func NewRenderer(w io.Writer, markdown, color bool) *Renderer {
	r := &Renderer{width: renderWidth(w), color: color}
	if !markdown {
		return r
	}
	style := glamour.WithAutoStyle()
	if !color {
		style = glamour.WithStandardStyle("notty")
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(r.width))
	if err == nil {
		r.md = md
	}
	return r
}

// Markdown reports whether answers are rendered after streaming instead of
// printed as they arrive.
func (r *Renderer) Markdown() bool {
	return r.md != nil
}

// Answer renders a finished answer.
func (r *Renderer) Answer(content string) string {
	if r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return out
}

// Citations renders the retrieved chunks backing an answer, one line each.
func (r *Renderer) Citations(cs []model.Citation) string {
	if len(cs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(SourceStyle.Render("Sources") + "\n")
	titleWidth := 28
	for i, c := range cs {
		title := c.DocumentTitle
		if title == "" {
			title = c.DocumentID
		}
		head := fmt.Sprintf("[%d] %s %3d%%", i+1,
			util.PadRight(util.TruncateWidth(title, titleWidth), titleWidth),
			c.ScorePercent())
		excerptWidth := r.width - util.StringWidth(head) - 2
		line := head
		if excerptWidth > 10 && c.ChunkContent != "" {
			line += "  " + DimStyle.Render(util.Preview(c.ChunkContent, excerptWidth))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// Documents renders a document table.
func (r *Renderer) Documents(docs []model.Document) string {
	if len(docs) == 0 {
		return DimStyle.Render("No documents uploaded.") + "\n"
	}
	var b strings.Builder
	idWidth := 0
	for _, d := range docs {
		if w := util.StringWidth(d.ID); w > idWidth {
			idWidth = w
		}
	}
	titleWidth := r.width - idWidth - 24
	if titleWidth < 16 {
		titleWidth = 16
	}
	for _, d := range docs {
		created := ""
		if !d.CreatedAt.IsZero() {
			created = d.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "%s  %s  %s\n",
			DimStyle.Render(util.PadRight(d.ID, idWidth)),
			util.PadRight(util.TruncateWidth(d.Title, titleWidth), titleWidth),
			DimStyle.Render(created))
	}
	fmt.Fprintf(&b, "%s\n", DimStyle.Render(fmt.Sprintf("%d document(s)", len(docs))))
	return b.String()
}

// Presentations renders a list of generated decks.
func (r *Renderer) Presentations(ps []model.Presentation) string {
	if len(ps) == 0 {
		return DimStyle.Render("No presentations.") + "\n"
	}
	var b strings.Builder
	for _, p := range ps {
		title := p.Title
		if title == "" {
			title = p.Topic
		}
		fmt.Fprintf(&b, "%s  %s\n", DimStyle.Render(p.ID), util.TruncateWidth(title, r.width-len(p.ID)-2))
	}
	return b.String()
}

// =============================================================================
// STREAMING OUTPUT
// =============================================================================

// streamPrinter writes the growing answer text as it arrives. Snapshots
// carry the whole answer so far; only the unseen suffix is written.
type streamPrinter struct {
	w       io.Writer
	printed string
}

func (p *streamPrinter) update(content string) {
	if strings.HasPrefix(content, p.printed) {
		io.WriteString(p.w, content[len(p.printed):])
	} else {
		io.WriteString(p.w, "\n"+content)
	}
	p.printed = content
}
