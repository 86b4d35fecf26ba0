package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rupeshbug/sec-policy-lens/pkg/session"
)

const (
	userLabel      = "You"
	assistantLabel = "AI"
	sourcesLabel   = "Sources"
	thinkingText   = "Analyzing regulatory context…"
	introText      = "Ask a question about the SEC climate disclosure rules."
)

// FormatCitation renders one line of the sources block.
func FormatCitation(c session.Citation) string {
	return fmt.Sprintf("→ %s (%s) — Section %s", c.Document, c.Version, c.Section)
}

// Renderer turns transcript turns into terminal text. Assistant answers go
// through glamour when a markdown renderer is configured.
type Renderer struct {
	markdown *glamour.TermRenderer
	width    int
}

// NewRenderer builds a renderer wrapping at width. style is a glamour style
// name ("auto", "dark", "light", "notty", ...); "" or "plain" disables
// markdown rendering.
func NewRenderer(width int, style string) (*Renderer, error) {
	r := &Renderer{width: width}
	if style == "" || style == "plain" {
		return r, nil
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create markdown renderer with style %q", style)
	}
	r.markdown = md
	return r, nil
}

func (r *Renderer) Transcript(turns []session.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, r.Turn(t))
	}
	return strings.Join(parts, "\n\n")
}

func (r *Renderer) Turn(t session.Turn) string {
	var sb strings.Builder
	if t.Role == session.RoleUser {
		sb.WriteString(userLabelStyle.Render(userLabel))
		sb.WriteString("\n")
		sb.WriteString(t.Content)
		return sb.String()
	}

	sb.WriteString(assistantLabelStyle.Render(assistantLabel))
	sb.WriteString("\n")
	switch {
	case t.Failed:
		sb.WriteString(failedStyle.Render(t.Content))
	default:
		sb.WriteString(r.markdownOrPlain(t.Content))
	}
	if t.HasCitations() {
		sb.WriteString("\n\n")
		sb.WriteString(sourcesTitleStyle.Render(sourcesLabel))
		for _, c := range t.Citations {
			sb.WriteString("\n")
			sb.WriteString(citationStyle.Render(FormatCitation(c)))
		}
	}
	return sb.String()
}

func (r *Renderer) markdownOrPlain(content string) string {
	if r.markdown == nil {
		return content
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		log.Debug().Err(err).Msg("markdown rendering failed, showing raw answer")
		return content
	}
	return strings.Trim(out, "\n")
}

// Examples renders the example question list with selected highlighted; a
// negative selected highlights nothing.
func Examples(examples []string, selected int) string {
	var sb strings.Builder
	sb.WriteString(introStyle.Render(introText))
	sb.WriteString("\n\n")
	sb.WriteString(examplesTitleStyle.Render("Try an example (↑/↓, enter):"))
	for i, e := range examples {
		sb.WriteString("\n")
		if i == selected {
			sb.WriteString(selectedExampleStyle.Render("› " + e))
		} else {
			sb.WriteString(exampleStyle.Render("  " + e))
		}
	}
	return sb.String()
}
