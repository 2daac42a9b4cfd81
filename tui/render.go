package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/nachoal/gemini-chat-go/tui/styles"
)

const modelMessageWrapWidth = 74

// newMarkdownRenderer builds the renderer for finished model text
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width <= 0 || width > modelMessageWrapWidth {
		width = modelMessageWrapWidth
	}
	renderer, err := glamour.NewTermRenderer(
		// Non-colored output keeps model text readable on any terminal theme.
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return renderer
}

func renderUserMessage(st *styles.Styles, content string) string {
	return fmt.Sprintf("%s %s", st.RenderRole("user"), st.UserText.Render(content))
}

func renderModelText(renderer *glamour.TermRenderer, content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if renderer != nil {
		if rendered, err := renderer.Render(content); err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return wordwrap.String(content, modelMessageWrapWidth)
}

func renderModelMessage(st *styles.Styles, renderer *glamour.TermRenderer, content string) string {
	return fmt.Sprintf("%s\n%s", st.RenderRole("model"), renderModelText(renderer, content))
}

func renderImageLine(st *styles.Styles, path string) string {
	return st.ImageLine.Render(fmt.Sprintf("[Image generated: %s]", path))
}

func renderCommandMessage(st *styles.Styles, content string) string {
	return st.Command.Render(content)
}

func renderErrorMessage(st *styles.Styles, content string) string {
	return st.Error.Render(fmt.Sprintf("❌ %s", content))
}

func printAboveLine(content string) tea.Cmd {
	return tea.Printf("%s\n", content)
}

func printAboveBlock(content string) tea.Cmd {
	return tea.Printf("%s\n\n", content)
}

// wrapLive hard-wraps streaming text so no line exceeds width
func wrapLive(content string, width int) string {
	if width < 1 {
		width = 1
	}
	return wrap.String(wordwrap.String(content, width), width)
}

func truncateToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
