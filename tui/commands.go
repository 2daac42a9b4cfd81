package tui

import (
	"fmt"
	"strings"
)

type commandEntry struct {
	name string
	desc string
}

var chatCommands = []commandEntry{
	{name: "/help", desc: "Show this help"},
	{name: "/model", desc: "Show or switch the model"},
	{name: "/status", desc: "Show model, image directory and transcript size"},
	{name: "/trace", desc: "Show current trace log path"},
	{name: "/clear", desc: "Clear the screen"},
	{name: "/exit", desc: "Exit application"},
}

// commandResult is the outcome of a slash command
type commandResult struct {
	content string
	isError bool
	isQuit  bool
	isClear bool
}

func (m *ChatTUI) handleCommand(input string) commandResult {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return commandResult{}
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/exit", "/quit":
		return commandResult{isQuit: true}

	case "/clear":
		return commandResult{
			content: "Screen cleared. The conversation context is kept.",
			isClear: true,
		}

	case "/help":
		var b strings.Builder
		b.WriteString("Commands:\n")
		for _, c := range m.commands {
			b.WriteString(fmt.Sprintf("  %-8s - %s\n", c.name, c.desc))
		}
		b.WriteString("\nKeyboard shortcuts:\n")
		for _, binding := range m.keys.ShortHelp() {
			help := binding.Help()
			b.WriteString(fmt.Sprintf("  %-8s - %s\n", help.Key, help.Desc))
		}
		b.WriteString("\nAsk for a drawing, picture or photo and images are saved under " + m.imageDir)
		return commandResult{content: b.String()}

	case "/model":
		if len(args) == 0 {
			return commandResult{content: fmt.Sprintf("Current model: %s\nUsage: /model <name>", m.model)}
		}
		return m.switchModel(args[0])

	case "/status":
		id, turns := "", 0
		if m.session != nil {
			id, turns = m.session.ID(), m.session.Turns()
		}
		status := fmt.Sprintf("Current configuration:\n  Session: %s\n  Model: %s\n  Images: %s\n  Turns: %d", id, m.model, m.imageDir, turns)
		if m.tracePath != "" {
			status = fmt.Sprintf("%s\n  Trace: %s", status, m.tracePath)
		}
		return commandResult{content: status}

	case "/trace":
		if m.tracePath == "" {
			return commandResult{content: "Tracing is off. Start with --verbose to write a trace log."}
		}
		return commandResult{content: "Trace log: " + m.tracePath}

	default:
		return commandResult{content: fmt.Sprintf("Unknown command: %s (try /help)", name), isError: true}
	}
}

// switchModel applies model to the session and persists it as the default
func (m *ChatTUI) switchModel(model string) commandResult {
	if m.session != nil {
		m.session.SetModel(model)
	}
	m.model = model
	m.log.Info().Str("model", model).Msg("model switch")

	if m.config != nil {
		if err := m.config.SetDefaultModel(model); err != nil {
			return commandResult{
				content: fmt.Sprintf("Switched to %s, but failed to save config: %v", model, err),
				isError: true,
			}
		}
	}
	return commandResult{content: "Switched to " + model}
}

// updateSuggestions updates the slash-command suggestions based on current input
func (m *ChatTUI) updateSuggestions() {
	cur := strings.TrimSpace(m.textarea.Value())
	if !strings.HasPrefix(cur, "/") || strings.ContainsAny(cur, " \t\n") {
		m.hideSuggestions()
		return
	}
	lower := strings.ToLower(cur)
	var list []commandEntry
	for _, c := range m.commands {
		if cur == "/" || strings.HasPrefix(c.name, lower) {
			list = append(list, c)
		}
	}
	m.suggestItems = list
	m.suggestVisible = len(list) > 0
	if m.suggestIndex >= len(list) {
		m.suggestIndex = 0
	}
}

func (m *ChatTUI) hideSuggestions() {
	m.suggestVisible = false
	m.suggestItems = nil
	m.suggestIndex = 0
}
