package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nachoal/gemini-chat-go/agent"
	"github.com/nachoal/gemini-chat-go/tui/styles"
)

const (
	statusReady    = "Ready"
	statusThinking = "Gemini is thinking…"
	statusImage    = "Generating image…"
	statusError    = "Error occurred"
)

// ChatSession is the conversation driven by the chat screen
type ChatSession interface {
	SendAsync(ctx context.Context, text string) <-chan agent.Event
	ID() string
	Model() string
	SetModel(model string)
	Greeting() string
	Turns() int
}

// ModelSaver persists the default model
type ModelSaver interface {
	SetDefaultModel(model string) error
}

// Options configures the chat screen
type Options struct {
	ImageDir  string
	Theme     string
	TracePath string
	Config    ModelSaver
	Logger    zerolog.Logger
}

// ChatTUI is an inline chat screen. Finished output is printed above the
// live region so it stays in the terminal scrollback.
type ChatTUI struct {
	session  ChatSession
	config   ModelSaver
	styles   *styles.Styles
	renderer *glamour.TermRenderer
	textarea textarea.Model
	spinner  spinner.Model
	keys     KeyMap
	log      zerolog.Logger

	model     string
	imageDir  string
	tracePath string

	width       int
	height      int
	initialized bool

	// Active turn
	isThinking  bool
	status      string
	events      <-chan agent.Event
	runCancel   context.CancelFunc
	runSeq      int
	runID       string
	live        string
	labelShown  bool
	imagesInRun int
	failed      bool

	// Slash command autocomplete
	suggestVisible bool
	suggestItems   []commandEntry
	suggestIndex   int
	commands       []commandEntry
}

type chatEventMsg struct {
	event agent.Event
}

type chatDoneMsg struct{}

// NewChatTUI creates the chat screen for session
func NewChatTUI(session ChatSession, opts Options) *ChatTUI {
	ta := textarea.New()
	ta.Placeholder = ""
	ta.ShowLineNumbers = false
	ta.Prompt = "" // The prompt is drawn inside the border
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.Focus()

	transparentStyle := lipgloss.NewStyle().
		UnsetBackground().
		UnsetBorderBackground().
		UnsetBorderStyle()

	ta.FocusedStyle.Base = transparentStyle
	ta.FocusedStyle.Text = transparentStyle
	ta.FocusedStyle.Placeholder = transparentStyle
	ta.FocusedStyle.Prompt = transparentStyle
	ta.FocusedStyle.CursorLine = transparentStyle

	ta.BlurredStyle.Base = transparentStyle
	ta.BlurredStyle.Text = transparentStyle
	ta.BlurredStyle.Placeholder = transparentStyle
	ta.BlurredStyle.Prompt = transparentStyle
	ta.BlurredStyle.CursorLine = transparentStyle

	// Enter sends the message
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.SetWidth(74)

	st := styles.NewStyles(styles.GetTheme(opts.Theme))

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = st.Spinner

	model := ""
	if session != nil {
		model = session.Model()
	}

	return &ChatTUI{
		session:   session,
		config:    opts.Config,
		styles:    st,
		renderer:  newMarkdownRenderer(modelMessageWrapWidth),
		textarea:  ta,
		spinner:   s,
		keys:      DefaultKeyMap(),
		log:       opts.Logger,
		model:     model,
		imageDir:  opts.ImageDir,
		tracePath: opts.TracePath,
		width:     80,
		status:    statusReady,
		commands:  chatCommands,
	}
}

// Run starts the chat program and blocks until it exits
func Run(ctx context.Context, m *ChatTUI) error {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func (m ChatTUI) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.session != nil {
		if greeting := m.session.Greeting(); greeting != "" {
			cmds = append(cmds, printAboveBlock(renderModelMessage(m.styles, m.renderer, greeting)))
		}
	}
	return tea.Batch(cmds...)
}

func (m ChatTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.isThinking {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// border (2) + padding (2) + prompt (2)
		textareaWidth := m.width - 6
		if textareaWidth < 1 {
			textareaWidth = 1
		}
		m.textarea.SetWidth(textareaWidth)
		m.renderer = newMarkdownRenderer(m.width - 2)
		m.adjustTextareaHeight()

		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if msg.Type == tea.KeyEsc && m.suggestVisible {
				m.hideSuggestions()
				return m, nil
			}
			m.stopRun()
			m.log.Info().Str("key", msg.String()).Msg("app quit")
			return m, tea.Quit

		case key.Matches(msg, m.keys.Clear):
			return m, tea.ClearScreen

		case key.Matches(msg, m.keys.Prev):
			if m.suggestVisible && len(m.suggestItems) > 0 {
				if m.suggestIndex > 0 {
					m.suggestIndex--
				} else {
					m.suggestIndex = len(m.suggestItems) - 1
				}
				return m, nil
			}

		case key.Matches(msg, m.keys.Next):
			if m.suggestVisible && len(m.suggestItems) > 0 {
				m.suggestIndex = (m.suggestIndex + 1) % len(m.suggestItems)
				return m, nil
			}

		case key.Matches(msg, m.keys.Complete):
			if m.suggestVisible && len(m.suggestItems) > 0 {
				m.textarea.SetValue(m.suggestItems[m.suggestIndex].name + " ")
				m.hideSuggestions()
				m.adjustTextareaHeight()
				return m, nil
			}

		case key.Matches(msg, m.keys.Send):
			if m.isThinking {
				return m, tea.Batch(cmds...)
			}
			trimmed := strings.TrimSpace(m.textarea.Value())
			if trimmed == "" {
				return m, nil
			}
			if m.suggestVisible && len(m.suggestItems) > 0 {
				trimmed = m.suggestItems[m.suggestIndex].name
			}
			m.resetInput()

			if strings.HasPrefix(trimmed, "/") {
				return m, m.runCommand(trimmed)
			}
			return m, m.startTurn(trimmed)
		}

		// Input stays disabled while a turn is in flight
		if m.isThinking {
			return m, tea.Batch(cmds...)
		}

	case chatEventMsg:
		prints := m.handleEvent(msg.event)
		prints = append(prints, listenForEvents(m.events))
		cmds = append(cmds, tea.Sequence(prints...))
		return m, tea.Batch(cmds...)

	case chatDoneMsg:
		m.finishRun()
		return m, textarea.Blink
	}

	if m.isThinking {
		return m, tea.Batch(cmds...)
	}

	oldValue := m.textarea.Value()
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	if oldValue != m.textarea.Value() {
		m.adjustTextareaHeight()
		m.updateSuggestions()
	}

	return m, tea.Batch(cmds...)
}

func (m ChatTUI) View() string {
	var b strings.Builder

	// Keep live lines strictly within terminal width; wrapped live lines can
	// break Bubble Tea's redraw bookkeeping when resizing.
	boxWidth := m.width - 2
	if boxWidth < 1 {
		boxWidth = 1
	}

	if m.live != "" {
		b.WriteString(wrapLive(m.live, boxWidth))
		b.WriteString("\n\n")
	}

	if m.isThinking {
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), truncateToWidth(m.status, boxWidth-3)))
	} else {
		// Extra spacing for multi-line input keeps the border clear of printed output
		if extraLines := m.textarea.Height(); extraLines > 1 {
			b.WriteString(strings.Repeat("\n", extraLines))
		}
		b.WriteString("\n")
	}

	statusParts := []string{
		fmt.Sprintf("Model: %s", m.model),
		fmt.Sprintf("Images: %s", m.imageDir),
		m.status,
	}
	statusLine := truncateToWidth(strings.Join(statusParts, " | "), boxWidth-1)
	switch {
	case m.status == statusError:
		b.WriteString(m.styles.StatusErr.Render(statusLine))
	case m.isThinking:
		b.WriteString(m.styles.StatusBusy.Render(statusLine))
	default:
		b.WriteString(m.styles.StatusBar.Render(statusLine))
	}
	b.WriteString("\n")

	input := m.styles.Input.
		Width(boxWidth).
		PaddingLeft(1).
		PaddingRight(1).
		Render("> " + m.textarea.View())
	b.WriteString(input)
	b.WriteString("\n")

	if m.suggestVisible && len(m.suggestItems) > 0 {
		for i, item := range m.suggestItems {
			desc := truncateToWidth(item.desc, boxWidth-len(item.name)-3)
			line := fmt.Sprintf(" %s  %s", m.styles.SuggestName.Render(item.name), m.styles.SuggestDesc.Render(desc))
			if i == m.suggestIndex {
				line = m.styles.SuggestSelected.Render(fmt.Sprintf(" %s  %s", item.name, desc))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// startTurn hands text to the session and begins draining its events
func (m *ChatTUI) startTurn(text string) tea.Cmd {
	m.runSeq++
	m.runID = "run-" + strconv.Itoa(m.runSeq)
	ctx, cancel := context.WithCancel(context.Background())
	m.runCancel = cancel

	m.isThinking = true
	m.failed = false
	m.live = ""
	m.labelShown = false
	m.imagesInRun = 0
	m.status = statusFor(text)
	m.textarea.Blur()

	m.log.Debug().Str("run_id", m.runID).Int("prompt_len", len(text)).Msg("run start")
	m.events = m.session.SendAsync(ctx, text)

	return tea.Batch(
		m.spinner.Tick,
		tea.Sequence(printAboveBlock(renderUserMessage(m.styles, text)), listenForEvents(m.events)),
	)
}

// handleEvent applies one display event and returns the print commands it
// produces, in order.
func (m *ChatTUI) handleEvent(ev agent.Event) []tea.Cmd {
	switch ev.Type {
	case agent.EventTextDelta:
		m.live += ev.Text
		return nil

	case agent.EventImageSaved:
		m.imagesInRun++
		m.log.Debug().Str("run_id", m.runID).Str("path", ev.Path).Msg("image saved")
		cmds := m.flushLive()
		return append(cmds, printAboveLine(renderImageLine(m.styles, ev.Path)))

	case agent.EventTurnComplete:
		cmds := m.flushLive()
		if ev.Text == "" && m.imagesInRun == 0 {
			cmds = append(cmds, printAboveLine(renderCommandMessage(m.styles, "(empty response)")))
		}
		m.status = statusReady
		return append(cmds, printAboveLine(""))

	case agent.EventError:
		var cmds []tea.Cmd
		if m.live != "" || m.labelShown {
			cmds = m.flushLive()
		}
		m.failed = true
		m.status = statusError
		m.log.Error().Str("run_id", m.runID).Err(ev.Err).Msg("run failed")
		return append(cmds, printAboveBlock(renderErrorMessage(m.styles, fmt.Sprintf("Error: %v", ev.Err))))
	}
	return nil
}

// flushLive moves buffered text into the scrollback as rendered markdown
func (m *ChatTUI) flushLive() []tea.Cmd {
	var cmds []tea.Cmd
	if !m.labelShown {
		cmds = append(cmds, printAboveLine(m.styles.RenderRole("model")))
		m.labelShown = true
	}
	if text := renderModelText(m.renderer, m.live); text != "" {
		cmds = append(cmds, printAboveLine(text))
	}
	m.live = ""
	return cmds
}

func (m *ChatTUI) finishRun() {
	m.stopRun()
	m.isThinking = false
	m.events = nil
	m.live = ""
	if !m.failed {
		m.status = statusReady
	}
	m.log.Debug().Str("run_id", m.runID).Bool("failed", m.failed).Msg("run end")
	m.runID = ""
	m.textarea.Focus()
}

func (m *ChatTUI) stopRun() {
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
}

// runCommand executes a slash command and prints its output
func (m *ChatTUI) runCommand(input string) tea.Cmd {
	res := m.handleCommand(input)
	m.textarea.Focus()

	if res.isQuit {
		m.log.Info().Str("command", input).Msg("app quit")
		return tea.Quit
	}

	var out tea.Cmd
	if res.content != "" {
		if res.isError {
			out = printAboveBlock(renderErrorMessage(m.styles, res.content))
		} else {
			out = printAboveBlock(renderCommandMessage(m.styles, res.content))
		}
	}
	if res.isClear {
		return tea.Sequence(tea.ClearScreen, out)
	}
	return out
}

func (m *ChatTUI) resetInput() {
	m.textarea.Reset()
	m.textarea.SetHeight(1)
	m.hideSuggestions()
}

// adjustTextareaHeight sizes the textarea to its wrapped content
func (m *ChatTUI) adjustTextareaHeight() {
	content := m.textarea.Value()
	if content == "" {
		m.textarea.SetHeight(1)
		return
	}

	lines := 1
	currentLineLength := 0
	textareaWidth := m.width - 8 // borders, padding and prompt
	if textareaWidth < 1 {
		textareaWidth = 1
	}

	for _, char := range content {
		if char == '\n' {
			lines++
			currentLineLength = 0
		} else {
			currentLineLength++
			if currentLineLength >= textareaWidth {
				lines++
				currentLineLength = 0
			}
		}
	}

	maxHeight := 10
	if lines > maxHeight {
		lines = maxHeight
	}

	m.textarea.SetHeight(lines)
}

// listenForEvents waits for the next event of the active turn
func listenForEvents(events <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		ev, ok := <-events
		if !ok {
			return chatDoneMsg{}
		}
		return chatEventMsg{event: ev}
	}
}

func statusFor(text string) string {
	if agent.LooksLikeImageRequest(text) {
		return statusImage
	}
	return statusThinking
}
