// Package ui is the terminal front end of a session: a bubbletea model that
// renders the transcript and drives the controller from key presses.
package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rupeshbug/sec-policy-lens/pkg/session"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

const (
	appTitle = "SEC Climate Disclosure Q&A"
	helpText = "enter ask • ↑/↓ examples • ctrl+v pick version • ctrl+t next version • ctrl+y copy answer • pgup/pgdn scroll • esc quit"

	// header, status line, input box (3) and help line
	chromeHeight = 6
)

// Session is the part of *session.Controller the model drives.
type Session interface {
	Snapshot() session.State
	Examples() []string
	Submit(ctx context.Context, text string) error
	SelectExample(ctx context.Context, index int) error
	SetVersionFilter(v versions.Version) error
	SetDraft(text string)
}

type submitDoneMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

type Model struct {
	ctx     context.Context
	session Session
	state   session.State

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *Renderer

	glamourStyle string
	copy         func(string) error

	examples []string
	selected int

	picker      *huh.Form
	pickerValue *versions.Version

	// sending covers the gap between enter and the controller marking the
	// query as pending.
	sending bool
	status  string

	width  int
	height int
	ready  bool
}

type ModelOption func(*Model)

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// WithGlamourStyle selects the markdown style for answers; see NewRenderer.
func WithGlamourStyle(style string) ModelOption {
	return func(m *Model) {
		m.glamourStyle = style
	}
}

func WithClipboard(copyFn func(string) error) ModelOption {
	return func(m *Model) {
		if copyFn != nil {
			m.copy = copyFn
		}
	}
}

func NewModel(s Session, opts ...ModelOption) Model {
	input := textinput.New()
	input.Placeholder = "Ask a question about the SEC climate disclosure rules…"
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	m := Model{
		ctx:          context.Background(),
		session:      s,
		input:        input,
		viewport:     viewport.New(80, 20),
		spinner:      sp,
		renderer:     &Renderer{width: 80},
		glamourStyle: "auto",
		copy:         clipboard.WriteAll,
		examples:     s.Examples(),
		selected:     -1,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.state = s.Snapshot()
	m.input.SetValue(m.state.Draft)
	m.refreshContent()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			m.closePicker()
			return m, nil
		}
		if _, ok := msg.(tea.KeyMsg); ok {
			return m.updatePicker(msg)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case SessionChangedMsg:
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.sending = false
		switch {
		case errors.Is(msg.err, session.ErrQueryPending):
			m.status = "Still waiting for the previous answer"
		case msg.err != nil:
			log.Warn().Err(msg.err).Msg("could not submit question")
			m.status = msg.err.Error()
		default:
			m.status = ""
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Answer copied to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.picker != nil {
		return m.updatePicker(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "up":
		if m.state.ShowExamples() && len(m.examples) > 0 {
			if m.selected <= 0 {
				m.selected = len(m.examples) - 1
			} else {
				m.selected--
			}
			m.refreshContent()
		}
		return m, nil

	case "down":
		if m.state.ShowExamples() && len(m.examples) > 0 {
			m.selected = (m.selected + 1) % len(m.examples)
			m.refreshContent()
		}
		return m, nil

	case "ctrl+v":
		return m.openPicker()

	case "ctrl+t":
		if err := m.session.SetVersionFilter(m.state.VersionFilter.Next()); err != nil {
			m.status = err.Error()
		}
		m.refresh()
		return m, nil

	case "ctrl+y":
		last, ok := m.state.LastAssistant()
		if !ok {
			m.status = "Nothing to copy yet"
			return m, nil
		}
		copyFn := m.copy
		content := last.Content
		return m, func() tea.Msg {
			return copiedMsg{err: copyFn(content)}
		}

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.session.SetDraft(v)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sending || m.state.Pending {
		m.status = "Sending..."
		return m, nil
	}

	ctx, s := m.ctx, m.session
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		if !m.state.ShowExamples() || m.selected < 0 {
			return m, nil
		}
		index := m.selected
		m.sending = true
		m.status = ""
		return m, func() tea.Msg {
			return submitDoneMsg{err: s.SelectExample(ctx, index)}
		}
	}

	m.input.Reset()
	m.sending = true
	m.status = ""
	return m, func() tea.Msg {
		return submitDoneMsg{err: s.Submit(ctx, text)}
	}
}

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	current := m.state.VersionFilter
	m.pickerValue = &current

	options := make([]huh.Option[versions.Version], 0, len(versions.All()))
	for _, v := range versions.All() {
		options = append(options, huh.NewOption(v.Label(), v))
	}
	m.picker = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[versions.Version]().
				Title("Regulation version").
				Options(options...).
				Value(m.pickerValue),
		),
	).WithShowHelp(false).WithTheme(huh.ThemeCharm())
	m.input.Blur()
	return m, m.picker.Init()
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.picker.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.picker = f
	}
	switch m.picker.State {
	case huh.StateCompleted:
		if err := m.session.SetVersionFilter(*m.pickerValue); err != nil {
			m.status = err.Error()
		}
		m.closePicker()
		m.refresh()
		return m, nil
	case huh.StateAborted:
		m.closePicker()
		return m, nil
	}
	return m, cmd
}

func (m *Model) closePicker() {
	m.picker = nil
	m.pickerValue = nil
	m.input.Focus()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(10, width-8)
	m.viewport.Width = width
	m.viewport.Height = max(3, height-chromeHeight)

	r, err := NewRenderer(max(20, width-4), m.glamourStyle)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to plain answers")
		r = &Renderer{width: width}
	}
	m.renderer = r
	m.ready = true
	m.refreshContent()
	m.viewport.GotoBottom()
}

// refresh re-reads the session and scrolls to the newest turn.
func (m *Model) refresh() {
	m.state = m.session.Snapshot()
	if !m.state.ShowExamples() {
		m.selected = -1
	}
	m.refreshContent()
	m.viewport.GotoBottom()
}

func (m *Model) refreshContent() {
	if m.state.ShowExamples() {
		m.viewport.SetContent(Examples(m.examples, m.selected))
		return
	}
	m.viewport.SetContent(m.renderer.Transcript(m.state.Transcript))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(appTitle),
		filterStyle.Render("version: "+m.state.VersionFilter.Label()),
	)

	var statusLine string
	switch {
	case m.state.Thinking():
		statusLine = m.spinner.View() + " " + thinkingStyle.Render(thinkingText)
	case m.sending:
		statusLine = statusStyle.Render("Sending...")
	default:
		statusLine = statusStyle.Render(m.status)
	}

	bottom := inputStyle.Width(max(10, m.width-2)).Render(m.input.View())
	if m.picker != nil {
		bottom = pickerStyle.Render(m.picker.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		statusLine,
		bottom,
		helpStyle.Render(helpText),
	)
}

// State exposes the last snapshot the model rendered.
func (m Model) State() session.State {
	return m.state
}
