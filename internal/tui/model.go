// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     tui
// Description: Terminal chat client over one session
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
	"github.com/msto63/personachat/pkg/core/version"
)

// Player plays a clip on the local speakers
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
}

// Archiver stores the transcript before it is cleared
type Archiver interface {
	SaveSession(ctx context.Context, sess *session.Session, personaID string) (string, error)
}

// Config holds the collaborators of the chat client
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Session      *session.Session
	Catalog      *llm.Catalog
	// Player and Archive are optional
	Player  Player
	Archive Archiver
}

// Model is the Bubbletea model of the chat client. The transcript is
// always rendered from the session store.
type Model struct {
	// State
	width         int
	height        int
	ready         bool
	busy          bool
	phase         session.Phase
	showModelList bool
	modelIndex    int
	notice        string
	noticeIsError bool

	// Components
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	// Input history
	inputHistory []string
	historyIndex int // -1 = neue Eingabe
	currentInput string

	orch    *orchestrator.Orchestrator
	sess    *session.Session
	catalog *llm.Catalog
	player  Player
	archive Archiver
	phaseCh chan session.Phase
}

// New creates a new chat client model
func New(cfg Config) Model {
	p := cfg.Orchestrator.Persona()

	ta := textarea.New()
	ta.Placeholder = p.Placeholder
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = llm.NewCatalog(nil, nil, llm.DefaultModel)
	}

	m := Model{
		textarea:     ta,
		spinner:      sp,
		historyIndex: -1,
		orch:         cfg.Orchestrator,
		sess:         cfg.Session,
		catalog:      catalog,
		player:       cfg.Player,
		archive:      cfg.Archive,
		phaseCh:      make(chan session.Phase, 16),
	}

	ch := m.phaseCh
	m.sess.Phase.AddListener(func(from, to session.Phase) {
		select {
		case ch <- to:
		default:
		}
	})
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForPhase())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 7
		viewportHeight := msg.Height - headerHeight - footerHeight
		if viewportHeight < 3 {
			viewportHeight = 3
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = viewportHeight
		}
		m.textarea.SetWidth(msg.Width - 4)
		m.updateViewportContent()

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case phaseMsg:
		m.phase = msg.phase
		cmds = append(cmds, m.waitForPhase())

	case cycleDoneMsg:
		m.busy = false
		m.clearNotice()
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.outcome != nil && msg.outcome.Warning != nil {
			m.setNotice(coreerrors.UserMessage(msg.outcome.Warning))
		}
		// Audio genau einmal abholen
		if clip := m.sess.Store.ConsumePendingAudio(); clip != nil {
			cmds = append(cmds, m.play(*clip))
		}
		m.updateViewportContent()
		m.viewport.GotoBottom()

	case replayMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			cmds = append(cmds, m.play(msg.clip))
		}

	case playedMsg:
		if msg.err != nil {
			m.setNotice("Playback failed: " + msg.err.Error())
		}

	case clearedMsg:
		m.busy = false
		if coreerrors.HasCode(msg.err, orchestrator.CodeBusy) {
			m.setError(msg.err)
		} else if msg.err != nil {
			m.setNotice("Archive failed: " + msg.err.Error())
		} else {
			m.setNotice("Chat history cleared.")
		}
		m.updateViewportContent()
	}

	if !m.showModelList && !m.busy {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showModelList {
		return m.handleModelListKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		if m.busy {
			return m, nil
		}
		input := m.textarea.Value()
		if strings.TrimSpace(input) != "" {
			m.inputHistory = append(m.inputHistory, input)
		}
		m.historyIndex = -1
		m.textarea.Reset()
		m.busy = true
		m.clearNotice()
		return m, tea.Batch(m.spinner.Tick, m.sendText(input))

	case "ctrl+r":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.clearNotice()
		return m, tea.Batch(m.spinner.Tick, m.recordVoice())

	case "ctrl+l":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.clearNotice()
		return m, tea.Batch(m.spinner.Tick, m.clearHistory())

	case "ctrl+o":
		m.showModelList = true
		m.textarea.Blur()
		current := m.sess.Store.Settings().Model
		for i, id := range m.catalog.IDs() {
			if id == current {
				m.modelIndex = i
				break
			}
		}
		return m, nil

	case "ctrl+t":
		st := m.sess.Store.UpdateSettings(func(s *session.Settings) { s.Autoplay = !s.Autoplay })
		m.setNotice(fmt.Sprintf("Autoplay %s", onOff(st.Autoplay)))
		return m, nil

	case "ctrl+v":
		st := m.sess.Store.UpdateSettings(func(s *session.Settings) { s.VoiceMode = !s.VoiceMode })
		m.setNotice(fmt.Sprintf("Voice mode %s", onOff(st.VoiceMode)))
		return m, nil

	case "ctrl+p":
		idx := lastAssistantIndex(m.sess.Store.Transcript())
		if idx < 0 {
			m.setNotice("Nothing to play yet.")
			return m, nil
		}
		return m, m.replay(idx)

	case "up":
		if len(m.inputHistory) > 0 && !strings.Contains(m.textarea.Value(), "\n") {
			if m.historyIndex == -1 {
				m.currentInput = m.textarea.Value()
				m.historyIndex = len(m.inputHistory) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textarea.SetValue(m.inputHistory[m.historyIndex])
			return m, nil
		}

	case "down":
		if m.historyIndex >= 0 {
			if m.historyIndex < len(m.inputHistory)-1 {
				m.historyIndex++
				m.textarea.SetValue(m.inputHistory[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textarea.SetValue(m.currentInput)
			}
			return m, nil
		}
	}

	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleModelListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ids := m.catalog.IDs()
	switch msg.String() {
	case "up", "k":
		if m.modelIndex > 0 {
			m.modelIndex--
		}
	case "down", "j":
		if m.modelIndex < len(ids)-1 {
			m.modelIndex++
		}
	case "enter", " ":
		if m.modelIndex < len(ids) {
			model := ids[m.modelIndex]
			m.sess.Store.UpdateSettings(func(s *session.Settings) { s.Model = model })
			m.setNotice("Model: " + model)
		}
		m.showModelList = false
		m.textarea.Focus()
	case "esc", "ctrl+o":
		m.showModelList = false
		m.textarea.Focus()
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// --- commands ---

func (m Model) sendText(text string) tea.Cmd {
	orch, sess := m.orch, m.sess
	return func() tea.Msg {
		out, err := orch.HandleTextInput(context.Background(), sess, text)
		return cycleDoneMsg{outcome: out, err: err}
	}
}

func (m Model) recordVoice() tea.Cmd {
	orch, sess := m.orch, m.sess
	return func() tea.Msg {
		out, err := orch.HandleVoiceInput(context.Background(), sess)
		return cycleDoneMsg{outcome: out, err: err}
	}
}

func (m Model) replay(index int) tea.Cmd {
	orch, sess := m.orch, m.sess
	return func() tea.Msg {
		clip, err := orch.Replay(context.Background(), sess, index)
		return replayMsg{clip: clip, err: err}
	}
}

func (m Model) play(clip audio.Clip) tea.Cmd {
	if m.player == nil {
		return nil
	}
	player := m.player
	return func() tea.Msg {
		return playedMsg{err: player.Play(context.Background(), clip)}
	}
}

func (m Model) clearHistory() tea.Cmd {
	orch, sess, archive, personaID := m.orch, m.sess, m.archive, m.orch.Persona().ID
	return func() tea.Msg {
		var id string
		var save func(context.Context) error
		if archive != nil {
			save = func(ctx context.Context) error {
				var err error
				id, err = archive.SaveSession(ctx, sess, personaID)
				return err
			}
		}
		err := orch.ClearHistory(context.Background(), sess, save)
		return clearedMsg{archiveID: id, err: err}
	}
}

func (m Model) waitForPhase() tea.Cmd {
	ch := m.phaseCh
	return func() tea.Msg {
		return phaseMsg{phase: <-ch}
	}
}

// --- view ---

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Loading PersonaChat..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.showModelList {
		b.WriteString(m.renderModelList())
	} else {
		b.WriteString(ChatPanelStyle.Width(m.width - 2).Render(m.viewport.View()))
		b.WriteString("\n")
		b.WriteString(m.renderInputArea())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.orch.Persona().Title
	if title == "" {
		title = m.orch.Persona().Name
	}
	return TitlePanelStyle.Width(m.width - 4).Render(TitleStyle.Render(title))
}

func (m Model) renderModelList() string {
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("Select model"))
	content.WriteString("\n\n")
	for i, info := range m.catalog.Models() {
		label := info.ID
		if info.Provider != "" {
			label += HelpDescStyle.Render("  " + info.Provider)
		}
		if i == m.modelIndex {
			content.WriteString(SelectedModelItemStyle.Render("▶ " + label))
		} else {
			content.WriteString(ModelItemStyle.Render("  " + label))
		}
		content.WriteString("\n")
	}
	return ModelListStyle.Width(m.width - 2).Render(content.String())
}

func (m Model) renderInputArea() string {
	if m.busy {
		label := phaseLabel(m.phase, m.sess.Phase.PhaseDuration())
		return InputStyle.Width(m.width - 2).Render(m.spinner.View() + ThinkingStyle.Render(" "+label))
	}
	return FocusedInputStyle.Width(m.width - 2).Render(m.textarea.View())
}

// phaseLabel shows the phase and, after the first second, how long it runs
func phaseLabel(p session.Phase, elapsed time.Duration) string {
	if p == session.PhaseIdle {
		return "Working..."
	}
	if elapsed < time.Second {
		return p.String()
	}
	return fmt.Sprintf("%s (%ds)", p.String(), int(elapsed.Seconds()))
}

func (m Model) renderStatusBar() string {
	st := m.sess.Store.Settings()
	left := HelpDescStyle.Render("Model: ") + SelectedModelItemStyle.Render(st.Model)
	right := RenderToggle("voice", st.VoiceMode) + "  " + RenderToggle("autoplay", st.Autoplay) +
		"  " + HelpDescStyle.Render("v"+version.TUI)

	line := left + "  " + right
	if m.notice != "" {
		style := NoticeStyle
		if m.noticeIsError {
			style = ErrorStyle
		}
		line = style.Render(m.notice) + "\n" + line
	}
	return StatusBarStyle.Width(m.width - 2).Render(line)
}

func (m Model) renderHelpBar() string {
	if m.showModelList {
		return strings.Join([]string{
			RenderKeyHint("↑/↓", "navigate"),
			RenderKeyHint("Enter", "select"),
			RenderKeyHint("Esc", "close"),
		}, "  ")
	}
	items := []string{
		RenderKeyHint("Enter", "send"),
		RenderKeyHint("Ctrl+R", "record"),
		RenderKeyHint("Ctrl+P", "play"),
		RenderKeyHint("Ctrl+O", "model"),
		RenderKeyHint("Ctrl+T", "autoplay"),
		RenderKeyHint("Ctrl+V", "voice"),
		RenderKeyHint("Ctrl+L", "clear"),
		RenderKeyHint("Ctrl+C", "quit"),
	}
	return strings.Join(items, "  ")
}

// updateViewportContent renders the transcript from the session store
func (m *Model) updateViewportContent() {
	p := m.orch.Persona()
	width := m.width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	for _, t := range m.sess.Store.Transcript() {
		ts := t.CreatedAt.Format("15:04")
		switch t.Role {
		case session.RoleUser:
			content.WriteString(RoleLabelUserStyle.Render("You") + "  " + HelpDescStyle.Render(ts))
			content.WriteString("\n")
			content.WriteString(UserMessageStyle.Width(width).Render(t.Content))
		default:
			content.WriteString(RoleLabelAssistantStyle.Render(p.Initials+" "+p.Name) + "  " + HelpDescStyle.Render(ts))
			content.WriteString("\n")
			content.WriteString(AssistantMessageStyle.Width(width).Render(t.Content))
		}
		content.WriteString("\n\n")
	}
	if m.sess.Store.Len() == 0 {
		content.WriteString(HelpDescStyle.Render("Start a conversation with " + p.Name + "."))
	}
	m.viewport.SetContent(content.String())
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeIsError = false
}

func (m *Model) setError(err error) {
	m.notice = coreerrors.UserMessage(err)
	m.noticeIsError = !orchestrator.IsUserError(err)
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeIsError = false
}

func lastAssistantIndex(turns []session.Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == session.RoleAssistant {
			return i
		}
	}
	return -1
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run starts the chat client
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
