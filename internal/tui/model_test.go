package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/persona"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	return g.reply, g.err
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	return audio.Clip{Data: []byte("mp3:" + text), Format: audio.FormatMP3}, nil
}

type stubPlayer struct {
	mu     sync.Mutex
	played []audio.Clip
}

func (p *stubPlayer) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, clip)
	return nil
}

type stubArchive struct {
	saved int
	turns int
}

func (a *stubArchive) SaveSession(ctx context.Context, sess *session.Session, personaID string) (string, error) {
	a.saved++
	a.turns = sess.Store.Len()
	return "conv-1", nil
}

type fixture struct {
	model   Model
	sess    *session.Session
	player  *stubPlayer
	archive *stubArchive
	gen     *stubGenerator
}

func newFixture(t *testing.T, autoplay bool) *fixture {
	t.Helper()
	p, err := persona.Default()
	if err != nil {
		t.Fatalf("persona.Default() error = %v", err)
	}
	gen := &stubGenerator{reply: "Stay hungry."}
	orch := orchestrator.New(orchestrator.DefaultConfig(), p, gen)
	orch.SetSynthesizer(stubSynthesizer{})

	sess := session.New("tui", session.Settings{Model: llm.DefaultModel, Autoplay: autoplay})
	f := &fixture{
		sess:    sess,
		player:  &stubPlayer{},
		archive: &stubArchive{},
		gen:     gen,
	}
	f.model = New(Config{
		Orchestrator: orch,
		Session:      sess,
		Catalog:      llm.NewCatalog(nil, []string{"gemini-2.0-flash"}, llm.DefaultModel),
		Player:       f.player,
		Archive:      f.archive,
	})
	updated, _ := f.model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	f.model = updated.(Model)
	return f
}

func (f *fixture) key(t tea.KeyType) {
	updated, _ := f.model.handleKeyPress(tea.KeyMsg{Type: t})
	f.model = updated.(Model)
}

func (f *fixture) update(msg tea.Msg) {
	updated, _ := f.model.Update(msg)
	f.model = updated.(Model)
}

func TestView_ShowsPersonaTitle(t *testing.T) {
	f := newFixture(t, true)
	view := f.model.View()
	if !strings.Contains(view, "Steve Jobs") {
		t.Errorf("View() does not contain persona name:\n%s", view)
	}
	if !strings.Contains(view, llm.DefaultModel) {
		t.Errorf("View() does not contain current model")
	}
}

func TestToggles(t *testing.T) {
	f := newFixture(t, true)

	f.key(tea.KeyCtrlT)
	if f.sess.Store.Settings().Autoplay {
		t.Error("Autoplay should be off after ctrl+t")
	}
	f.key(tea.KeyCtrlV)
	if !f.sess.Store.Settings().VoiceMode {
		t.Error("VoiceMode should be on after ctrl+v")
	}
	if f.model.notice != "Voice mode on" {
		t.Errorf("notice = %q", f.model.notice)
	}
}

func TestModelSelection(t *testing.T) {
	f := newFixture(t, true)

	f.key(tea.KeyCtrlO)
	if !f.model.showModelList {
		t.Fatal("model list should be open")
	}
	ids := f.model.catalog.IDs()
	last := ids[len(ids)-1]
	for range ids {
		f.key(tea.KeyDown)
	}
	f.key(tea.KeyEnter)

	if f.model.showModelList {
		t.Error("model list should be closed after selection")
	}
	if got := f.sess.Store.Settings().Model; got != last {
		t.Errorf("Model = %q, want %q", got, last)
	}
}

func TestModelSelection_EscKeepsModel(t *testing.T) {
	f := newFixture(t, true)

	f.key(tea.KeyCtrlO)
	f.key(tea.KeyDown)
	f.key(tea.KeyEsc)

	if f.model.showModelList {
		t.Error("model list should be closed")
	}
	if got := f.sess.Store.Settings().Model; got != llm.DefaultModel {
		t.Errorf("Model = %q, want unchanged", got)
	}
}

func TestSendText_PlaysAudioOnce(t *testing.T) {
	f := newFixture(t, true)

	msg := f.model.sendText("What matters?")()
	done, ok := msg.(cycleDoneMsg)
	if !ok {
		t.Fatalf("sendText returned %T", msg)
	}
	if done.err != nil {
		t.Fatalf("cycle error = %v", done.err)
	}
	if !f.sess.Store.HasPendingAudio() {
		t.Fatal("expected pending audio after cycle")
	}

	f.model.busy = true
	f.update(done)

	if f.model.busy {
		t.Error("busy should be reset")
	}
	if f.sess.Store.HasPendingAudio() {
		t.Error("pending audio should be consumed")
	}
	if f.sess.Store.Len() != 2 {
		t.Errorf("transcript length = %d, want 2", f.sess.Store.Len())
	}
	if !strings.Contains(f.model.viewport.View(), "Stay hungry.") {
		t.Error("viewport should render the reply")
	}
}

func TestSendText_Error(t *testing.T) {
	f := newFixture(t, false)
	f.gen.err = errors.New("boom")

	done := f.model.sendText("Hi")().(cycleDoneMsg)
	f.update(done)

	if !f.model.noticeIsError {
		t.Error("generation failure should be shown as error")
	}
	if f.model.notice != orchestrator.MsgGenerationFailed {
		t.Errorf("notice = %q", f.model.notice)
	}
}

func TestSendText_EmptyIsUserError(t *testing.T) {
	f := newFixture(t, false)

	done := f.model.sendText("   ")().(cycleDoneMsg)
	f.update(done)

	if f.model.noticeIsError {
		t.Error("validation failure should not be flagged as error")
	}
	if f.model.notice != orchestrator.MsgEmptyInput {
		t.Errorf("notice = %q", f.model.notice)
	}
}

func TestPlay(t *testing.T) {
	f := newFixture(t, true)
	clip := audio.Clip{Data: []byte("x"), Format: audio.FormatMP3}

	msg := f.model.play(clip)()
	if pm, ok := msg.(playedMsg); !ok || pm.err != nil {
		t.Fatalf("play returned %#v", msg)
	}
	if len(f.player.played) != 1 {
		t.Errorf("played = %d, want 1", len(f.player.played))
	}

	f.model.player = nil
	if cmd := f.model.play(clip); cmd != nil {
		t.Error("play without player should return nil")
	}
}

func TestReplay_LastAssistantTurn(t *testing.T) {
	f := newFixture(t, false)
	f.sess.Store.AppendTurn(session.RoleUser, "Q")
	f.sess.Store.AppendTurn(session.RoleAssistant, "Answer")

	idx := lastAssistantIndex(f.sess.Store.Transcript())
	if idx != 1 {
		t.Fatalf("lastAssistantIndex = %d, want 1", idx)
	}
	msg := f.model.replay(idx)().(replayMsg)
	if msg.err != nil {
		t.Fatalf("replay error = %v", msg.err)
	}
	if string(msg.clip.Data) != "mp3:Answer" {
		t.Errorf("clip = %q", msg.clip.Data)
	}
}

func TestReplay_NothingYet(t *testing.T) {
	f := newFixture(t, false)
	f.key(tea.KeyCtrlP)
	if f.model.notice != "Nothing to play yet." {
		t.Errorf("notice = %q", f.model.notice)
	}
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, false)
	f.sess.Store.AppendTurn(session.RoleUser, "Q")
	f.sess.Store.AppendTurn(session.RoleAssistant, "A")

	msg := f.model.clearHistory()().(clearedMsg)
	if msg.err != nil || msg.archiveID != "conv-1" {
		t.Fatalf("clearedMsg = %#v", msg)
	}
	if f.archive.saved != 1 || f.archive.turns != 2 {
		t.Errorf("archive saved=%d turns=%d", f.archive.saved, f.archive.turns)
	}
	if f.sess.Store.Len() != 0 {
		t.Error("transcript should be empty")
	}

	// leere Historie wird nicht archiviert
	f.model.clearHistory()()
	if f.archive.saved != 1 {
		t.Errorf("archive saved=%d, want 1", f.archive.saved)
	}
}

func TestClearHistory_HoldsSession(t *testing.T) {
	f := newFixture(t, false)
	f.sess.Store.AppendTurn(session.RoleUser, "Q")
	f.sess.Store.AppendTurn(session.RoleAssistant, "A")

	f.key(tea.KeyCtrlL)
	if !f.model.busy {
		t.Fatal("ctrl+l should mark the model busy until clearedMsg")
	}
	f.model.textarea.SetValue("Hi")
	f.key(tea.KeyEnter)
	if f.model.textarea.Value() != "Hi" {
		t.Error("enter accepted while clearing")
	}

	// laufender Zyklus blockiert das Löschen
	if err := f.sess.Phase.Begin(session.PhaseAwaitingGeneration); err != nil {
		t.Fatal(err)
	}
	msg := f.model.clearHistory()().(clearedMsg)
	if !errors.Is(msg.err, orchestrator.ErrBusy) {
		t.Fatalf("clearedMsg.err = %v, want busy", msg.err)
	}
	if f.archive.saved != 0 || f.sess.Store.Len() != 2 {
		t.Errorf("busy clear touched history: saved=%d turns=%d", f.archive.saved, f.sess.Store.Len())
	}
	f.update(msg)
	if f.model.busy {
		t.Error("clearedMsg should release the model")
	}
	if f.model.notice != orchestrator.MsgBusy {
		t.Errorf("notice = %q", f.model.notice)
	}
}

func TestInputHistory(t *testing.T) {
	f := newFixture(t, false)
	f.model.inputHistory = []string{"first", "second"}

	f.key(tea.KeyUp)
	if got := f.model.textarea.Value(); got != "second" {
		t.Errorf("after up = %q", got)
	}
	f.key(tea.KeyUp)
	if got := f.model.textarea.Value(); got != "first" {
		t.Errorf("after up up = %q", got)
	}
	f.key(tea.KeyDown)
	f.key(tea.KeyDown)
	if got := f.model.textarea.Value(); got != "" {
		t.Errorf("after returning = %q, want empty", got)
	}
}

func TestPhaseMessages(t *testing.T) {
	f := newFixture(t, false)
	f.model.sendText("Hi")()

	msg := f.model.waitForPhase()().(phaseMsg)
	if msg.phase != session.PhaseAwaitingGeneration {
		t.Errorf("first phase = %v, want generation", msg.phase)
	}
	f.update(msg)
	if f.model.phase != session.PhaseAwaitingGeneration {
		t.Errorf("model phase = %v", f.model.phase)
	}
}

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		phase   session.Phase
		elapsed time.Duration
		want    string
	}{
		{session.PhaseIdle, 5 * time.Second, "Working..."},
		{session.PhaseAwaitingGeneration, 300 * time.Millisecond, session.PhaseAwaitingGeneration.String()},
		{session.PhaseAwaitingGeneration, 2500 * time.Millisecond, session.PhaseAwaitingGeneration.String() + " (2s)"},
		{session.PhaseClearing, time.Minute, session.PhaseClearing.String() + " (60s)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := phaseLabel(tt.phase, tt.elapsed); got != tt.want {
				t.Errorf("phaseLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
