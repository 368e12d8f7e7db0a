package session

import (
	"sync"
	"testing"

	"github.com/msto63/personachat/internal/voice/audio"
)

func mp3(data string) *audio.Clip {
	return &audio.Clip{Data: []byte(data), Format: audio.FormatMP3}
}

func TestStore_AppendTurn(t *testing.T) {
	s := NewStore(Settings{})
	s.AppendTurn(RoleUser, "My name is Alex")
	s.AppendTurn(RoleAssistant, "Nice to meet you, Alex.")
	s.AppendTurn(RoleUser, "")

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	first, ok := s.Turn(0)
	if !ok || first.Role != RoleUser || first.Content != "My name is Alex" {
		t.Errorf("Turn(0) = %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if last, _ := s.Turn(2); last.Content != "" {
		t.Errorf("empty content should be stored as-is, got %q", last.Content)
	}
	if _, ok := s.Turn(3); ok {
		t.Error("Turn(3) should be out of range")
	}
	if _, ok := s.Turn(-1); ok {
		t.Error("Turn(-1) should be out of range")
	}
}

func TestStore_TranscriptIsCopy(t *testing.T) {
	s := NewStore(Settings{})
	s.AppendTurn(RoleUser, "hello")

	tr := s.Transcript()
	tr[0].Content = "changed"

	if got, _ := s.Turn(0); got.Content != "hello" {
		t.Errorf("store mutated through copy: %q", got.Content)
	}
}

func TestStore_ResetTranscript(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Store)
	}{
		{"empty", func(*Store) {}},
		{"turns only", func(s *Store) { s.AppendTurn(RoleUser, "a") }},
		{"turns and audio", func(s *Store) {
			s.AppendTurn(RoleUser, "a")
			s.AppendTurn(RoleAssistant, "b")
			s.SetPendingAudio(mp3("x"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(Settings{})
			tt.setup(s)

			s.ResetTranscript()
			s.ResetTranscript() // idempotent

			if s.Len() != 0 || len(s.Transcript()) != 0 {
				t.Errorf("transcript not empty after reset")
			}
			if s.ConsumePendingAudio() != nil {
				t.Errorf("pending audio not empty after reset")
			}
		})
	}
}

func TestStore_ConsumePendingAudio_AtMostOnce(t *testing.T) {
	s := NewStore(Settings{})
	s.SetPendingAudio(mp3("first"))

	if !s.HasPendingAudio() {
		t.Fatal("HasPendingAudio() = false after set")
	}
	clip := s.ConsumePendingAudio()
	if clip == nil || string(clip.Data) != "first" {
		t.Fatalf("first consume = %+v", clip)
	}
	if again := s.ConsumePendingAudio(); again != nil {
		t.Errorf("second consume = %+v, want nil", again)
	}
}

func TestStore_SetPendingAudio_LastWriteWins(t *testing.T) {
	s := NewStore(Settings{})
	s.SetPendingAudio(mp3("old"))
	s.SetPendingAudio(mp3("new"))

	if clip := s.ConsumePendingAudio(); clip == nil || string(clip.Data) != "new" {
		t.Errorf("consume = %+v, want new", clip)
	}

	s.SetPendingAudio(mp3("x"))
	s.SetPendingAudio(&audio.Clip{})
	if s.HasPendingAudio() {
		t.Error("empty clip should clear the slot")
	}
	s.SetPendingAudio(mp3("y"))
	s.SetPendingAudio(nil)
	if s.HasPendingAudio() {
		t.Error("nil should clear the slot")
	}
}

func TestStore_SetPendingAudio_CopiesClip(t *testing.T) {
	s := NewStore(Settings{})
	clip := mp3("abc")
	s.SetPendingAudio(clip)
	clip.Format = audio.FormatWAV

	if got := s.ConsumePendingAudio(); got.Format != audio.FormatMP3 {
		t.Errorf("Format = %v, caller mutation leaked into store", got.Format)
	}
}

func TestStore_ConcurrentConsume(t *testing.T) {
	s := NewStore(Settings{})
	s.SetPendingAudio(mp3("only once"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	got := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ConsumePendingAudio() != nil {
				mu.Lock()
				got++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if got != 1 {
		t.Errorf("clip delivered %d times, want 1", got)
	}
}

func TestStore_UpdateSettings(t *testing.T) {
	s := NewStore(Settings{Model: "llama-3.1-8b-instant", VoiceMode: true, Autoplay: true})
	s.AppendTurn(RoleAssistant, "reply")

	updated := s.UpdateSettings(func(st *Settings) {
		st.Model = "gemma2-9b-it"
		st.Autoplay = false
	})

	if updated.Model != "gemma2-9b-it" || updated.Autoplay || !updated.VoiceMode {
		t.Errorf("UpdateSettings() = %+v", updated)
	}
	if s.Settings() != updated {
		t.Errorf("Settings() = %+v, want %+v", s.Settings(), updated)
	}
	if turn, _ := s.Turn(0); turn.Content != "reply" {
		t.Errorf("settings change altered past turn: %+v", turn)
	}
}
