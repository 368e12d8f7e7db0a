package vad

import (
	"testing"
	"time"
)

const frame = 30 * time.Millisecond

func feed(tr *SpeechTracker, pattern string) {
	for _, c := range pattern {
		tr.Update(c == 's', frame)
	}
}

func TestSpeechTracker(t *testing.T) {
	cfg := Config{EndSilence: 90 * time.Millisecond, MinSpeech: 60 * time.Millisecond}

	tests := []struct {
		name    string
		pattern string // s = speech frame, _ = silence frame
		started bool
		done    bool
	}{
		{"silence only", "______", false, false},
		{"speech ongoing", "__sss", true, false},
		{"short pause", "sss__s", true, false},
		{"ended by silence", "sss___", true, true},
		{"blip too short", "s___", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSpeechTracker(cfg)
			feed(tr, tt.pattern)

			if tr.State().Started != tt.started {
				t.Errorf("Started = %v, want %v", tr.State().Started, tt.started)
			}
			if tr.Done() != tt.done {
				t.Errorf("Done() = %v, want %v (state %+v)", tr.Done(), tt.done, tr.State())
			}
		})
	}
}

func TestSpeechTracker_Durations(t *testing.T) {
	tr := NewSpeechTracker(DefaultConfig())
	feed(tr, "__ss_")

	st := tr.State()
	if st.Speech != 3*frame {
		t.Errorf("Speech = %v, want %v", st.Speech, 3*frame)
	}
	if st.Silence != frame {
		t.Errorf("Silence = %v, want %v", st.Silence, frame)
	}

	tr.Reset()
	if tr.State().Started {
		t.Error("Reset() should clear state")
	}
}

func TestValidateSampleRate(t *testing.T) {
	for _, r := range []int{8000, 16000, 32000, 48000} {
		if err := ValidateSampleRate(r); err != nil {
			t.Errorf("ValidateSampleRate(%d) error = %v", r, err)
		}
	}
	if err := ValidateSampleRate(44100); err == nil {
		t.Error("ValidateSampleRate(44100) should fail")
	}
}

func TestClampMode(t *testing.T) {
	tests := []struct{ in, want int }{{-1, 0}, {0, 0}, {2, 2}, {3, 3}, {9, 3}}
	for _, tt := range tests {
		if got := clampMode(tt.in); got != tt.want {
			t.Errorf("clampMode(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInt16ToBytes(t *testing.T) {
	b := int16ToBytes([]int16{1, -1})
	want := []byte{0x01, 0x00, 0xff, 0xff}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("int16ToBytes() = %v, want %v", b, want)
		}
	}
}

func TestWebRTC_Silence(t *testing.T) {
	v, err := NewWebRTC(DefaultConfig())
	if err != nil {
		t.Fatalf("NewWebRTC() error = %v", err)
	}
	speech, err := v.IsSpeech(make([]float32, 480))
	if err != nil {
		t.Fatalf("IsSpeech() error = %v", err)
	}
	if speech {
		t.Error("digital silence should not be speech")
	}
}
