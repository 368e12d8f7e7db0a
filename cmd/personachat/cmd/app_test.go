package cmd

import (
	"context"
	"testing"

	"github.com/msto63/personachat/pkg/core/config"
)

func TestBuildAppHealthChecks(t *testing.T) {
	tests := []struct {
		name  string
		noTTS bool
		want  []string
		not   []string
	}{
		{"with speech", false, []string{"generation", "groq_api", "tts_cache"}, nil},
		{"without speech", true, []string{"generation", "groq_api"}, []string{"tts_cache"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Archive.Enabled = false

			a, err := buildApp(context.Background(), cfg, appOptions{NoTTS: tt.noTTS})
			if err != nil {
				t.Fatalf("buildApp() error = %v", err)
			}
			defer a.close()

			names := make(map[string]bool)
			for _, c := range a.checks {
				names[c.Name()] = true
			}
			for _, n := range tt.want {
				if !names[n] {
					t.Errorf("check %q missing, have %v", n, names)
				}
			}
			for _, n := range tt.not {
				if names[n] {
					t.Errorf("check %q should not be registered", n)
				}
			}
		})
	}
}
