package tui

import (
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
)

// cycleDoneMsg is sent when a text or voice cycle has finished
type cycleDoneMsg struct {
	outcome *orchestrator.Outcome
	err     error
}

// replayMsg carries a re-synthesized clip
type replayMsg struct {
	clip audio.Clip
	err  error
}

// playedMsg is sent when playback has finished
type playedMsg struct {
	err error
}

// phaseMsg forwards a phase change of the session
type phaseMsg struct {
	phase session.Phase
}

// clearedMsg is sent after the history was archived and reset
type clearedMsg struct {
	archiveID string
	err       error
}
