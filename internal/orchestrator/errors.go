package orchestrator

import (
	"github.com/msto63/personachat/internal/session"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
)

// Fehlercodes eines Zyklus
const (
	CodeValidation          coreerrors.Code = "VALIDATION"
	CodeCaptureTimeout      coreerrors.Code = "CAPTURE_TIMEOUT"
	CodeTranscriptionFailed coreerrors.Code = "TRANSCRIPTION_FAILED"
	CodeGenerationFailed    coreerrors.Code = "GENERATION_FAILED"
	CodeSynthesisFailed     coreerrors.Code = "SYNTHESIS_FAILED"
	CodeBusy                coreerrors.Code = "BUSY"
)

// User-facing messages
const (
	MsgEmptyInput          = "Please enter a message before sending."
	MsgCaptureTimeout      = "Listening timed out. Please try again."
	MsgNoTranscript        = "Sorry, I could not understand the audio. Please try again."
	MsgEmptyClip           = "No audio was received. Please try again."
	MsgVoiceDisabled       = "Voice mode is turned off."
	MsgVoiceUnavailable    = "Voice input is not available."
	MsgSpeechUnavailable   = "Speech output is not available."
	MsgReplayInvalid       = "Only assistant messages can be played."
	MsgBusy                = "Please wait for the current response to finish."
	MsgTranscriptionFailed = "Transcription failed. Please try again."
	MsgGenerationFailed    = "The model did not respond. Please try again."
	MsgSynthesisFailed     = "The reply could not be converted to speech."
	MsgCaptureFailed       = "The microphone could not be used."
)

// Sentinels for errors.Is; matching is by code
var (
	ErrValidation          = coreerrors.New(CodeValidation, "validation failed")
	ErrCaptureTimeout      = coreerrors.New(CodeCaptureTimeout, "capture timed out")
	ErrTranscriptionFailed = coreerrors.New(CodeTranscriptionFailed, "transcription failed")
	ErrGenerationFailed    = coreerrors.New(CodeGenerationFailed, "generation failed")
	ErrSynthesisFailed     = coreerrors.New(CodeSynthesisFailed, "synthesis failed")
	ErrBusy                = coreerrors.New(CodeBusy, "session busy")
)

func validationError(msg string) *coreerrors.Error {
	return coreerrors.New(CodeValidation, msg)
}

func busyError(sessionID string) error {
	return coreerrors.Wrap(session.ErrBusy, CodeBusy, MsgBusy).WithDetail("session", sessionID)
}

func captureError(err error) error {
	return coreerrors.Wrap(err, coreerrors.CodeInternal, MsgCaptureFailed)
}

// IsUserError reports whether err was caused by the user's input rather
// than a failing backend
func IsUserError(err error) bool {
	switch coreerrors.CodeOf(err) {
	case CodeValidation, CodeCaptureTimeout, CodeBusy:
		return true
	}
	return false
}
