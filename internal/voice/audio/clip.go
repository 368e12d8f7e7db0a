// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     audio
// Description: Audio clips exchanged between capture, STT, TTS and playback
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package audio

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Supported clip formats
const (
	FormatWAV  = "wav"
	FormatMP3  = "mp3"
	FormatWebM = "webm"
	FormatOGG  = "ogg"
)

// ErrNoSpeech is returned by a recorder when no speech started before the
// listen timeout.
var ErrNoSpeech = errors.New("no speech detected")

// Clip is an encoded audio payload together with its container format
type Clip struct {
	Data   []byte
	Format string
}

// Empty reports whether the clip carries no audio
func (c Clip) Empty() bool {
	return len(c.Data) == 0
}

// MIMEType returns the content type for the clip's format
func (c Clip) MIMEType() string {
	switch c.Format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case FormatWebM:
		return "audio/webm"
	case FormatOGG:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// DataURI encodes the clip as a base64 data URI for inline <audio> elements
func (c Clip) DataURI() string {
	return "data:" + c.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

// FileName returns a file name with the clip's extension, used for
// multipart uploads where the server sniffs the format from the name.
func (c Clip) FileName(base string) string {
	if c.Format == "" {
		return base
	}
	return base + "." + c.Format
}

// FormatFromMIME maps a content type (as sent by browsers) to a clip format.
// Parameters such as ";codecs=opus" are ignored.
func FormatFromMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV
	case "audio/webm", "video/webm":
		return FormatWebM
	case "audio/ogg":
		return FormatOGG
	default:
		return ""
	}
}

// ConcatMP3 joins MP3 segments into one clip. MP3 frames are self-contained,
// so byte concatenation yields a playable stream.
func ConcatMP3(segments [][]byte) Clip {
	n := 0
	for _, s := range segments {
		n += len(s)
	}
	data := make([]byte, 0, n)
	for _, s := range segments {
		data = append(data, s...)
	}
	return Clip{Data: data, Format: FormatMP3}
}
