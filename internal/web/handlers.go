package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
	"github.com/msto63/personachat/pkg/core/health"
	"github.com/msto63/personachat/pkg/core/version"
)

// CookieName is the session cookie
const CookieName = "personachat_session"

const (
	maxUpload   = 16 << 20
	maxTextBody = 64 << 10
)

// ChatResponse is returned by /api/chat and /api/voice
type ChatResponse struct {
	Question   string `json:"question"`
	Reply      string `json:"reply"`
	Audio      bool   `json:"audio"`
	Warning    string `json:"warning,omitempty"`
	Turns      int    `json:"turns"`
	DurationMS int64  `json:"duration_ms"`
}

// TranscriptResponse is returned by /api/transcript
type TranscriptResponse struct {
	SessionID    string           `json:"session_id"`
	Turns        []session.Turn   `json:"turns"`
	Settings     session.Settings `json:"settings"`
	Phase        string           `json:"phase"`
	Busy         bool             `json:"busy"`
	PendingAudio bool             `json:"pending_audio"`
	Warning      string           `json:"warning,omitempty"`
}

// ModelsResponse is returned by /api/models
type ModelsResponse struct {
	Default string          `json:"default"`
	Models  []llm.ModelInfo `json:"models"`
}

// lookupSession resolves the session cookie. The returned cookie is
// non-nil when the client has to store a new session id.
func (s *Server) lookupSession(r *http.Request) (*session.Session, *http.Cookie) {
	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}
	sess, _ := s.registry.GetOrCreate(id)
	s.events.attach(sess)

	if sess.ID == id {
		return sess, nil
	}
	return sess, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, cookie := s.lookupSession(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.renderIndex(w, sess, http.StatusOK, "")
}

// renderIndex renders the page. Pending audio is consumed exactly once
// per render, so a reload never replays it.
func (s *Server) renderIndex(w http.ResponseWriter, sess *session.Session, status int, errMsg string) {
	data := s.pageData(sess)
	data.Error = errMsg
	if clip := sess.Store.ConsumePendingAudio(); clip != nil {
		data.AudioURI = template.URL(clip.DataURI())
		data.AudioMIME = clip.MIMEType()
	}

	var buf bytes.Buffer
	if err := s.page.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("Template rendering failed", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	text, err := readText(w, r)
	if err != nil {
		s.fail(w, r, sess, coreerrors.Wrap(err, orchestrator.CodeValidation, "Invalid request body."))
		return
	}

	out, err := s.orch.HandleTextInput(r.Context(), sess, text)
	s.respondCycle(w, r, sess, out, err)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	clip, err := readClip(w, r)
	if err != nil {
		s.fail(w, r, sess, coreerrors.Wrap(err, orchestrator.CodeValidation, orchestrator.MsgEmptyClip))
		return
	}

	var out *orchestrator.Outcome
	if clip == nil {
		// Kein Upload: Servermikrofon verwenden
		out, err = s.orch.HandleVoiceInput(r.Context(), sess)
	} else {
		out, err = s.orch.HandleVoiceClip(r.Context(), sess, *clip)
	}
	s.respondCycle(w, r, sess, out, err)
}

func (s *Server) respondCycle(w http.ResponseWriter, r *http.Request, sess *session.Session, out *orchestrator.Outcome, err error) {
	if err != nil {
		s.fail(w, r, sess, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	resp := ChatResponse{
		Question:   out.Question,
		Reply:      out.Reply,
		Audio:      out.Audio,
		Turns:      sess.Store.Len(),
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.Warning != nil {
		resp.Warning = coreerrors.UserMessage(out.Warning)
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail reports err either as JSON or as the re-rendered page
func (s *Server) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "session", sess.ID, "error", err)
	}
	if wantsHTML(r) {
		s.renderIndex(w, sess, statusFor(err), coreerrors.UserMessage(err))
		return
	}
	writeError(w, err)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	// Archiv-Schreiben soll einen abgebrochenen Request überleben
	ctx := context.WithoutCancel(r.Context())
	err := s.orch.ClearHistory(ctx, sess, func(ctx context.Context) error {
		return s.archiveSession(ctx, sess)
	})
	if coreerrors.HasCode(err, orchestrator.CodeBusy) {
		s.fail(w, r, sess, err)
		return
	}
	if err != nil {
		s.logger.Warn("Failed to archive conversation", "session", sess.ID, "error", err)
	}

	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true, "turns": 0})
}

type settingsRequest struct {
	Model     *string `json:"model"`
	VoiceMode *bool   `json:"voice_mode"`
	Autoplay  *bool   `json:"autoplay"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req settingsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxTextBody)).Decode(&req); err != nil {
			s.fail(w, r, sess, coreerrors.Wrap(err, orchestrator.CodeValidation, "Invalid settings."))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, sess, coreerrors.Wrap(err, orchestrator.CodeValidation, "Invalid settings."))
			return
		}
		// Formular: fehlende Checkbox bedeutet aus
		if r.PostForm.Has("model") {
			m := r.PostFormValue("model")
			req.Model = &m
		}
		voice := parseBool(r.PostFormValue("voice_mode"))
		autoplay := parseBool(r.PostFormValue("autoplay"))
		req.VoiceMode, req.Autoplay = &voice, &autoplay
	}

	if req.Model != nil && !s.catalog.Contains(*req.Model) {
		s.fail(w, r, sess, coreerrors.Newf(orchestrator.CodeValidation, "Unknown model %q.", *req.Model))
		return
	}

	updated := sess.Store.UpdateSettings(func(st *session.Settings) {
		if req.Model != nil {
			st.Model = *req.Model
		}
		if req.VoiceMode != nil {
			st.VoiceMode = *req.VoiceMode
		}
		if req.Autoplay != nil {
			st.Autoplay = *req.Autoplay
		}
	})
	s.logger.Debug("Settings updated", "session", sess.ID, "model", updated.Model,
		"voice_mode", updated.VoiceMode, "autoplay", updated.Autoplay)

	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, coreerrors.New(orchestrator.CodeValidation, orchestrator.MsgReplayInvalid))
		return
	}
	clip, err := s.orch.Replay(r.Context(), sess, index)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", clip.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(clip.Data)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	resp := TranscriptResponse{
		SessionID:    sess.ID,
		Turns:        sess.Store.Transcript(),
		Settings:     sess.Store.Settings(),
		Phase:        sess.Phase.Current().Key(),
		Busy:         sess.Phase.Busy(),
		PendingAudio: sess.Store.HasPendingAudio(),
	}
	if resp.Turns == nil {
		resp.Turns = []session.Turn{}
	}
	if warn := sess.Phase.LastWarning(); warn != nil {
		resp.Warning = coreerrors.UserMessage(warn)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		Default: s.catalog.Default(),
		Models:  s.catalog.Models(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := s.health.Check(ctx)
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// readText reads {text} from JSON or the "text" form field
func readText(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.Text, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("text"), nil
}

// readClip reads an uploaded recording. A nil clip means no upload.
func readClip(w http.ResponseWriter, r *http.Request) (*audio.Clip, error) {
	ct := r.Header.Get("Content-Type")
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return nil, err
		}
		file, hdr, err := r.FormFile("audio")
		if err != nil {
			return nil, fmt.Errorf("missing audio field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		return &audio.Clip{Data: data, Format: clipFormat(hdr.Header.Get("Content-Type"))}, nil

	case strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/webm"):
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return &audio.Clip{Data: data, Format: clipFormat(ct)}, nil
	}
	return nil, nil
}

// clipFormat defaults to WebM, which is what MediaRecorder produces
func clipFormat(mime string) string {
	if f := audio.FormatFromMIME(mime); f != "" {
		return f
	}
	return audio.FormatWebM
}

type turnView struct {
	Index     int
	Role      string
	Content   string
	Assistant bool
	Time      string
}

type pageData struct {
	Title       string
	PersonaName string
	Initials    string
	Placeholder string
	SessionID   string
	Turns       []turnView
	Models      []llm.ModelInfo
	Settings    session.Settings
	Phase       string
	Busy        bool

	AudioURI  template.URL
	AudioMIME string

	Warning string
	Error   string

	CanSpeak      bool
	CanTranscribe bool
	CanListen     bool
	Version       string
}

func (s *Server) pageData(sess *session.Session) pageData {
	p := s.orch.Persona()
	data := pageData{
		Title:         p.Title,
		PersonaName:   p.Name,
		Initials:      p.Initials,
		Placeholder:   p.Placeholder,
		SessionID:     sess.ID,
		Models:        s.catalog.Models(),
		Settings:      sess.Store.Settings(),
		Phase:         sess.Phase.Current().String(),
		Busy:          sess.Phase.Busy(),
		CanSpeak:      s.orch.CanSpeak(),
		CanTranscribe: s.orch.CanTranscribe(),
		CanListen:     s.orch.CanListen(),
		Version:       version.App,
	}
	for i, t := range sess.Store.Transcript() {
		data.Turns = append(data.Turns, turnView{
			Index:     i,
			Role:      string(t.Role),
			Content:   t.Content,
			Assistant: t.Role == session.RoleAssistant,
			Time:      t.CreatedAt.Format("15:04"),
		})
	}
	if warn := sess.Phase.LastWarning(); warn != nil {
		data.Warning = coreerrors.UserMessage(warn)
	}
	return data
}
