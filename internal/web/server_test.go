package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/persona"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/internal/voice/stt"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
)

type stubGenerator struct {
	reply string
	err   error
	n     atomic.Int32
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.n.Add(1)
	return g.reply, g.err
}

func (g *stubGenerator) calls() int { return int(g.n.Load()) }

type stubSynthesizer struct{ err error }

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	if s.err != nil {
		return audio.Clip{}, s.err
	}
	return audio.Clip{Data: []byte("ID3" + text), Format: audio.FormatMP3}, nil
}

type stubTranscriber struct {
	text   string
	format string
}

func (t *stubTranscriber) Transcribe(ctx context.Context, clip audio.Clip, language string) (stt.Result, error) {
	t.format = clip.Format
	return stt.Result{Text: t.text}, nil
}

type stubArchive struct {
	mu    sync.Mutex
	saved []int

	// optional: SaveSession signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (a *stubArchive) SaveSession(ctx context.Context, sess *session.Session, personaID string) (string, error) {
	if a.entered != nil {
		close(a.entered)
		<-a.release
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, sess.Store.Len())
	return "archived", nil
}

type testEnv struct {
	server  *Server
	gen     *stubGenerator
	synth   *stubSynthesizer
	tr      *stubTranscriber
	archive *stubArchive
	cookie  *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	p, err := persona.Default()
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		gen:     &stubGenerator{reply: "Simplicity is the ultimate sophistication."},
		synth:   &stubSynthesizer{},
		tr:      &stubTranscriber{text: "Hello Steve"},
		archive: &stubArchive{},
	}
	orch := orchestrator.New(orchestrator.DefaultConfig(), p, env.gen)
	orch.SetSynthesizer(env.synth)
	orch.SetTranscriber(env.tr)

	s, err := New(DefaultConfig(), Deps{
		Orchestrator: orch,
		Catalog:      llm.NewCatalog(nil, nil, llm.DefaultModel),
		Archive:      env.archive,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.server = s
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) session(t *testing.T) *session.Session {
	t.Helper()
	if e.cookie == nil {
		t.Fatal("no session cookie")
	}
	sess, ok := e.server.registry.Get(e.cookie.Value)
	if !ok {
		t.Fatal("session not found")
	}
	return sess
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return er
}

func TestIndexSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.cookie == nil || env.cookie.Value == "" {
		t.Fatal("session cookie not set")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "AI Persona Chatbot - Steve Jobs") {
		t.Error("persona title missing")
	}
	if !strings.Contains(body, "Ask Steve Jobs about innovation") {
		t.Error("placeholder missing")
	}

	// same cookie, same session, no new cookie
	first := env.cookie.Value
	rec = env.get(t, "/")
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie re-issued for known session")
	}
	if env.cookie.Value != first || env.server.registry.Len() != 1 {
		t.Error("session not reused")
	}
}

func TestChatThenRenderConsumesAudioOnce(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	rec := env.postJSON(t, "/api/chat", map[string]string{"text": "What is design?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp ChatResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Reply != env.gen.reply || !resp.Audio || resp.Turns != 2 {
		t.Errorf("response = %+v", resp)
	}

	page := env.get(t, "/").Body.String()
	if !strings.Contains(page, "data:audio/mpeg;base64,") {
		t.Error("first render has no autoplay audio")
	}
	if !strings.Contains(page, "What is design?") || !strings.Contains(page, "Simplicity is the ultimate sophistication.") {
		t.Error("transcript not rendered")
	}

	page = env.get(t, "/").Body.String()
	if strings.Contains(page, "data:audio/mpeg;base64,") {
		t.Error("reload replayed stale audio")
	}
	if !strings.Contains(page, "Simplicity is the ultimate sophistication.") {
		t.Error("transcript lost on reload")
	}
}

func TestChatFormPostRedirects(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("text=Hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := env.do(t, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if env.session(t).Store.Len() != 2 {
		t.Error("form post did not run a cycle")
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, env *testEnv)
		text   string
		status int
		code   string
		turns  int
	}{
		{"empty text", nil, "   ", http.StatusBadRequest, "VALIDATION", 0},
		{"generation failure", func(t *testing.T, env *testEnv) {
			env.gen.err = errors.New("upstream 500")
		}, "Hi", http.StatusBadGateway, "GENERATION_FAILED", 1},
		{"busy", func(t *testing.T, env *testEnv) {
			if err := env.session(t).Phase.Begin(session.PhaseAwaitingGeneration); err != nil {
				t.Fatal(err)
			}
		}, "Hi", http.StatusConflict, "BUSY", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.get(t, "/")
			if tt.setup != nil {
				tt.setup(t, env)
			}
			rec := env.postJSON(t, "/api/chat", map[string]string{"text": tt.text})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			er := decodeError(t, rec)
			if er.Code != tt.code || er.Error == "" {
				t.Errorf("error = %+v, want code %s", er, tt.code)
			}
			if n := env.session(t).Store.Len(); n != tt.turns {
				t.Errorf("turns = %d, want %d", n, tt.turns)
			}
		})
	}
}

func TestChatSynthesisWarning(t *testing.T) {
	env := newTestEnv(t)
	env.synth.err = errors.New("tts down")

	rec := env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ChatResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Warning != orchestrator.MsgSynthesisFailed || resp.Audio {
		t.Errorf("response = %+v", resp)
	}
	page := env.get(t, "/").Body.String()
	if !strings.Contains(page, orchestrator.MsgSynthesisFailed) {
		t.Error("warning not shown on page")
	}
}

func TestVoiceUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="voice.webm"`)
	h.Set("Content-Type", "audio/webm;codecs=opus")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("webm-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp ChatResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Question != "Hello Steve" {
		t.Errorf("question = %q", resp.Question)
	}
	if env.tr.format != audio.FormatWebM {
		t.Errorf("format = %q, want webm", env.tr.format)
	}
}

func TestVoiceWithoutMicrophone(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/voice", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without recorder", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	rec := env.postJSON(t, "/api/settings", map[string]interface{}{"model": "gpt-4"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown model status = %d, want 400", rec.Code)
	}
	if env.session(t).Store.Settings().Model != llm.DefaultModel {
		t.Error("invalid model was applied")
	}

	rec = env.postJSON(t, "/api/settings", map[string]interface{}{"model": "qwen/qwen3-32b", "autoplay": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := env.session(t).Store.Settings()
	if st.Model != "qwen/qwen3-32b" || st.Autoplay || !st.VoiceMode {
		t.Errorf("settings = %+v", st)
	}

	// autoplay off: no synthesis, no pending audio
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})
	if env.session(t).Store.HasPendingAudio() {
		t.Error("pending audio with autoplay off")
	}
}

func TestSettingsForm(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader("model=groq%2Fcompound&autoplay=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := env.do(t, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	st := env.session(t).Store.Settings()
	if st.Model != "groq/compound" || !st.Autoplay || st.VoiceMode {
		t.Errorf("settings = %+v", st)
	}
}

func TestReplay(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})
	env.session(t).Store.ConsumePendingAudio()

	rec := env.get(t, "/api/replay/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "ID3") {
		t.Error("unexpected audio body")
	}
	if env.session(t).Store.HasPendingAudio() || env.session(t).Store.Len() != 2 {
		t.Error("replay mutated the session")
	}

	for _, path := range []string{"/api/replay/0", "/api/replay/7", "/api/replay/abc"} {
		if rec := env.get(t, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestClear(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	sess := env.session(t)
	if sess.Store.Len() != 0 || sess.Store.HasPendingAudio() {
		t.Error("clear left state behind")
	}
	if len(env.archive.saved) != 1 || env.archive.saved[0] != 2 {
		t.Errorf("archived = %v, want one conversation with 2 turns", env.archive.saved)
	}

	// clearing an empty history is fine and archives nothing
	env.do(t, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	if len(env.archive.saved) != 1 {
		t.Error("empty history archived")
	}
}

func TestClearRejectsConcurrentChat(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})
	env.archive.entered = make(chan struct{})
	env.archive.release = make(chan struct{})

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/clear", nil)
		req.AddCookie(env.cookie)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		done <- rec.Code
	}()

	select {
	case <-env.archive.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("clear never reached the archive")
	}

	// Zyklus während des Archivierens
	rec := env.postJSON(t, "/api/chat", map[string]string{"text": "Sneaky"})
	if rec.Code != http.StatusConflict {
		t.Errorf("chat during clear status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/clear", nil)); rec.Code != http.StatusConflict {
		t.Errorf("second clear status = %d, want 409", rec.Code)
	}
	if env.gen.calls() != 1 {
		t.Errorf("generator called %d times, want 1", env.gen.calls())
	}

	close(env.archive.release)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("clear status = %d", code)
	}
	sess := env.session(t)
	if sess.Store.Len() != 0 || sess.Phase.Busy() {
		t.Errorf("after clear: turns = %d, phase = %v", sess.Store.Len(), sess.Phase.Current())
	}

	// Session ist danach wieder frei
	if rec := env.postJSON(t, "/api/chat", map[string]string{"text": "Again"}); rec.Code != http.StatusOK {
		t.Errorf("chat after clear status = %d", rec.Code)
	}
}

func TestTranscriptAndModels(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})

	var tr TranscriptResponse
	json.NewDecoder(env.get(t, "/api/transcript").Body).Decode(&tr)
	if len(tr.Turns) != 2 || tr.Turns[0].Role != session.RoleUser || tr.Phase != "idle" || tr.Busy {
		t.Errorf("transcript = %+v", tr)
	}
	if !tr.PendingAudio {
		t.Error("pending_audio = false")
	}

	var models ModelsResponse
	json.NewDecoder(env.get(t, "/api/models").Body).Decode(&models)
	if models.Default != llm.DefaultModel || len(models.Models) != len(llm.GroqModels) {
		t.Errorf("models = %+v", models)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get(t, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	json.NewDecoder(rec.Body).Decode(&report)
	if report.Status != "healthy" || len(report.Checks) != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.get(t, "/api/chat"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/chat status = %d, want 405", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code coreerrors.Code
		want int
	}{
		{orchestrator.CodeValidation, http.StatusBadRequest},
		{orchestrator.CodeBusy, http.StatusConflict},
		{orchestrator.CodeCaptureTimeout, http.StatusRequestTimeout},
		{orchestrator.CodeTranscriptionFailed, http.StatusBadGateway},
		{orchestrator.CodeGenerationFailed, http.StatusBadGateway},
		{coreerrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := statusFor(coreerrors.New(tt.code, "x")); got != tt.want {
				t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
	if got := statusFor(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("statusFor(plain) = %d", got)
	}
}

func TestEvictionArchives(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})

	if n := env.server.registry.EvictIdle(0); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if len(env.archive.saved) != 1 {
		t.Errorf("archived = %v", env.archive.saved)
	}
}

func TestWebSocketPhaseEvents(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	header := http.Header{}
	header.Add("Cookie", env.cookie.String())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev PhaseEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != "phase" || ev.Phase != "idle" || ev.Busy {
		t.Errorf("initial event = %+v", ev)
	}

	// wait until the hub has registered the client
	deadline := time.Now().Add(2 * time.Second)
	for env.server.events.count(env.cookie.Value) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	env.postJSON(t, "/api/chat", map[string]string{"text": "Hi"})

	var phases []string
	for len(phases) < 3 {
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v (got %v)", err, phases)
		}
		phases = append(phases, ev.Phase)
	}
	want := []string{"generation", "synthesis", "idle"}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases = %v, want %v", phases, want)
			break
		}
	}
}
