package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/msto63/personachat/internal/voice/audio"
)

func TestGroq_Transcribe(t *testing.T) {
	var gotPath, gotAuth, gotModel, gotFormat, gotLanguage, gotFile string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotLanguage = r.FormValue("language")

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		gotFile = hdr.Filename
		gotBody, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "  What makes a great product?\n")
	}))
	defer srv.Close()

	g := NewGroq(GroqConfig{BaseURL: srv.URL + "/openai/v1", APIKey: "gsk-test"})
	clip := audio.Clip{Data: []byte("RIFFfake"), Format: audio.FormatWAV}

	res, err := g.Transcribe(context.Background(), clip, "en")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if res.Text != "What makes a great product?" {
		t.Errorf("Text = %q", res.Text)
	}
	if gotPath != "/openai/v1/audio/transcriptions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer gsk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != DefaultModel {
		t.Errorf("model = %q, want %q", gotModel, DefaultModel)
	}
	if gotFormat != "text" {
		t.Errorf("response_format = %q, want text", gotFormat)
	}
	if gotLanguage != "en" {
		t.Errorf("language = %q, want en", gotLanguage)
	}
	if !strings.HasSuffix(gotFile, ".wav") {
		t.Errorf("file name = %q, want .wav suffix", gotFile)
	}
	if string(gotBody) != "RIFFfake" {
		t.Errorf("uploaded body = %q", gotBody)
	}
}

func TestGroq_TranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	g := NewGroq(GroqConfig{BaseURL: srv.URL, APIKey: "bad"})
	_, err := g.Transcribe(context.Background(), audio.Clip{Data: []byte("x"), Format: audio.FormatWebM}, "en")
	if err == nil {
		t.Fatal("Transcribe() should fail on 401")
	}
}

func TestGroq_EmptyClip(t *testing.T) {
	g := NewGroq(GroqConfig{APIKey: "gsk"})
	if _, err := g.Transcribe(context.Background(), audio.Clip{}, "en"); err == nil {
		t.Error("Transcribe() should reject an empty clip")
	}
}

type captureTransport struct{ url string }

func (c *captureTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.url = r.URL.String()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("hi")),
		Request:    r,
	}, nil
}

func TestGroq_DefaultsToGroqEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty base url", "", GroqBaseURL + "/audio/transcriptions"},
		{"trailing slash", "http://proxy.local/v1/", "http://proxy.local/v1/audio/transcriptions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &captureTransport{}
			g := NewGroq(GroqConfig{BaseURL: tt.baseURL, APIKey: "gsk-test", HTTPClient: &http.Client{Transport: tr}})
			if _, err := g.Transcribe(context.Background(), audio.Clip{Data: []byte("x")}, "en"); err != nil {
				t.Fatalf("Transcribe() error = %v", err)
			}
			if tr.url != tt.want {
				t.Errorf("request url = %q, want %q", tr.url, tt.want)
			}
		})
	}
}
