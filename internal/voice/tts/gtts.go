package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/pkg/core/logging"
	"github.com/msto63/personachat/pkg/core/version"
)

// maxChunkChars is the per-request text limit of the translate_tts endpoint
const maxChunkChars = 100

// GTTSConfig holds Google Translate TTS settings
type GTTSConfig struct {
	BaseURL    string
	Slow       bool
	HTTPClient *http.Client
}

// GTTS synthesizes speech through Google Translate's public TTS endpoint.
// Output is MP3.
type GTTS struct {
	baseURL string
	slow    bool
	client  *http.Client
	logger  *logging.Logger
}

// NewGTTS creates a new Google Translate TTS engine
func NewGTTS(cfg GTTSConfig) *GTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translate.google.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &GTTS{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		slow:    cfg.Slow,
		client:  cfg.HTTPClient,
		logger:  logging.New("gtts"),
	}
}

// Synthesize splits text into chunks, fetches each and joins the MP3 segments
func (g *GTTS) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	chunks := SplitText(text, maxChunkChars)
	if len(chunks) == 0 {
		return audio.Clip{}, fmt.Errorf("no text to speak")
	}
	if language == "" {
		language = "en"
	}

	segments := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		seg, err := g.fetch(ctx, chunk, language, i, len(chunks))
		if err != nil {
			return audio.Clip{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		segments = append(segments, seg)
	}

	g.logger.Debug("Synthesized speech", "chunks", len(chunks), "language", language)
	return audio.ConcatMP3(segments), nil
}

func (g *GTTS) fetch(ctx context.Context, chunk, language string, idx, total int) ([]byte, error) {
	speed := "1"
	if g.slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", language)
	q.Set("client", "tw-ob")
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Referer", "http://translate.google.com/")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts endpoint returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("tts endpoint returned no audio")
	}
	return data, nil
}

// SplitText breaks text into chunks of at most max runes on word boundaries.
// Words longer than max are cut.
func SplitText(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > max {
			flush()
			r := []rune(word)
			chunks = append(chunks, string(r[:max]))
			word = string(r[max:])
		}
		wl := utf8.RuneCountInString(word)
		if wl == 0 {
			continue
		}
		if curLen > 0 && curLen+1+wl > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += wl
	}
	flush()
	return chunks
}
