package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/msto63/personachat/internal/voice/audio"
)

// mp3Players are tried in order for compressed clips
var mp3Players = [][]string{
	{"mpg123", "-q", "{file}"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "{file}"},
	{"afplay", "{file}"},
}

// Player plays clips on the default output device. WAV is played through
// PortAudio, other formats through the first external player found.
type Player struct {
	mu       sync.Mutex
	lookPath func(string) (string, error)
}

// NewPlayer creates a new player
func NewPlayer() *Player {
	return &Player{lookPath: exec.LookPath}
}

// Play blocks until the clip has been played or ctx is done
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	if clip.Empty() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if clip.Format == audio.FormatWAV {
		rate, pcm, err := audio.ParseWAV(clip.Data)
		if err != nil {
			return fmt.Errorf("failed to parse WAV: %w", err)
		}
		return playPCM(ctx, audio.PCM16ToFloat32(pcm), float64(rate))
	}
	return p.playExternal(ctx, clip)
}

func (p *Player) playExternal(ctx context.Context, clip audio.Clip) error {
	argv, err := p.playerCommand()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "personachat-*."+clip.Format)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	f.Close()

	args := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		if a == "{file}" {
			a = f.Name()
		}
		args = append(args, a)
	}
	if err := exec.CommandContext(ctx, argv[0], args...).Run(); err != nil {
		return fmt.Errorf("%s failed: %w", argv[0], err)
	}
	return nil
}

// playerCommand returns the first installed external player
func (p *Player) playerCommand() ([]string, error) {
	for _, argv := range mp3Players {
		if _, err := p.lookPath(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, fmt.Errorf("no audio player found (install mpg123 or ffmpeg)")
}

// playPCM writes mono float32 samples to the default output stream
func playPCM(ctx context.Context, samples []float32, sampleRate float64) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	const bufferSize = 1024
	buffer := make([]float32, bufferSize)

	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, bufferSize, &buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(samples); pos += bufferSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[pos:])
		for i := n; i < bufferSize; i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
	}
	return nil
}
