package audio

import (
	"sync"
	"time"
)

// RingBuffer keeps the most recent samples. The recorder uses it as a
// pre-roll so the first syllable before speech detection is not lost.
type RingBuffer struct {
	mu       sync.Mutex
	data     []float32
	writePos int
	count    int
}

// NewRingBuffer creates a ring buffer holding up to capacity samples
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{data: make([]float32, capacity)}
}

// Write appends samples, overwriting the oldest ones when full
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, s := range samples {
		rb.data[rb.writePos] = s
		rb.writePos = (rb.writePos + 1) % len(rb.data)
		if rb.count < len(rb.data) {
			rb.count++
		}
	}
}

// Drain returns all samples oldest first and empties the buffer
func (rb *RingBuffer) Drain() []float32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]float32, rb.count)
	start := (rb.writePos - rb.count + len(rb.data)) % len(rb.data)
	for i := 0; i < rb.count; i++ {
		out[i] = rb.data[(start+i)%len(rb.data)]
	}
	rb.count = 0
	rb.writePos = 0
	return out
}

// Len returns the number of buffered samples
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// AudioBuffer is a growing buffer for collecting one utterance
type AudioBuffer struct {
	mu         sync.RWMutex
	samples    []float32
	sampleRate int
}

// NewAudioBuffer creates a buffer pre-sized for maxDuration at sampleRate
func NewAudioBuffer(sampleRate int, maxDuration time.Duration) *AudioBuffer {
	if maxDuration <= 0 || maxDuration > time.Minute {
		maxDuration = time.Minute
	}
	hint := int(float64(sampleRate) * maxDuration.Seconds())
	return &AudioBuffer{
		samples:    make([]float32, 0, hint),
		sampleRate: sampleRate,
	}
}

// Append adds samples to the buffer
func (ab *AudioBuffer) Append(samples []float32) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.samples = append(ab.samples, samples...)
}

// Samples returns a copy of all samples
func (ab *AudioBuffer) Samples() []float32 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	out := make([]float32, len(ab.samples))
	copy(out, ab.samples)
	return out
}

// Len returns the number of samples
func (ab *AudioBuffer) Len() int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return len(ab.samples)
}

// Duration returns the buffered audio length
func (ab *AudioBuffer) Duration() time.Duration {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	if ab.sampleRate == 0 {
		return 0
	}
	return time.Duration(len(ab.samples)) * time.Second / time.Duration(ab.sampleRate)
}

// TrimToDuration drops the newest samples beyond max
func (ab *AudioBuffer) TrimToDuration(max time.Duration) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	limit := int(float64(ab.sampleRate) * max.Seconds())
	if limit >= 0 && len(ab.samples) > limit {
		ab.samples = ab.samples[:limit]
	}
}

// Clip encodes the buffered samples as a WAV clip
func (ab *AudioBuffer) Clip() Clip {
	return Clip{Data: EncodeWAV(ab.Samples(), ab.sampleRate), Format: FormatWAV}
}

// FrameDuration returns the playing time of n samples at sampleRate
func FrameDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
