package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/msto63/personachat/internal/voice/audio"
	"github.com/msto63/personachat/pkg/core/cache"
	"github.com/msto63/personachat/pkg/core/health"
)

// errEmptyClip keeps empty clips out of the cache
var errEmptyClip = errors.New("empty clip")

// Cached remembers synthesized clips by language and text, so replaying a
// turn does not call the engine again.
type Cached struct {
	next  Synthesizer
	clips *cache.Cache[string, audio.Clip]
}

// NewCached wraps next with a clip cache
func NewCached(next Synthesizer, cfg cache.Config) *Cached {
	return &Cached{
		next:  next,
		clips: cache.New[string, audio.Clip](cfg),
	}
}

// Synthesize implements Synthesizer. Errors and empty clips are not cached.
func (c *Cached) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	clip, err := c.clips.GetOrSet(cache.Key(language, text), func() (audio.Clip, error) {
		clip, err := c.next.Synthesize(ctx, text, language)
		if err == nil && clip.Empty() {
			return clip, errEmptyClip
		}
		return clip, err
	})
	if errors.Is(err, errEmptyClip) {
		return clip, nil
	}
	return clip, err
}

// Stats returns hits, misses and hit rate of the clip cache
func (c *Cached) Stats() (hits, misses int64, hitRate float64) {
	return c.clips.Stats()
}

// HealthCheck reports the cache hit rate. It never fails; the numbers end
// up in the details of the health report.
func (c *Cached) HealthCheck(name string) health.Checker {
	return health.NewChecker(name, func(ctx context.Context) health.CheckResult {
		hits, misses, rate := c.Stats()
		return health.CheckResult{
			Name:    name,
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("hit rate %.0f%%", rate),
			Details: map[string]interface{}{
				"hits":    hits,
				"misses":  misses,
				"entries": c.clips.Len(),
			},
		}
	})
}
