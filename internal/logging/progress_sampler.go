package logging

import "strings"

// ProgressSampler thins progress events to one per completion step. A new key, or a
// percent that falls below the last emitted step, starts a fresh sequence; yt-dlp
// restarts at zero for every stream it fetches and resumed uploads can step back to
// the server's committed offset.
type ProgressSampler struct {
	step float64
	key  string
	last int
}

// NewProgressSampler emits every step percent. Out-of-range steps default to 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 100 {
		step = 5
	}
	return &ProgressSampler{step: step, last: -1}
}

// ShouldLog reports whether the event should be logged. A negative percent means
// unknown and only a key change emits it.
func (s *ProgressSampler) ShouldLog(percent float64, key string) bool {
	if s == nil {
		return true
	}
	key = strings.TrimSpace(key)
	changed := key != "" && key != s.key
	if changed {
		s.key = key
		s.last = -1
	}
	if percent < 0 {
		return changed
	}

	n := int(min(percent, 100) / s.step)
	if n < s.last {
		s.last = -1
	}
	if n > s.last {
		s.last = n
		return true
	}
	return changed
}
