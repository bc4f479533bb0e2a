package transfer

import (
	"log/slog"
	"time"

	"ytarchive/internal/logging"
)

// Progress describes bytes acknowledged so far.
type Progress struct {
	Name    string
	Sent    int64
	Total   int64
	Elapsed time.Duration
}

// Percent returns completion in the range [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Sent) * 100 / float64(p.Total)
}

// LogProgress returns a sink that logs at most once per 10% bucket.
func LogProgress(logger *slog.Logger) func(Progress) {
	if logger == nil {
		return nil
	}
	sampler := logging.NewProgressSampler(10)
	return func(p Progress) {
		if !sampler.ShouldLog(p.Percent(), p.Name) {
			return
		}
		logger.Info("upload progress",
			logging.String("payload", p.Name),
			logging.Float64("percent", roundPercent(p.Percent())),
			logging.Int64("sent_bytes", p.Sent),
			logging.Int64("total_bytes", p.Total),
			logging.Duration("elapsed", p.Elapsed.Round(time.Second)),
		)
	}
}

func roundPercent(v float64) float64 {
	return float64(int(v*10)) / 10
}
