package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"ytarchive/internal/logging"
)

const (
	// ChunkAlignment is the granularity resumable endpoints require for non-final chunks.
	ChunkAlignment = 256 * 1024

	DefaultChunkSize  = 8 * 1024 * 1024
	DefaultMaxRetries = 10
	DefaultBackoffCap = 64 * time.Second
)

// Ack is the server's view of a session after a round trip.
type Ack struct {
	// Committed is the number of bytes the server has persisted.
	Committed int64
	// Done is set once the server has accepted the whole payload.
	Done bool
	// Body carries the final response when Done is set.
	Body []byte
}

// Session is one server-side resumable upload.
type Session interface {
	// Put sends chunk starting at offset.
	Put(ctx context.Context, offset int64, chunk []byte, total int64) (Ack, error)
	// Committed asks the server how much it has persisted.
	Committed(ctx context.Context, total int64) (Ack, error)
}

// Opener starts a new session. It is the billed insert call.
type Opener func(ctx context.Context) (Session, error)

// Options tunes Upload. Zero values take defaults.
type Options struct {
	ChunkSize  int64
	MaxRetries int
	BackoffCap time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	Rand       func() float64
	Progress   func(Progress)
	Logger     *slog.Logger
	Now        func() time.Time
}

// Result is a completed upload.
type Result struct {
	Body    []byte
	Size    int64
	Retries int
	Elapsed time.Duration
}

// Upload drives payload through the session returned by open. Retriable failures back
// off with full jitter and resume from the server's committed offset; the retry count
// is cumulative across the upload and exceeding MaxRetries aborts it. Fatal failures
// return immediately.
func Upload(ctx context.Context, payload Payload, open Opener, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if payload.Reader == nil {
		return nil, &Error{Kind: KindFatal, Err: errors.New("payload has no reader")}
	}
	if payload.Size < 0 {
		return nil, &Error{Kind: KindFatal, Err: fmt.Errorf("payload size %d is negative", payload.Size)}
	}

	logger := opts.Logger.With(logging.String("payload", payload.Name))
	start := opts.Now()
	buf := make([]byte, opts.ChunkSize)

	var (
		session Session
		offset  int64
		resync  bool
		retries int
	)

	// fail records a failure and returns a non-nil error when the upload must stop.
	fail := func(err error) error {
		if Classify(err) == KindFatal {
			return &Error{Kind: KindFatal, Retries: retries, Err: err}
		}
		retries++
		if retries > opts.MaxRetries {
			return &Error{Kind: KindFatal, Retries: opts.MaxRetries, Exhausted: true, Err: err}
		}
		delay := opts.backoff(retries)
		logger.Warn("upload chunk failed; retrying",
			logging.Error(err),
			logging.Int("retry", retries),
			logging.Int("max_retries", opts.MaxRetries),
			logging.Duration("backoff", delay.Round(time.Millisecond)),
			logging.Int64("offset", offset),
			logging.String(logging.FieldEventType, "upload_retry"),
			logging.String(logging.FieldErrorHint, "transient network or server failure"),
			logging.String(logging.FieldImpact, "upload resumes from the last committed byte"),
		)
		if sleepErr := opts.Sleep(ctx, delay); sleepErr != nil {
			return &Error{Kind: KindFatal, Retries: retries, Err: sleepErr}
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindFatal, Retries: retries, Err: err}
		}

		if session == nil {
			s, err := open(ctx)
			if err != nil {
				if stop := fail(err); stop != nil {
					return nil, stop
				}
				continue
			}
			session = s
			offset = 0
			resync = false
		} else if resync {
			ack, err := session.Committed(ctx, payload.Size)
			if err != nil {
				if stop := fail(err); stop != nil {
					return nil, stop
				}
				continue
			}
			if ack.Done {
				return opts.finish(payload, ack, retries, start), nil
			}
			offset = ack.Committed
			resync = false
		}

		end := min(offset+opts.ChunkSize, payload.Size)
		chunk := buf[:end-offset]
		if len(chunk) > 0 {
			n, err := payload.Reader.ReadAt(chunk, offset)
			if n < len(chunk) {
				if err == nil || errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return nil, &Error{Kind: KindFatal, Retries: retries, Err: fmt.Errorf("read payload at %d: %w", offset, err)}
			}
		}

		ack, err := session.Put(ctx, offset, chunk, payload.Size)
		if err != nil {
			if stop := fail(err); stop != nil {
				return nil, stop
			}
			resync = true
			continue
		}
		if ack.Done {
			opts.report(payload, payload.Size, start)
			return opts.finish(payload, ack, retries, start), nil
		}
		if ack.Committed <= offset {
			if stop := fail(&StatusError{Code: 503, Body: fmt.Sprintf("server committed %d after chunk at %d", ack.Committed, offset)}); stop != nil {
				return nil, stop
			}
			resync = true
			continue
		}
		offset = min(ack.Committed, payload.Size)
		opts.report(payload, offset, start)
	}
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if rem := o.ChunkSize % ChunkAlignment; rem != 0 {
		o.ChunkSize += ChunkAlignment - rem
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// backoff returns a full-jitter delay in [0, min(2^retry seconds, cap)).
func (o Options) backoff(retry int) time.Duration {
	ceiling := o.BackoffCap
	if retry < 31 {
		if exp := time.Duration(1<<retry) * time.Second; exp < ceiling {
			ceiling = exp
		}
	}
	return time.Duration(o.Rand() * float64(ceiling))
}

func (o Options) report(payload Payload, sent int64, start time.Time) {
	if o.Progress == nil {
		return
	}
	o.Progress(Progress{Name: payload.Name, Sent: sent, Total: payload.Size, Elapsed: o.Now().Sub(start)})
}

func (o Options) finish(payload Payload, ack Ack, retries int, start time.Time) *Result {
	return &Result{Body: ack.Body, Size: payload.Size, Retries: retries, Elapsed: o.Now().Sub(start)}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
