package collect

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"rookery/internal/model"
)

// Collector produces raw records for one (entity, data-type) pair. It may
// return fewer records than maxCount; implementations should honor ctx and
// hand back whatever they gathered so far when it expires.
type Collector interface {
	Collect(ctx context.Context, handle string, dataType model.DataType, maxCount int) ([]RawRecord, error)
}

// ErrSessionBusy is returned by TryAcquire when the session is held.
var ErrSessionBusy = errors.New("collector session busy")

// Session serializes access to a Collector. The underlying automation drives
// one shared browser resource, so at most one collection runs at a time;
// callers acquire before a task and release after, error paths included.
type Session struct {
	c       Collector
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewSession wraps c with exclusive acquisition and request pacing.
func NewSession(c Collector, rps float64, burst int) *Session {
	if rps <= 0 {
		rps = envFloat("ROOKERY_COLLECT_RPS", 1.0)
	}
	if burst <= 0 {
		burst = envInt("ROOKERY_COLLECT_BURST", 2)
	}
	return &Session{
		c:       c,
		sem:     make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Acquire blocks until the session is free (or ctx is done) and returns the
// release func. Release is idempotent-safe to defer.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		var released bool
		return func() {
			if !released {
				released = true
				<-s.sem
			}
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire is the non-blocking variant.
func (s *Session) TryAcquire() (func(), error) {
	select {
	case s.sem <- struct{}{}:
		var released bool
		return func() {
			if !released {
				released = true
				<-s.sem
			}
		}, nil
	default:
		return nil, ErrSessionBusy
	}
}

// Collect paces and delegates to the wrapped Collector. The caller must hold
// the session.
func (s *Session) Collect(ctx context.Context, handle string, dataType model.DataType, maxCount int) ([]RawRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.c.Collect(ctx, handle, dataType, maxCount)
}

// CollectTimeBoxed runs one collection under a hard wall-clock ceiling. The
// automation layer has no reliable done signal, so the ceiling guarantees
// forward progress: records gathered before the deadline are treated as the
// final batch rather than a failure.
func CollectTimeBoxed(ctx context.Context, s *Session, ceiling time.Duration, handle string, dataType model.DataType, maxCount int) ([]RawRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()
	recs, err := s.Collect(cctx, handle, dataType, maxCount)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && len(recs) > 0 {
		return recs, nil
	}
	return recs, err
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
