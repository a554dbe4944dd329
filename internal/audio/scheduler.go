package audio

import (
	"context"
	"sync"
	"time"

	"github.com/tactix/pkg/logger"
)

// Chunk is one scheduled piece of streamed audio.
type Chunk struct {
	Start    time.Time
	Duration time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// End returns when the chunk stops playing.
func (c *Chunk) End() time.Time {
	return c.Start.Add(c.Duration)
}

// Stopped reports whether the chunk was interrupted.
func (c *Chunk) Stopped() bool {
	return c.ctx.Err() != nil
}

// Scheduler plays streamed chunks back to back without gaps or overlap.
type Scheduler struct {
	out Output
	now func() time.Time

	mu        sync.Mutex
	nextStart time.Time
	chunks    []*Chunk
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler on out. out may be nil, in which case
// chunks are only timed.
func NewScheduler(out Output, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{out: out, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue schedules samples to start when the previous chunk ends, or now
// if the queue has drained.
func (s *Scheduler) Enqueue(samples []float32, rate int) *Chunk {
	clip := Clip{Name: "voice", Samples: samples, Rate: rate}

	s.mu.Lock()
	now := s.now()
	start := now
	if s.nextStart.After(start) {
		start = s.nextStart
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Chunk{Start: start, Duration: clip.Duration(), ctx: ctx, cancel: cancel}
	s.nextStart = c.End()
	s.chunks = append(s.chunks, c)
	s.mu.Unlock()

	if s.out != nil {
		go s.play(c, clip, start.Sub(now))
	}
	return c
}

func (s *Scheduler) play(c *Chunk, clip Clip, delay time.Duration) {
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	if err := s.out.Play(c.ctx, clip); err != nil && c.ctx.Err() == nil {
		logger.Log.Debugf("Voice chunk failed: %v", err)
	}
}

// Interrupt stops every queued or playing chunk and resets the queue so
// the next chunk starts immediately.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.nextStart = time.Time{}
	s.mu.Unlock()

	for _, c := range chunks {
		c.cancel()
	}
}

// Reap drops chunks that ended and returns how many are still pending.
func (s *Scheduler) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.End().After(now) && !c.Stopped() {
			kept = append(kept, c)
			continue
		}
		c.cancel()
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept
	return len(kept)
}

// NextStart returns when the next enqueued chunk would start. The zero
// time means immediately.
func (s *Scheduler) NextStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
