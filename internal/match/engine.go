package match

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/tactix/internal/metrics"
	"github.com/tactix/pkg/logger"
)

// ErrNotInIntro is returned by Kickoff on a run that already started.
var ErrNotInIntro = errors.New("match already kicked off")

// State is the phase of a run.
type State int

const (
	Intro State = iota
	Live
	Finished
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Finished:
		return "finished"
	default:
		return "intro"
	}
}

// GoalText is the commentary line for every goal.
const GoalText = "GOAL!!! The stadium erupts!"

var flavorLines = []string{
	"Dangerous attack...",
	"Great save by the keeper!",
	"Corner kick awarded.",
	"Midfield battle intensifying.",
	"Tactical adjustment detected.",
	"Shot hits the post!",
}

func flavorKind(text string) Kind {
	if strings.Contains(text, "save") || strings.Contains(text, "post") {
		return Chance
	}
	return Normal
}

// Cues plays the match sounds. Implementations may fail; the engine
// swallows every failure.
type Cues interface {
	Whistle()
	CrowdSwell()
}

// Options tune a run.
type Options struct {
	TickInterval time.Duration
	SettleDelay  time.Duration
	FlavorChance float64
	FeedWindow   int
	Cues         Cues
	// NewRand creates the randomness for each run. Defaults to a
	// randomly seeded PCG.
	NewRand func() Rand
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 100 * time.Millisecond
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.FeedWindow <= 0 {
		o.FeedWindow = 4
	}
	if o.NewRand == nil {
		o.NewRand = func() Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	return o
}

// Snapshot is the observable state of a run.
type Snapshot struct {
	State     State
	Minute    int
	HomeScore int
	AwayScore int
	// Recent is the newest commentary, newest first.
	Recent []Entry
}

// Observer receives a snapshot after every state change.
type Observer func(Snapshot)

// LoadOption configures a run created by Engine.Load.
type LoadOption func(*Run)

// WithObserver registers fn on the run.
func WithObserver(fn Observer) LoadOption {
	return func(r *Run) {
		r.observers = append(r.observers, fn)
	}
}

// Engine owns at most one run at a time.
type Engine struct {
	opts Options
	mu   sync.Mutex
	run  *Run
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Load cancels the current run and creates a new one in Intro for score.
func (e *Engine) Load(score string, opts ...LoadOption) *Run {
	home, away := ParseScore(score)

	r := newRun(e.opts, home, away)
	for _, opt := range opts {
		opt(r)
	}

	e.mu.Lock()
	prev := e.run
	e.run = r
	e.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	return r
}

// Current returns the current run or nil.
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run
}

// Cancel stops and discards the current run.
func (e *Engine) Cancel() {
	e.mu.Lock()
	r := e.run
	e.run = nil
	e.mu.Unlock()

	if r != nil {
		r.Cancel()
	}
}

// Run is one playback of a scoreline.
type Run struct {
	opts      Options
	rng       Rand
	goals     []GoalEvent
	feed      Feed
	observers []Observer

	mu        sync.Mutex
	state     State
	minute    int
	nextGoal  int
	homeScore int
	awayScore int

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	cancelOnce sync.Once
	started    bool
}

func newRun(opts Options, home, away int) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	rng := opts.NewRand()
	r := &Run{
		opts:   opts,
		rng:    rng,
		goals:  Schedule(rng, home, away),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	metrics.RecordGoalsScheduled(len(r.goals))
	return r
}

// Goals returns a copy of the scheduled goals.
func (r *Run) Goals() []GoalEvent {
	return append([]GoalEvent(nil), r.goals...)
}

// Done is closed once the run finished or was cancelled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Feed returns the full commentary log.
func (r *Run) Feed() *Feed {
	return &r.feed
}

// Snapshot returns the current state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() Snapshot {
	return Snapshot{
		State:     r.state,
		Minute:    r.minute,
		HomeScore: r.homeScore,
		AwayScore: r.awayScore,
		Recent:    r.feed.Window(r.opts.FeedWindow),
	}
}

// Kickoff moves the run to Live, blows the whistle and starts the clock.
// Cancelling ctx cancels the run.
func (r *Run) Kickoff(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Intro || r.started {
		r.mu.Unlock()
		return ErrNotInIntro
	}
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return context.Canceled
	}
	r.started = true
	r.state = Live
	snap := r.snapshotLocked()
	r.mu.Unlock()

	metrics.RecordSimulationRun("started")
	stop := context.AfterFunc(ctx, r.Cancel)

	r.notify(snap)
	r.play("whistle", cuesWhistle)

	go r.loop(stop)
	return nil
}

// Cancel stops the clock. It is safe to call more than once and before
// Kickoff.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		r.cancel()

		r.mu.Lock()
		started := r.started
		r.mu.Unlock()

		if !started {
			close(r.done)
		}
	})
}

func (r *Run) loop(stop func() bool) {
	defer close(r.done)
	defer stop()

	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			metrics.RecordSimulationRun("cancelled")
			return
		case <-ticker.C:
		}

		if !r.advance() {
			continue
		}

		ticker.Stop()
		r.play("whistle", cuesWhistle)

		settle := time.NewTimer(r.opts.SettleDelay)
		select {
		case <-r.ctx.Done():
			settle.Stop()
			metrics.RecordSimulationRun("cancelled")
			return
		case <-settle.C:
		}

		r.mu.Lock()
		r.state = Finished
		snap := r.snapshotLocked()
		r.mu.Unlock()

		metrics.RecordSimulationRun("finished")
		r.notify(snap)
		return
	}
}

// advance plays one match minute and reports whether full time was reached.
func (r *Run) advance() bool {
	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return false
	}

	r.minute++
	goals := 0
	for r.nextGoal < len(r.goals) && r.goals[r.nextGoal].Minute <= r.minute {
		g := r.goals[r.nextGoal]
		r.nextGoal++
		if g.Side == Home {
			r.homeScore++
		} else {
			r.awayScore++
		}
		r.feed.Append(Entry{Minute: r.minute, Text: GoalText, Kind: Goal})
		metrics.RecordCommentary(Goal.String())
		goals++
	}

	if goals == 0 && r.rng.Float64() < r.opts.FlavorChance {
		text := flavorLines[r.rng.IntN(len(flavorLines))]
		kind := flavorKind(text)
		r.feed.Append(Entry{Minute: r.minute, Text: text, Kind: kind})
		metrics.RecordCommentary(kind.String())
	}

	fullTime := r.minute >= FullTime
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	for range goals {
		r.play("crowd", cuesCrowd)
	}
	return fullTime
}

func (r *Run) notify(snap Snapshot) {
	for _, fn := range r.observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Log.Errorf("Match observer panicked: %v", rec)
				}
			}()
			fn(snap)
		}()
	}
}

func cuesWhistle(c Cues) { c.Whistle() }
func cuesCrowd(c Cues)   { c.CrowdSwell() }

func (r *Run) play(name string, fn func(Cues)) {
	if r.opts.Cues == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Debugf("Audio cue %s failed: %v", name, rec)
			metrics.RecordAudioCueFailure(name)
		}
	}()
	fn(r.opts.Cues)
}
