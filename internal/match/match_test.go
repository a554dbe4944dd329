package match_test

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/match"
)

func seeded(seed uint64) func() match.Rand {
	return func() match.Rand {
		return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// fixedRand puts every goal in the same minute and never fires flavor.
type fixedRand struct{ n int }

func (f fixedRand) IntN(int) int   { return f.n }
func (fixedRand) Float64() float64 { return 0.99 }

type countingCues struct {
	whistles atomic.Int32
	crowds   atomic.Int32
}

func (c *countingCues) Whistle()    { c.whistles.Add(1) }
func (c *countingCues) CrowdSwell() { c.crowds.Add(1) }

type panickingCues struct{}

func (panickingCues) Whistle()    { panic("no audio device") }
func (panickingCues) CrowdSwell() { panic("no audio device") }

type recorder struct {
	mu    sync.Mutex
	snaps []match.Snapshot
}

func (r *recorder) observe(s match.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) finishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.snaps {
		if s.State == match.Finished {
			n++
		}
	}
	return n
}

func waitDone(r *match.Run) bool {
	select {
	case <-r.Done():
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

func fastOptions(seed uint64) match.Options {
	return match.Options{
		TickInterval: time.Millisecond,
		SettleDelay:  time.Millisecond,
		FlavorChance: 0.04,
		NewRand:      seeded(seed),
	}
}

func TestSchedule(t *testing.T) {
	Convey("Schedule produces exactly home+away goals in [1,85], ordered", t, func() {
		for seed := uint64(0); seed < 200; seed++ {
			rng := seeded(seed)()
			home, away := int(seed%7), int(seed%5)
			goals := match.Schedule(rng, home, away)

			So(len(goals), ShouldEqual, home+away)

			var h, a int
			for _, g := range goals {
				So(g.Minute, ShouldBeBetweenOrEqual, 1, match.LastGoalMinute)
				if g.Side == match.Home {
					h++
				} else {
					a++
				}
			}
			So(h, ShouldEqual, home)
			So(a, ShouldEqual, away)
			So(sort.SliceIsSorted(goals, func(i, j int) bool { return goals[i].Minute < goals[j].Minute }), ShouldBeTrue)
		}
	})

	Convey("Negative counts schedule nothing", t, func() {
		So(match.Schedule(seeded(1)(), -3, -1), ShouldBeEmpty)
	})
}

func TestParseScore(t *testing.T) {
	Convey("ParseScore reads scorelines leniently", t, func() {
		cases := []struct {
			in         string
			home, away int
		}{
			{"2-1", 2, 1},
			{"0-0", 0, 0},
			{" 4 - 2 ", 4, 2},
			{"3", 3, 0},
			{"", 0, 0},
			{"a-b", 0, 0},
			{"x-2", 0, 2},
			{"999-1", match.MaxGoalsPerSide, 1},
			{"-1-2", 0, 1},
		}
		for _, c := range cases {
			h, a := match.ParseScore(c.in)
			So(h, ShouldEqual, c.home)
			So(a, ShouldEqual, c.away)
		}
	})
}

func TestFeed(t *testing.T) {
	Convey("Given a feed with six entries", t, func() {
		var f match.Feed
		for i := 1; i <= 6; i++ {
			f.Append(match.Entry{Minute: i * 10, Text: "x"})
		}

		Convey("Then the window holds the newest four, newest first", func() {
			w := f.Window(4)
			So(len(w), ShouldEqual, 4)
			So(w[0].Minute, ShouldEqual, 60)
			So(w[3].Minute, ShouldEqual, 30)
		})

		Convey("Then the full log is kept", func() {
			So(f.Len(), ShouldEqual, 6)
			So(len(f.Window(100)), ShouldEqual, 6)
			So(f.Window(-1), ShouldBeEmpty)
		})
	})
}

func TestRunToFullTime(t *testing.T) {
	Convey("Given a run loaded with 2-1", t, func() {
		cues := &countingCues{}
		opts := fastOptions(7)
		opts.Cues = cues
		engine := match.NewEngine(opts)
		rec := &recorder{}

		run := engine.Load("2-1", match.WithObserver(rec.observe))
		So(run.Snapshot().State, ShouldEqual, match.Intro)
		So(len(run.Goals()), ShouldEqual, 3)

		Convey("When it kicks off and plays out", func() {
			So(run.Kickoff(context.Background()), ShouldBeNil)
			So(waitDone(run), ShouldBeTrue)
			snap := run.Snapshot()

			Convey("Then it finishes once at 90 with the predicted score", func() {
				So(snap.State, ShouldEqual, match.Finished)
				So(snap.Minute, ShouldEqual, match.FullTime)
				So(snap.HomeScore, ShouldEqual, 2)
				So(snap.AwayScore, ShouldEqual, 1)
				So(rec.finishedCount(), ShouldEqual, 1)
			})

			Convey("Then every goal has a goal entry and a crowd swell", func() {
				goals := 0
				for _, e := range run.Feed().Window(run.Feed().Len()) {
					if e.Kind == match.Goal {
						goals++
						So(e.Text, ShouldEqual, match.GoalText)
					}
				}
				So(goals, ShouldEqual, 3)
				So(cues.crowds.Load(), ShouldEqual, 3)
				So(cues.whistles.Load(), ShouldEqual, 2)
			})

			Convey("Then the minute never decreased", func() {
				rec.mu.Lock()
				defer rec.mu.Unlock()
				for i := 1; i < len(rec.snaps); i++ {
					So(rec.snaps[i].Minute, ShouldBeGreaterThanOrEqualTo, rec.snaps[i-1].Minute)
				}
			})

			Convey("Then a second kickoff is refused", func() {
				So(run.Kickoff(context.Background()), ShouldEqual, match.ErrNotInIntro)
			})
		})
	})
}

func TestSimultaneousGoals(t *testing.T) {
	Convey("Given a 3-2 run whose goals all fall in minute 42", t, func() {
		cues := &countingCues{}
		opts := fastOptions(0)
		opts.Cues = cues
		opts.FlavorChance = 0.5
		opts.NewRand = func() match.Rand { return fixedRand{n: 41} }
		rec := &recorder{}
		run := match.NewEngine(opts).Load("3-2", match.WithObserver(rec.observe))

		for _, g := range run.Goals() {
			So(g.Minute, ShouldEqual, 42)
		}

		Convey("When it plays out", func() {
			So(run.Kickoff(context.Background()), ShouldBeNil)
			So(waitDone(run), ShouldBeTrue)

			Convey("Then every goal is processed in the same tick", func() {
				snap := run.Snapshot()
				So(snap.State, ShouldEqual, match.Finished)
				So(snap.HomeScore, ShouldEqual, 3)
				So(snap.AwayScore, ShouldEqual, 2)

				entries := run.Feed().Window(run.Feed().Len())
				So(entries, ShouldHaveLength, 5)
				for _, e := range entries {
					So(e.Kind, ShouldEqual, match.Goal)
					So(e.Minute, ShouldEqual, 42)
				}
				So(cues.crowds.Load(), ShouldEqual, 5)

				rec.mu.Lock()
				defer rec.mu.Unlock()
				for _, s := range rec.snaps {
					if s.Minute == 41 {
						So(s.HomeScore+s.AwayScore, ShouldEqual, 0)
					}
					if s.Minute == 42 && s.State == match.Live {
						So(s.HomeScore, ShouldEqual, 3)
						So(s.AwayScore, ShouldEqual, 2)
					}
				}
			})
		})
	})
}

func TestGoallessRun(t *testing.T) {
	Convey("Given a 0-0 run without flavor events", t, func() {
		opts := fastOptions(3)
		opts.FlavorChance = 0
		run := match.NewEngine(opts).Load("0-0")

		So(run.Kickoff(context.Background()), ShouldBeNil)
		So(waitDone(run), ShouldBeTrue)

		Convey("Then it reaches full time with an empty feed", func() {
			snap := run.Snapshot()
			So(snap.State, ShouldEqual, match.Finished)
			So(snap.Minute, ShouldEqual, 90)
			So(snap.HomeScore, ShouldEqual, 0)
			So(snap.AwayScore, ShouldEqual, 0)
			So(run.Feed().Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a run where flavor always fires", t, func() {
		opts := fastOptions(5)
		opts.FlavorChance = 1
		run := match.NewEngine(opts).Load("0-0")

		So(run.Kickoff(context.Background()), ShouldBeNil)
		So(waitDone(run), ShouldBeTrue)

		Convey("Then each minute has one classified entry", func() {
			So(run.Feed().Len(), ShouldEqual, 90)
			for _, e := range run.Feed().Window(90) {
				switch e.Text {
				case "Great save by the keeper!", "Shot hits the post!":
					So(e.Kind, ShouldEqual, match.Chance)
				default:
					So(e.Kind, ShouldEqual, match.Normal)
				}
			}
		})
	})
}

func TestTeardown(t *testing.T) {
	Convey("Given a live run with a slow clock", t, func() {
		opts := fastOptions(11)
		opts.TickInterval = time.Hour
		engine := match.NewEngine(opts)
		rec := &recorder{}
		run := engine.Load("1-0", match.WithObserver(rec.observe))
		So(run.Kickoff(context.Background()), ShouldBeNil)

		Convey("When it is cancelled twice", func() {
			run.Cancel()
			run.Cancel()

			Convey("Then it stops and never finishes", func() {
				So(waitDone(run), ShouldBeTrue)
				So(rec.finishedCount(), ShouldEqual, 0)
				So(run.Snapshot().State, ShouldEqual, match.Live)
			})
		})

		Convey("When a new score is loaded", func() {
			next := engine.Load("0-0")

			Convey("Then the previous run is cancelled", func() {
				So(waitDone(run), ShouldBeTrue)
				So(engine.Current(), ShouldEqual, next)
				engine.Cancel()
				engine.Cancel()
				So(engine.Current(), ShouldBeNil)
				So(waitDone(next), ShouldBeTrue)
			})
		})

		Convey("When the kickoff context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			other := engine.Load("0-0")
			So(other.Kickoff(ctx), ShouldBeNil)
			cancel()

			Convey("Then the run stops", func() {
				So(waitDone(other), ShouldBeTrue)
			})
		})
	})

	Convey("Given a run cancelled before kickoff", t, func() {
		run := match.NewEngine(fastOptions(1)).Load("3-3")
		run.Cancel()

		Convey("Then Done is closed and kickoff fails", func() {
			So(waitDone(run), ShouldBeTrue)
			So(run.Kickoff(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestFailuresAreContained(t *testing.T) {
	Convey("Given cues and an observer that panic", t, func() {
		opts := fastOptions(9)
		opts.Cues = panickingCues{}
		run := match.NewEngine(opts).Load("1-1", match.WithObserver(func(match.Snapshot) {
			panic("render failed")
		}))

		Convey("Then the run still plays to the end", func() {
			So(run.Kickoff(context.Background()), ShouldBeNil)
			So(waitDone(run), ShouldBeTrue)
			snap := run.Snapshot()
			So(snap.State, ShouldEqual, match.Finished)
			So(snap.HomeScore+snap.AwayScore, ShouldEqual, 2)
		})
	})
}
