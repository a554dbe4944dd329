package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/config"
	"github.com/tactix/internal/match"
	"github.com/tactix/internal/session"
	"github.com/tactix/internal/storage"
	"github.com/tactix/internal/team"
)

func TestLiveViewMailbox(t *testing.T) {
	Convey("Given a view nobody is draining", t, func() {
		v := newLiveView("42", team.DefaultSelf(), team.DefaultOpponent())

		Convey("When many snapshots arrive", func() {
			for m := 1; m <= 90; m++ {
				v.observe(match.Snapshot{State: match.Live, Minute: m})
			}
			v.observe(match.Snapshot{State: match.Finished, Minute: 90})

			Convey("Then only the newest is kept", func() {
				snap := <-v.latest
				So(snap.State, ShouldEqual, match.Finished)
				select {
				case <-v.latest:
					So("stale snapshot", ShouldBeEmpty)
				default:
				}
			})
		})
	})
}

func TestButtons(t *testing.T) {
	Convey("Before kick-off both buttons are offered", t, func() {
		row := matchButtons("42", false)[0].(discordgo.ActionsRow)
		So(row.Components, ShouldHaveLength, 2)
		So(row.Components[0].(discordgo.Button).CustomID, ShouldEqual, "kickoff_42")
	})

	Convey("After kick-off only close remains", t, func() {
		row := matchButtons("42", true)[0].(discordgo.ActionsRow)
		So(row.Components, ShouldHaveLength, 1)
		So(row.Components[0].(discordgo.Button).CustomID, ShouldEqual, "close_42")
	})
}

func TestHelpers(t *testing.T) {
	Convey("Sides parse with self as the default", t, func() {
		So(parseSide("opponent"), ShouldEqual, team.Opponent)
		So(parseSide("self"), ShouldEqual, team.Self)
		So(parseSide(""), ShouldEqual, team.Self)
	})

	Convey("Every formation is offered as a choice", t, func() {
		So(formationChoices(), ShouldHaveLength, len(team.Formations))
	})

	Convey("Errors are explained to users", t, func() {
		So(userMessage(fmt.Errorf("wrapped: %w", session.ErrNoReport)), ShouldEqual, "Run `/analyze` first.")
		So(userMessage(errors.New("boom")), ShouldEqual, "boom")
	})

	Convey("The invoking user is found in guilds and DMs", t, func() {
		guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: "g"}},
		}}
		dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "d"},
		}}
		So(userID(guild), ShouldEqual, "g")
		So(userID(dm), ShouldEqual, "d")
	})
}

func newTestBot(sessions *session.Manager) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		cfg:      config.Defaults(),
		sessions: sessions,
		views:    make(map[string]*liveView),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func TestViewLifecycle(t *testing.T) {
	Convey("Given a bot showing a match for a user", t, func() {
		b := newTestBot(nil)
		old := newLiveView("42", team.DefaultSelf(), team.DefaultOpponent())
		b.setView("42", old)

		Convey("When the match ends", func() {
			b.releaseView(old)

			Convey("Then the view is forgotten", func() {
				So(b.view("42"), ShouldBeNil)
			})
		})

		Convey("When a newer match replaced it before the old one ended", func() {
			next := newLiveView("42", team.DefaultSelf(), team.DefaultOpponent())
			b.setView("42", next)
			b.releaseView(old)

			Convey("Then the newer view is kept", func() {
				So(b.view("42"), ShouldEqual, next)
			})
		})
	})

	Convey("Given a finished run being rendered", t, func() {
		b := newTestBot(nil)
		b.cfg.RenderIntervalMS = 1
		run := match.NewEngine(match.Options{TickInterval: time.Hour}).Load("0-0")
		run.Cancel()

		v := newLiveView("42", team.DefaultSelf(), team.DefaultOpponent())
		v.run = run
		b.setView("42", v)

		Convey("When render sees the run end", func() {
			b.render(nil, v)

			Convey("Then the view is forgotten", func() {
				So(b.view("42"), ShouldBeNil)
			})
		})
	})
}

func TestEvictIdle(t *testing.T) {
	Convey("Given a session left idle with a loaded match card", t, func() {
		var mu sync.Mutex
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		sessions := session.NewManager(&session.Deps{
			Backend:   storage.NewMemory(),
			KeyPrefix: "tactix",
			Match:     match.Options{TickInterval: time.Hour},
		}, session.WithClock(clock))
		b := newTestBot(sessions)
		defer b.cancel()

		sessions.Get(b.ctx, "42")
		b.setView("42", newLiveView("42", team.DefaultSelf(), team.DefaultOpponent()))

		mu.Lock()
		now = now.Add(2 * time.Hour)
		mu.Unlock()

		Convey("When the janitor runs", func() {
			go b.evictIdle(time.Millisecond, time.Hour)

			Convey("Then the session and its view are dropped", func() {
				So(eventually(func() bool { return sessions.Len() == 0 }), ShouldBeTrue)
				So(eventually(func() bool { return b.view("42") == nil }), ShouldBeTrue)
			})
		})
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
