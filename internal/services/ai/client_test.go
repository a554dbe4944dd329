package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tactix/internal/config"
	"github.com/tactix/internal/services/ai"
	"github.com/tactix/internal/team"
)

// fakeModel answers every chat request with reply and records the request.
type fakeModel struct {
	mu       sync.Mutex
	reply    string
	status   int
	requests []map[string]any
	auth     string
}

func (f *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = r.Header.Get("Authorization")
	status, reply := f.status, f.reply
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "upstream exploded", status)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
	})
}

func (f *fakeModel) lastUserContent() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.requests[len(f.requests)-1]["messages"].([]any)
	return msgs[1].(map[string]any)["content"]
}

func newClient(url, key string) *ai.Client {
	cfg := config.Defaults()
	cfg.AIAPIURL = url
	cfg.AIAPIKey = key
	cfg.AIRPM = 0
	return ai.NewClient(cfg)
}

func TestAnalyzeMatchup(t *testing.T) {
	Convey("Given a model returning a fenced report", t, func() {
		fake := &fakeModel{reply: "```json\n" + `{
			"opponentIntel": {"threatLevel": 7, "keyWeakness": "slow full backs", "analysis": "x"},
			"tacticalBattlePlan": {"recommendedFormation": "4-3-3 A", "winProbability": 62,
				"settings": {"style": "Wing Play", "offsideTrap": true},
				"lineTactics": {"forwards": "Attack only"}},
			"gameManagement": {"criticalThreats": ["their #9"]},
			"prediction": {"mostLikelyScore": "2-1", "keyToVictory": "width"}
		}` + "\n```"}
		srv := httptest.NewServer(fake)
		defer srv.Close()
		client := newClient(srv.URL, "sk-test")

		Convey("When analysing a matchup", func() {
			report, err := client.AnalyzeMatchup(context.Background(), team.DefaultSelf(), team.DefaultOpponent(),
				"they park the bus", []string{"--- FROM DOC: a.png (Guide) ---", "Press high"}, "tr")

			Convey("Then the report is decoded", func() {
				So(err, ShouldBeNil)
				So(report.TacticalBattlePlan.RecommendedFormation, ShouldEqual, "4-3-3 A")
				So(report.TacticalBattlePlan.Settings.OffsideTrap, ShouldBeTrue)
				So(report.Prediction.MostLikelyScore, ShouldEqual, "2-1")
				So(report.GameManagement.CriticalThreats, ShouldResemble, []string{"their #9"})
			})

			Convey("Then the prompt carries teams, notes, knowledge and language", func() {
				prompt := fake.lastUserContent().(string)
				So(prompt, ShouldContainSubstring, "My Team")
				So(prompt, ShouldContainSubstring, "Opponent FC")
				So(prompt, ShouldContainSubstring, "W-D-W")
				So(prompt, ShouldContainSubstring, "they park the bus")
				So(prompt, ShouldContainSubstring, "Press high")
				So(prompt, ShouldContainSubstring, "TURKISH")
				So(fake.auth, ShouldEqual, "Bearer sk-test")
			})
		})
	})
}

func TestScanScreenshot(t *testing.T) {
	Convey("Given a model that reads a full screenshot", t, func() {
		fake := &fakeModel{reply: `{"teamName":" Galatasaray ","formation":"433b","averageRating":97.6,"recentForm":["w","D","L","W"]}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		scan, err := newClient(srv.URL, "k").ScanScreenshot(context.Background(), []byte("\x89PNG\r\n\x1a\nfake"), "")

		Convey("Then fields are normalised", func() {
			So(err, ShouldBeNil)
			So(*scan.TeamName, ShouldEqual, "Galatasaray")
			So(*scan.Formation, ShouldEqual, team.Formation("4-3-3 B"))
			So(*scan.AverageRating, ShouldEqual, 98)
			So(scan.RecentForm, ShouldResemble, []team.Outcome{team.Win, team.Draw, team.Loss})
		})

		Convey("Then the image is sent inline", func() {
			parts := fake.lastUserContent().([]any)
			img := parts[0].(map[string]any)["image_url"].(map[string]any)["url"].(string)
			So(strings.HasPrefix(img, "data:image/png;base64,"), ShouldBeTrue)
		})
	})

	Convey("Given a model that recognised nothing", t, func() {
		fake := &fakeModel{reply: `{"teamName":null,"formation":null,"averageRating":null,"recentForm":null}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		scan, err := newClient(srv.URL, "k").ScanScreenshot(context.Background(), []byte("img"), "image/jpeg")

		Convey("Then the result is empty but not an error", func() {
			So(err, ShouldBeNil)
			So(scan.Empty(), ShouldBeTrue)
		})
	})

	Convey("Given a short or out of range scan", t, func() {
		fake := &fakeModel{reply: `{"averageRating":400,"recentForm":["W","L"]}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		scan, err := newClient(srv.URL, "k").ScanScreenshot(context.Background(), []byte("img"), "image/jpeg")

		Convey("Then the rating is clamped and partial form dropped", func() {
			So(err, ShouldBeNil)
			So(*scan.AverageRating, ShouldEqual, team.MaxRating)
			So(scan.RecentForm, ShouldBeNil)
		})
	})
}

func TestOtherOperations(t *testing.T) {
	Convey("Given a model returning a document result", t, func() {
		fake := &fakeModel{reply: `{"type":"Tactical Guide","keyInsights":["a"],"tacticalRules":["b"]}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()
		client := newClient(srv.URL, "k")

		Convey("Then documents and text are processed", func() {
			doc, err := client.ProcessDocument(context.Background(), []byte("img"), "image/png", "guide.png")
			So(err, ShouldBeNil)
			So(doc.Type, ShouldEqual, "Tactical Guide")

			doc, err = client.ProcessText(context.Background(), "Wing play beats 4-4-2 B", "https://example.test/guide")
			So(err, ShouldBeNil)
			So(doc.TacticalRules, ShouldResemble, []string{"b"})
			So(fake.lastUserContent().(string), ShouldContainSubstring, "Wing play beats 4-4-2 B")
		})
	})

	Convey("Given a model returning a simulation", t, func() {
		fake := &fakeModel{reply: `{"coherence":{"overall":81},"prediction":{"winChance":50,"drawChance":30,"lossChance":20,"score":"1-0"},"scenarios":[{"name":"Aggressive","winChance":55}]}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		sim, err := newClient(srv.URL, "k").RunSimulation(context.Background(), team.DefaultSelf(), team.DefaultOpponent(),
			ai.TacticalSettings{Style: "Counter Attack"}, ai.LineTactics{Defenders: "Stay back"}, "en")

		Convey("Then the result is decoded and tactics were sent", func() {
			So(err, ShouldBeNil)
			So(sim.Prediction.Score, ShouldEqual, "1-0")
			So(sim.Coherence.Overall, ShouldEqual, 81)
			So(len(sim.Scenarios), ShouldEqual, 1)
			So(fake.lastUserContent().(string), ShouldContainSubstring, "Counter Attack")
			So(fake.lastUserContent().(string), ShouldContainSubstring, "Stay back")
		})
	})

	Convey("Given a model returning a coaching guide", t, func() {
		fake := &fakeModel{reply: `{"formationSteps":["Open Lineup"],"settingsSteps":[{"title":"Style","location":"Tactics > Style"}],"coachEncouragement":"Go!"}`}
		srv := httptest.NewServer(fake)
		defer srv.Close()

		guide, err := newClient(srv.URL, "k").GenerateCoachingGuide(context.Background(), &ai.AnalysisReport{}, nil, "en")

		Convey("Then the guide is decoded", func() {
			So(err, ShouldBeNil)
			So(guide.FormationSteps, ShouldResemble, []string{"Open Lineup"})
			So(guide.SettingsSteps[0].Location, ShouldEqual, "Tactics > Style")
		})
	})
}

func TestFailures(t *testing.T) {
	Convey("Given no API key", t, func() {
		client := newClient("http://127.0.0.1:1", "")

		Convey("Then requests fail with ErrMissingAPIKey", func() {
			_, err := client.AnalyzeMatchup(context.Background(), team.DefaultSelf(), team.DefaultOpponent(), "", nil, "en")
			So(errors.Is(err, ai.ErrMissingAPIKey), ShouldBeTrue)
			_, err = client.ScanScreenshot(context.Background(), nil, "")
			So(errors.Is(err, ai.ErrMissingAPIKey), ShouldBeTrue)
		})
	})

	Convey("Given an upstream error", t, func() {
		srv := httptest.NewServer(&fakeModel{status: http.StatusServiceUnavailable})
		defer srv.Close()

		Convey("Then the error carries the status", func() {
			_, err := newClient(srv.URL, "k").RunSimulation(context.Background(), team.DefaultSelf(), team.DefaultOpponent(), ai.TacticalSettings{}, ai.LineTactics{}, "en")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "503")
		})
	})

	Convey("Given a reply that is not JSON", t, func() {
		srv := httptest.NewServer(&fakeModel{reply: "I cannot help with that"})
		defer srv.Close()

		Convey("Then decoding fails", func() {
			_, err := newClient(srv.URL, "k").ProcessText(context.Background(), "x", "y")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNormalized(t *testing.T) {
	Convey("Normalized rescales to 100 and tolerates zero", t, func() {
		w, d, l := ai.Prediction{WinChance: 60, DrawChance: 30, LossChance: 30}.Normalized()
		So(w, ShouldAlmostEqual, 50, 0.001)
		So(d+l, ShouldAlmostEqual, 50, 0.001)

		w, d, l = ai.Prediction{}.Normalized()
		So(w+d+l, ShouldEqual, 0)
	})
}
