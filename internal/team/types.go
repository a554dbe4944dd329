// Package team holds the persisted self/opponent team records and the
// reconciliation of screenshot scans into them.
package team

import (
	"fmt"
	"strings"
)

// Formation is a named Football Manager shape.
type Formation string

// Formations lists every shape the assistant offers, in menu order.
var Formations = []Formation{
	"4-3-3 A", "4-3-3 B",
	"4-4-2 A", "4-4-2 B",
	"3-4-3 A", "3-4-3 B",
	"5-3-2", "5-2-3",
	"4-2-3-1", "4-5-1",
	"6-3-1",
}

// IsKnown reports whether f is one of Formations.
func (f Formation) IsKnown() bool {
	for _, k := range Formations {
		if k == f {
			return true
		}
	}
	return false
}

// Outcome is a single recent match result.
type Outcome string

const (
	Win  Outcome = "W"
	Draw Outcome = "D"
	Loss Outcome = "L"
)

// Valid reports whether o is W, D or L.
func (o Outcome) Valid() bool {
	return o == Win || o == Draw || o == Loss
}

// ParseForm parses "W-D-L", "WDL" or "w d l" into outcomes.
func ParseForm(s string) ([]Outcome, error) {
	var form []Outcome
	for _, r := range strings.ToUpper(s) {
		switch r {
		case '-', ' ', ',':
			continue
		}
		o := Outcome(string(r))
		if !o.Valid() {
			return nil, fmt.Errorf("invalid result %q", string(r))
		}
		form = append(form, o)
	}
	if len(form) != FormLength {
		return nil, fmt.Errorf("need %d results, got %d", FormLength, len(form))
	}
	return form, nil
}

// FormString renders form as "W-D-L".
func FormString(form []Outcome) string {
	parts := make([]string, len(form))
	for i, o := range form {
		parts[i] = string(o)
	}
	return strings.Join(parts, "-")
}

// Venue is where the team plays.
type Venue string

const (
	Home Venue = "Home"
	Away Venue = "Away"
)

// PlayerRef names a key player.
type PlayerRef struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Rating   int    `json:"rating,omitempty"`
}

const (
	MinRating  = 1
	MaxRating  = 150
	FormLength = 3
)

// Record is one side's team data as entered or scanned by the user.
type Record struct {
	Name          string      `json:"name"`
	Formation     Formation   `json:"formation"`
	AverageRating int         `json:"averageRating"`
	RecentForm    []Outcome   `json:"recentForm"`
	Venue         Venue       `json:"homeOrAway"`
	KeyPlayers    []PlayerRef `json:"keyPlayers,omitempty"`
}

// Validate checks the record against the field constraints.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is empty")
	}
	if r.Formation == "" {
		return fmt.Errorf("formation is empty")
	}
	if r.AverageRating < MinRating || r.AverageRating > MaxRating {
		return fmt.Errorf("average rating %d out of range [%d,%d]", r.AverageRating, MinRating, MaxRating)
	}
	if len(r.RecentForm) != FormLength {
		return fmt.Errorf("recent form has %d results, want %d", len(r.RecentForm), FormLength)
	}
	for _, o := range r.RecentForm {
		if !o.Valid() {
			return fmt.Errorf("invalid result %q in recent form", o)
		}
	}
	if r.Venue != Home && r.Venue != Away {
		return fmt.Errorf("invalid venue %q", r.Venue)
	}
	return nil
}

// clone returns a copy that shares no slices with r.
func (r Record) clone() Record {
	c := r
	c.RecentForm = append([]Outcome(nil), r.RecentForm...)
	if r.KeyPlayers != nil {
		c.KeyPlayers = append([]PlayerRef(nil), r.KeyPlayers...)
	}
	return c
}

// DefaultSelf is the record used when nothing is stored for the user's team.
func DefaultSelf() Record {
	return Record{
		Name:          "My Team",
		Formation:     "4-3-3 A",
		AverageRating: 85,
		RecentForm:    []Outcome{Win, Win, Win},
		Venue:         Home,
	}
}

// DefaultOpponent is the record used when nothing is stored for the opponent.
func DefaultOpponent() Record {
	return Record{
		Name:          "Opponent FC",
		Formation:     "4-4-2 B",
		AverageRating: 88,
		RecentForm:    []Outcome{Win, Draw, Win},
		Venue:         Home,
	}
}

// ScanResult is the partial record extracted from a screenshot. Nil or
// empty fields mean "not recognised".
type ScanResult struct {
	TeamName      *string
	Formation     *Formation
	AverageRating *int
	RecentForm    []Outcome
}

// Empty reports whether the scan recognised nothing.
func (s ScanResult) Empty() bool {
	return (s.TeamName == nil || *s.TeamName == "") &&
		(s.Formation == nil || *s.Formation == "") &&
		(s.AverageRating == nil || *s.AverageRating == 0) &&
		len(s.RecentForm) == 0
}
