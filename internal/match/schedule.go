// Package match plays back a predicted scoreline as a timed match with
// commentary and audio cues.
package match

import (
	"sort"
	"strconv"
	"strings"
)

// Side is the team a goal belongs to.
type Side int

const (
	Home Side = iota
	Away
)

func (s Side) String() string {
	if s == Away {
		return "away"
	}
	return "home"
}

const (
	// LastGoalMinute is the latest minute a scheduled goal can fall on.
	LastGoalMinute = 85
	// FullTime is the final minute of a run.
	FullTime = 90
	// MaxGoalsPerSide caps each side of a parsed score.
	MaxGoalsPerSide = 50
)

// GoalEvent is one scheduled goal.
type GoalEvent struct {
	Minute int
	Side   Side
}

// Rand is the randomness a run draws from. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Schedule draws a uniform minute in [1,85] for every goal, home goals
// first, and returns them ordered by minute. Equal minutes keep their
// draw order.
func Schedule(rng Rand, home, away int) []GoalEvent {
	home, away = max(home, 0), max(away, 0)

	goals := make([]GoalEvent, 0, home+away)
	for range home {
		goals = append(goals, GoalEvent{Minute: rng.IntN(LastGoalMinute) + 1, Side: Home})
	}
	for range away {
		goals = append(goals, GoalEvent{Minute: rng.IntN(LastGoalMinute) + 1, Side: Away})
	}

	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Minute < goals[j].Minute
	})
	return goals
}

// ParseScore reads a "H-A" scoreline. A component that is missing or not a
// number counts as zero, negatives become zero and each side is capped at
// MaxGoalsPerSide.
func ParseScore(s string) (home, away int) {
	parts := strings.Split(s, "-")
	home = parseGoals(parts, 0)
	away = parseGoals(parts, 1)
	return home, away
}

func parseGoals(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil || n < 0 {
		return 0
	}
	return min(n, MaxGoalsPerSide)
}
