// Package ai provides the generative AI client and its value types for Tactix.
package ai

import (
	"math"
	"strings"

	"github.com/tactix/internal/team"
)

// TacticalSettings are the in-game tactic sliders.
type TacticalSettings struct {
	Style       string `json:"style"`
	Passing     string `json:"passing"`
	Pressing    string `json:"pressing"`
	Aggression  string `json:"aggression"`
	OffsideTrap bool   `json:"offsideTrap"`
	Marking     string `json:"marking"`
	Tempo       string `json:"tempo"`
	Focus       string `json:"focus"`
}

// LineTactics are the per-line instructions.
type LineTactics struct {
	Forwards    string `json:"forwards"`
	Midfielders string `json:"midfielders"`
	Defenders   string `json:"defenders"`
}

// AnalysisReport is the matchup analysis returned by the model.
type AnalysisReport struct {
	OpponentIntel struct {
		ThreatLevel float64 `json:"threatLevel"`
		KeyWeakness string  `json:"keyWeakness"`
		Analysis    string  `json:"analysis"`
	} `json:"opponentIntel"`
	TacticalBattlePlan struct {
		RecommendedFormation string           `json:"recommendedFormation"`
		WinProbability       float64          `json:"winProbability"`
		Settings             TacticalSettings `json:"settings"`
		Rationale            string           `json:"rationale"`
		LineTactics          LineTactics      `json:"lineTactics"`
	} `json:"tacticalBattlePlan"`
	GameManagement struct {
		SubstitutionStrategy    string   `json:"substitutionStrategy"`
		FormationChangeTriggers string   `json:"formationChangeTriggers"`
		CriticalThreats         []string `json:"criticalThreats"`
	} `json:"gameManagement"`
	Prediction struct {
		MostLikelyScore string `json:"mostLikelyScore"`
		KeyToVictory    string `json:"keyToVictory"`
	} `json:"prediction"`
}

// TutorialStep is one settings instruction of a coaching guide.
type TutorialStep struct {
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
	Location    string `json:"location"`
	Reason      string `json:"reason"`
}

// TutorialGuide is the beginner walkthrough for applying a report.
type TutorialGuide struct {
	FormationSteps       []string       `json:"formationSteps"`
	FormationVisualCheck string         `json:"formationVisualCheck"`
	SettingsSteps        []TutorialStep `json:"settingsSteps"`
	SubstitutionPlan     []struct {
		Scenario string `json:"scenario"`
		Action   string `json:"action"`
	} `json:"substitutionPlan"`
	CommonMistakes []struct {
		Mistake string `json:"mistake"`
		Fix     string `json:"fix"`
	} `json:"commonMistakes"`
	CoachEncouragement string `json:"coachEncouragement"`
}

// Coherence scores a tactical setup, each dimension 0-100.
type Coherence struct {
	Structural  float64 `json:"structural"`
	Behavioural float64 `json:"behavioural"`
	Intensity   float64 `json:"intensity"`
	Defensive   float64 `json:"defensive"`
	Overall     float64 `json:"overall"`
	Feedback    string  `json:"feedback"`
}

// Prediction is the advisory outcome of a simulation.
type Prediction struct {
	WinChance  float64 `json:"winChance"`
	DrawChance float64 `json:"drawChance"`
	LossChance float64 `json:"lossChance"`
	Score      string  `json:"score"`
}

// Normalized returns win/draw/loss rescaled to sum to 100. A zero or
// negative total yields zeros.
func (p Prediction) Normalized() (win, draw, loss float64) {
	w, d, l := math.Max(p.WinChance, 0), math.Max(p.DrawChance, 0), math.Max(p.LossChance, 0)
	total := w + d + l
	if total <= 0 {
		return 0, 0, 0
	}
	return w * 100 / total, d * 100 / total, l * 100 / total
}

// Scenario is an alternative setup evaluated by the simulation.
type Scenario struct {
	Name      string  `json:"name"`
	WinChance float64 `json:"winChance"`
	Coherence float64 `json:"coherence"`
	Impact    string  `json:"impact"`
}

// SimulationResult is the simulated match outcome.
type SimulationResult struct {
	Coherence        Coherence `json:"coherence"`
	StrengthAnalysis struct {
		MyPower         float64 `json:"myPower"`
		OpponentPower   float64 `json:"opponentPower"`
		Ratio           float64 `json:"ratio"`
		ContextModifier string  `json:"contextModifier"`
	} `json:"strengthAnalysis"`
	Prediction Prediction `json:"prediction"`
	Scenarios  []Scenario `json:"scenarios"`
}

// DocumentResult is what the model extracted from a document.
type DocumentResult struct {
	Type          string   `json:"type"`
	KeyInsights   []string `json:"keyInsights"`
	TacticalRules []string `json:"tacticalRules"`
}

// scanWire is the raw vision output. Every field may be null.
type scanWire struct {
	TeamName      *string  `json:"teamName"`
	Formation     *string  `json:"formation"`
	AverageRating *float64 `json:"averageRating"`
	RecentForm    []string `json:"recentForm"`
}

// toScan converts the vision output into a partial team record. Ratings
// are rounded and clamped to the valid range, form is kept only when it
// yields at least three valid results and then truncated to the first three.
func (w scanWire) toScan() team.ScanResult {
	var s team.ScanResult

	if w.TeamName != nil {
		if name := strings.TrimSpace(*w.TeamName); name != "" {
			s.TeamName = &name
		}
	}
	if w.Formation != nil {
		if f := normalizeFormation(*w.Formation); f != "" {
			s.Formation = &f
		}
	}
	if w.AverageRating != nil && *w.AverageRating > 0 {
		r := int(math.Round(*w.AverageRating))
		r = min(max(r, team.MinRating), team.MaxRating)
		s.AverageRating = &r
	}

	var form []team.Outcome
	for _, v := range w.RecentForm {
		o := team.Outcome(strings.ToUpper(strings.TrimSpace(v)))
		if o.Valid() {
			form = append(form, o)
		}
	}
	if len(form) >= team.FormLength {
		s.RecentForm = form[:team.FormLength]
	}

	return s
}

// normalizeFormation maps "433A", "4-3-3a" or "4 3 3 A" to "4-3-3 A".
// Unrecognised shapes are returned trimmed.
func normalizeFormation(raw string) team.Formation {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var digits, suffix strings.Builder
	for _, r := range strings.ToUpper(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == 'A' || r == 'B':
			suffix.WriteRune(r)
		}
	}

	d := digits.String()
	if d == "" {
		return team.Formation(raw)
	}
	shape := strings.Join(strings.Split(d, ""), "-")
	if suffix.Len() == 1 {
		shape += " " + suffix.String()
	}

	if f := team.Formation(shape); f.IsKnown() {
		return f
	}
	return team.Formation(raw)
}

// ChatMessage represents a message in the chat completion request. Content
// is either a string or a list of content parts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline image as a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest represents the request to the AI API.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	MaxTokens      int             `json:"max_tokens"`
	TopP           float64         `json:"top_p"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat specifies the format for AI response.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents the response from the AI API.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
