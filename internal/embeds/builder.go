// Package embeds provides Discord embed builders for Tactix.
package embeds

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/tactix/internal/knowledge"
	"github.com/tactix/internal/match"
	"github.com/tactix/internal/services/ai"
	"github.com/tactix/internal/team"
)

// Colors for embeds
const (
	ColorWin     = 0x00FF00 // Green
	ColorLose    = 0xFF0000 // Red
	ColorInfo    = 0x3498DB // Blue
	ColorWarning = 0xFFFF00 // Yellow
	ColorPitch   = 0x1E8449 // Dark green
)

// Discord limits
const (
	maxFieldValue   = 1024
	maxDescription  = 4096
	barWidth        = 10
	knowledgeShown  = 10
	scenariosShown  = 5
	feedLinesInLive = 5
)

// Success creates a success embed.
func Success(message, title string) *discordgo.MessageEmbed {
	if title == "" {
		title = "✅ Done"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       ColorWin,
	}
}

// Error creates an error embed.
func Error(message, title string) *discordgo.MessageEmbed {
	if title == "" {
		title = "❌ Error"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       ColorLose,
	}
}

// Warning creates a warning embed.
func Warning(message, title string) *discordgo.MessageEmbed {
	if title == "" {
		title = "⚠️ Warning"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       ColorWarning,
	}
}

// Info creates an info embed.
func Info(message, title string) *discordgo.MessageEmbed {
	if title == "" {
		title = "ℹ️ Info"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       ColorInfo,
	}
}

// Working creates a status embed shown while the AI is busy.
func Working(what string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⏳ Working...",
		Description: what,
		Color:       ColorInfo,
	}
}

// FormEmoji renders recent form as coloured squares.
func FormEmoji(form []team.Outcome) string {
	var b strings.Builder
	for _, o := range form {
		switch o {
		case team.Win:
			b.WriteString("🟩")
		case team.Draw:
			b.WriteString("🟨")
		case team.Loss:
			b.WriteString("🟥")
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// Bar renders value out of 100 as a fixed width bar.
func Bar(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	filled := int(value/100*barWidth + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return &discordgo.MessageEmbedField{
		Name:   name,
		Value:  truncate(value, maxFieldValue),
		Inline: inline,
	}
}

func recordValue(r team.Record) string {
	venue := "🏟️ Home"
	if r.Venue == team.Away {
		venue = "✈️ Away"
	}
	return fmt.Sprintf("**%s**\n📐 %s\n⭐ %d\n%s\n%s", r.Name, r.Formation, r.AverageRating, FormEmoji(r.RecentForm), venue)
}

// Teams shows both records side by side.
func Teams(my, opp team.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "⚽ Matchup",
		Color: ColorPitch,
		Fields: []*discordgo.MessageEmbedField{
			field("🔵 My team", recordValue(my), true),
			field("🔴 Opponent", recordValue(opp), true),
		},
	}
}

// Scanned shows the record after a screenshot was merged in.
func Scanned(side team.Side, r team.Record, scan team.ScanResult) *discordgo.MessageEmbed {
	var found []string
	if scan.TeamName != nil && *scan.TeamName != "" {
		found = append(found, "name")
	}
	if scan.Formation != nil && *scan.Formation != "" {
		found = append(found, "formation")
	}
	if scan.AverageRating != nil && *scan.AverageRating > 0 {
		found = append(found, "rating")
	}
	if len(scan.RecentForm) > 0 {
		found = append(found, "form")
	}

	desc := "Nothing recognised, record unchanged."
	if len(found) > 0 {
		desc = "Recognised: " + strings.Join(found, ", ")
	}

	title := "📸 Scanned my team"
	if side == team.Opponent {
		title = "📸 Scanned opponent"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       ColorInfo,
		Fields:      []*discordgo.MessageEmbedField{field("Record", recordValue(r), false)},
	}
}

// Report renders an analysis report.
func Report(r *ai.AnalysisReport) *discordgo.MessageEmbed {
	plan := r.TacticalBattlePlan
	s := plan.Settings

	settings := fmt.Sprintf("Style: **%s**\nPassing: %s\nPressing: %s\nAggression: %s\nOffside trap: %v\nMarking: %s\nTempo: %s\nFocus: %s",
		s.Style, s.Passing, s.Pressing, s.Aggression, s.OffsideTrap, s.Marking, s.Tempo, s.Focus)
	lines := fmt.Sprintf("⚔️ %s\n🎯 %s\n🛡️ %s", plan.LineTactics.Forwards, plan.LineTactics.Midfielders, plan.LineTactics.Defenders)

	color := ColorWin
	if r.OpponentIntel.ThreatLevel >= 7 {
		color = ColorLose
	} else if r.OpponentIntel.ThreatLevel >= 4 {
		color = ColorWarning
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📋 Battle plan: %s", plan.RecommendedFormation),
		Description: truncate(plan.Rationale, maxDescription),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			field("🕵️ Opponent", fmt.Sprintf("Threat %.0f/10\nWeakness: %s\n%s",
				r.OpponentIntel.ThreatLevel, r.OpponentIntel.KeyWeakness, r.OpponentIntel.Analysis), false),
			field("🎚️ Settings", settings, true),
			field("📏 Lines", lines, true),
			field("🔄 Substitutions", r.GameManagement.SubstitutionStrategy, false),
			field("🔀 Formation triggers", r.GameManagement.FormationChangeTriggers, false),
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Win probability %.0f%% | Likely score %s", plan.WinProbability, r.Prediction.MostLikelyScore),
		},
	}

	if len(r.GameManagement.CriticalThreats) > 0 {
		embed.Fields = append(embed.Fields, field("🚨 Threats", "• "+strings.Join(r.GameManagement.CriticalThreats, "\n• "), false))
	}
	if r.Prediction.KeyToVictory != "" {
		embed.Fields = append(embed.Fields, field("🔑 Key to victory", r.Prediction.KeyToVictory, false))
	}
	return embed
}

// Tutorial renders a coaching guide.
func Tutorial(g *ai.TutorialGuide) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎓 Coaching guide",
		Description: truncate(g.CoachEncouragement, maxDescription),
		Color:       ColorInfo,
	}

	if len(g.FormationSteps) > 0 {
		var b strings.Builder
		for i, step := range g.FormationSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		if g.FormationVisualCheck != "" {
			fmt.Fprintf(&b, "👀 %s", g.FormationVisualCheck)
		}
		embed.Fields = append(embed.Fields, field("📐 Formation", b.String(), false))
	}

	for _, step := range g.SettingsSteps {
		embed.Fields = append(embed.Fields, field("⚙️ "+step.Title,
			fmt.Sprintf("%s\n📍 %s\n_%s_", step.Instruction, step.Location, step.Reason), false))
	}

	if len(g.SubstitutionPlan) > 0 {
		var b strings.Builder
		for _, p := range g.SubstitutionPlan {
			fmt.Fprintf(&b, "• **%s**: %s\n", p.Scenario, p.Action)
		}
		embed.Fields = append(embed.Fields, field("🔄 Substitutions", b.String(), false))
	}

	if len(g.CommonMistakes) > 0 {
		var b strings.Builder
		for _, m := range g.CommonMistakes {
			fmt.Fprintf(&b, "❌ %s\n✅ %s\n", m.Mistake, m.Fix)
		}
		embed.Fields = append(embed.Fields, field("⚠️ Common mistakes", b.String(), false))
	}
	return embed
}

// KnowledgeList shows the stored insights, newest last.
func KnowledgeList(insights []knowledge.Insight) *discordgo.MessageEmbed {
	if len(insights) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "📚 Knowledge base",
			Description: "No documents yet.\nUse `/kb add` or `/kb url` to teach me.",
			Color:       ColorInfo,
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📚 Knowledge base (%d)", len(insights)),
		Color: ColorInfo,
	}
	start := max(len(insights)-knowledgeShown, 0)
	for _, in := range insights[start:] {
		embed.Fields = append(embed.Fields, field(
			fmt.Sprintf("%s (%s)", truncate(in.Filename, 200), in.DocumentType),
			fmt.Sprintf("`%s`\n%d rules | %d insights", in.ID, len(in.TacticalRules), len(in.KeyInsights)),
			false))
	}
	if start > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d older documents not shown", start)}
	}
	return embed
}

// Simulation renders the simulation analysis panel.
func Simulation(r *ai.SimulationResult) *discordgo.MessageEmbed {
	c := r.Coherence
	coherence := fmt.Sprintf("`%s` Structural %.0f\n`%s` Behavioural %.0f\n`%s` Intensity %.0f\n`%s` Defensive %.0f\n**Overall %.0f**",
		Bar(c.Structural), c.Structural, Bar(c.Behavioural), c.Behavioural,
		Bar(c.Intensity), c.Intensity, Bar(c.Defensive), c.Defensive, c.Overall)

	sa := r.StrengthAnalysis
	strength := fmt.Sprintf("Me %.0f vs %.0f them\nRatio **%.2f**\n%s", sa.MyPower, sa.OpponentPower, sa.Ratio, sa.ContextModifier)

	win, draw, loss := r.Prediction.Normalized()
	outcome := fmt.Sprintf("`%s` Win %.0f%%\n`%s` Draw %.0f%%\n`%s` Loss %.0f%%",
		Bar(win), win, Bar(draw), draw, Bar(loss), loss)

	color := ColorWarning
	if win > loss {
		color = ColorWin
	} else if loss > win {
		color = ColorLose
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🧪 Simulation",
		Description: truncate(c.Feedback, maxDescription),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			field("🧩 Coherence", coherence, false),
			field("💪 Strength", strength, true),
			field("📊 Outcome", outcome, true),
		},
	}

	if len(r.Scenarios) > 0 {
		var b strings.Builder
		for _, s := range r.Scenarios[:min(len(r.Scenarios), scenariosShown)] {
			fmt.Fprintf(&b, "%s **%s** %.0f%% (coherence %.0f)\n%s\n", Trend(s.WinChance, win), s.Name, s.WinChance, s.Coherence, s.Impact)
		}
		embed.Fields = append(embed.Fields, field("🔮 Scenarios", b.String(), false))
	}
	return embed
}

// Trend compares a scenario's win chance against the baseline.
func Trend(chance, baseline float64) string {
	switch {
	case chance > baseline:
		return "📈"
	case chance < baseline:
		return "📉"
	default:
		return "➖"
	}
}

func scoreline(snap match.Snapshot, my, opp string) string {
	return fmt.Sprintf("**%s %d - %d %s**", my, snap.HomeScore, snap.AwayScore, opp)
}

func kindEmoji(k match.Kind) string {
	switch k {
	case match.Goal:
		return "⚽"
	case match.Chance:
		return "🎯"
	case match.Card:
		return "🟨"
	default:
		return "▫️"
	}
}

// MatchIntro is the pre kick-off card.
func MatchIntro(my, opp team.Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🏟️ Match day",
		Description: fmt.Sprintf("**%s** (%s) vs **%s** (%s)\nPress **Kick Off** to start.", my.Name, my.Formation, opp.Name, opp.Formation),
		Color:       ColorPitch,
	}
}

// MatchLive renders a running or finished match.
func MatchLive(snap match.Snapshot, my, opp string) *discordgo.MessageEmbed {
	var feed strings.Builder
	for _, e := range snap.Recent[:min(len(snap.Recent), feedLinesInLive)] {
		fmt.Fprintf(&feed, "`%2d'` %s %s\n", e.Minute, kindEmoji(e.Kind), e.Text)
	}

	title := fmt.Sprintf("🔴 LIVE %d'", snap.Minute)
	color := ColorLose
	switch snap.State {
	case match.Intro:
		title = "🏟️ Kick-off soon"
		color = ColorPitch
	case match.Finished:
		title = "🏁 Full time"
		color = ColorInfo
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: scoreline(snap, my, opp),
		Color:       color,
		Fields:      []*discordgo.MessageEmbedField{field("📻 Commentary", feed.String(), false)},
	}
}

// VoiceStatus reports the voice assistant state.
func VoiceStatus(active bool) *discordgo.MessageEmbed {
	if active {
		return Success("Voice assistant connected. Ask away with `/voice message:`.", "🎙️ Voice on")
	}
	return Info("Voice assistant disconnected.", "🔇 Voice off")
}
