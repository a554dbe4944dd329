package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tactix/internal/embeds"
)

// handleAnalyze handles /analyze.
func (b *Bot) handleAnalyze(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var notes string
	if opt, ok := optionMap(i.ApplicationCommandData().Options)["notes"]; ok {
		notes = opt.StringValue()
	}

	sess := b.userSession(i)
	b.deferWith(s, i, "The analyst is studying the matchup...")

	report, err := sess.Analyze(b.ctx, notes)
	if err != nil {
		b.fail(s, i, err)
		return
	}
	b.dropView(sess.UserID())
	b.edit(s, i, embeds.Report(report))
}

// handleCoach handles /coach.
func (b *Bot) handleCoach(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := b.userSession(i)
	if sess.Report() == nil {
		b.respond(s, i, embeds.Warning("Run `/analyze` first.", ""), true)
		return
	}

	b.deferWith(s, i, "The coach is writing your guide...")

	guide, err := sess.Coach(b.ctx)
	if err != nil {
		b.fail(s, i, err)
		return
	}
	b.edit(s, i, embeds.Tutorial(guide))
}

// handleLanguage handles /language.
func (b *Bot) handleLanguage(s *discordgo.Session, i *discordgo.InteractionCreate) {
	lang := i.ApplicationCommandData().Options[0].StringValue()
	if err := b.userSession(i).SetLanguage(lang); err != nil {
		b.respond(s, i, embeds.Error(err.Error(), ""), true)
		return
	}
	b.respond(s, i, embeds.Success(fmt.Sprintf("Answers will be in **%s**.", lang), ""), true)
}
