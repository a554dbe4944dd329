package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tactix/internal/embeds"
	"github.com/tactix/internal/team"
)

func formationChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(team.Formations))
	for _, f := range team.Formations {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(f), Value: string(f)})
	}
	return choices
}

func parseSide(v string) team.Side {
	if v == "opponent" {
		return team.Opponent
	}
	return team.Self
}

// handleTeam handles /team show and /team set.
func (b *Bot) handleTeam(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	sess := b.userSession(i)

	if sub.Name == "show" {
		teams := sess.Teams()
		b.respond(s, i, embeds.Teams(teams.Get(team.Self), teams.Get(team.Opponent)), false)
		return
	}

	opts := optionMap(sub.Options)
	side := parseSide(opts["side"].StringValue())

	var form []team.Outcome
	if opt, ok := opts["form"]; ok {
		parsed, err := team.ParseForm(opt.StringValue())
		if err != nil {
			b.respond(s, i, embeds.Error(fmt.Sprintf("Invalid form: %v. Use something like `W-D-L`.", err), ""), true)
			return
		}
		form = parsed
	}

	r, err := sess.Teams().Update(b.ctx, side, func(r *team.Record) {
		if opt, ok := opts["name"]; ok {
			r.Name = opt.StringValue()
		}
		if opt, ok := opts["formation"]; ok {
			r.Formation = team.Formation(opt.StringValue())
		}
		if opt, ok := opts["rating"]; ok {
			r.AverageRating = int(opt.IntValue())
		}
		if form != nil {
			r.RecentForm = form
		}
		if opt, ok := opts["venue"]; ok {
			r.Venue = team.Venue(opt.StringValue())
		}
	})
	if err != nil {
		b.respond(s, i, embeds.Error(fmt.Sprintf("Team not saved: %v", err), ""), true)
		return
	}

	teams := sess.Teams()
	my, opp := r, teams.Get(team.Opponent)
	if side == team.Opponent {
		my, opp = teams.Get(team.Self), r
	}
	b.respond(s, i, embeds.Teams(my, opp), false)
}

// handleScan handles /scan.
func (b *Bot) handleScan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	side := parseSide(opts["side"].StringValue())

	att, err := attachment(i, opts["image"])
	if err != nil {
		b.respond(s, i, embeds.Error("Attach a screenshot of the squad screen.", ""), true)
		return
	}

	b.deferWith(s, i, fmt.Sprintf("Reading **%s**...", att.Filename))

	image, mimeType, err := b.fetcher.Fetch(b.ctx, att)
	if err != nil {
		b.fail(s, i, err)
		return
	}

	r, scan, err := b.userSession(i).Scan(b.ctx, side, image, mimeType)
	if err != nil {
		b.fail(s, i, err)
		return
	}
	b.edit(s, i, embeds.Scanned(side, r, scan))
}
