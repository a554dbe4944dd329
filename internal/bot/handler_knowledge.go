package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tactix/internal/embeds"
)

// handleKnowledge handles the /kb subcommands.
func (b *Bot) handleKnowledge(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)
	sess := b.userSession(i)

	switch sub.Name {
	case "list":
		b.respond(s, i, embeds.KnowledgeList(sess.Knowledge().List()), true)

	case "remove":
		id := opts["id"].StringValue()
		ok, err := sess.RemoveInsight(b.ctx, id)
		switch {
		case err != nil:
			b.respond(s, i, embeds.Error(fmt.Sprintf("Could not remove: %v", err), ""), true)
		case !ok:
			b.respond(s, i, embeds.Warning(fmt.Sprintf("No document `%s`.", id), ""), true)
		default:
			b.respond(s, i, embeds.Success("Document forgotten.", ""), true)
		}

	case "add":
		att, err := attachment(i, opts["document"])
		if err != nil {
			b.respond(s, i, embeds.Error("Attach a document image.", ""), true)
			return
		}
		b.deferWith(s, i, fmt.Sprintf("Learning from **%s**...", att.Filename))

		image, mimeType, err := b.fetcher.Fetch(b.ctx, att)
		if err != nil {
			b.fail(s, i, err)
			return
		}
		in, err := sess.AddDocument(b.ctx, image, mimeType, att.Filename)
		if err != nil {
			b.fail(s, i, err)
			return
		}
		b.edit(s, i, embeds.Success(
			fmt.Sprintf("Learned **%d** rules and **%d** insights from **%s**.\nID: `%s`",
				len(in.TacticalRules), len(in.KeyInsights), in.Filename, in.ID),
			"📚 Added to knowledge base"))

	case "url":
		url := opts["url"].StringValue()
		b.deferWith(s, i, fmt.Sprintf("Reading %s ...", url))

		in, err := sess.AddWebPage(b.ctx, url)
		if err != nil {
			b.fail(s, i, err)
			return
		}
		b.edit(s, i, embeds.Success(
			fmt.Sprintf("Learned **%d** rules and **%d** insights from **%s**.\nID: `%s`",
				len(in.TacticalRules), len(in.KeyInsights), in.Filename, in.ID),
			"📚 Added to knowledge base"))
	}
}
