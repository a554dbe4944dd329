package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/tactix/internal/embeds"
)

// handleVoice toggles the voice assistant, or forwards a question when a
// message is given and voice is connected.
func (b *Bot) handleVoice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := b.userSession(i)
	msg, hasMsg := optionMap(i.ApplicationCommandData().Options)["message"]

	if hasMsg && sess.VoiceActive() {
		if err := sess.Ask(msg.StringValue()); err != nil {
			b.respond(s, i, embeds.Error("The voice assistant did not take the question. Try again.", ""), true)
			return
		}
		b.respond(s, i, embeds.Info("🎙️ Asked. Listen for the answer.", ""), true)
		return
	}

	active, err := sess.ToggleVoice(b.ctx)
	if err != nil {
		b.respond(s, i, embeds.Error(userMessage(err), ""), true)
		return
	}

	if hasMsg && active {
		_ = sess.Ask(msg.StringValue())
	}
	b.respond(s, i, embeds.VoiceStatus(active), true)
}
