package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/tactix/internal/embeds"
	"github.com/tactix/internal/match"
	"github.com/tactix/internal/services/ai"
	"github.com/tactix/internal/team"
	"github.com/tactix/pkg/logger"
)

const (
	actionKickoff = "kickoff"
	actionClose   = "close"
)

// liveView is the Discord message showing one match run.
type liveView struct {
	userID    string
	channelID string
	messageID string
	my, opp   string
	result    *ai.SimulationResult
	run       *match.Run

	// latest holds the newest undelivered snapshot.
	latest chan match.Snapshot
}

func newLiveView(userID string, my, opp team.Record) *liveView {
	return &liveView{
		userID: userID,
		my:     my.Name,
		opp:    opp.Name,
		latest: make(chan match.Snapshot, 1),
	}
}

// observe replaces any undelivered snapshot with snap. It never blocks.
func (v *liveView) observe(snap match.Snapshot) {
	for {
		select {
		case v.latest <- snap:
			return
		default:
		}
		select {
		case <-v.latest:
		default:
		}
	}
}

func matchButtons(userID string, started bool) []discordgo.MessageComponent {
	buttons := []discordgo.MessageComponent{}
	if !started {
		buttons = append(buttons, discordgo.Button{
			Label:    "⚽ Kick Off",
			Style:    discordgo.SuccessButton,
			CustomID: fmt.Sprintf("%s_%s", actionKickoff, userID),
		})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "Close",
		Style:    discordgo.SecondaryButton,
		CustomID: fmt.Sprintf("%s_%s", actionClose, userID),
	})
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (b *Bot) view(userID string) *liveView {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	return b.views[userID]
}

func (b *Bot) setView(userID string, v *liveView) {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	b.views[userID] = v
}

func (b *Bot) dropView(userID string) {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	delete(b.views, userID)
}

// releaseView forgets v unless a newer view replaced it.
func (b *Bot) releaseView(v *liveView) {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	if b.views[v.userID] == v {
		delete(b.views, v.userID)
	}
}

// handleSimulate handles /simulate: it runs the simulation and posts the
// pre-match card.
func (b *Bot) handleSimulate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := b.userSession(i)
	if sess.Report() == nil {
		b.respond(s, i, embeds.Warning("Run `/analyze` first.", ""), true)
		return
	}

	b.deferWith(s, i, "Simulating the match...")

	my, opp := sess.Teams().Get(team.Self), sess.Teams().Get(team.Opponent)
	v := newLiveView(sess.UserID(), my, opp)

	result, run, err := sess.Simulate(b.ctx, match.WithObserver(v.observe))
	if err != nil {
		b.fail(s, i, err)
		return
	}
	v.result = result
	v.run = run

	components := matchButtons(sess.UserID(), false)
	list := []*discordgo.MessageEmbed{embeds.Simulation(result), embeds.MatchIntro(my, opp)}
	msg, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &list,
		Components: &components,
	})
	if err != nil {
		logger.Log.Warnf("Error posting match card: %v", err)
		run.Cancel()
		return
	}
	v.channelID, v.messageID = msg.ChannelID, msg.ID
	b.setView(sess.UserID(), v)
}

// handleKickoff starts the loaded run and streams it into the message.
func (b *Bot) handleKickoff(s *discordgo.Session, i *discordgo.InteractionCreate) {
	uid := userID(i)
	v := b.view(uid)
	if v == nil || v.messageID != i.Message.ID {
		b.respond(s, i, embeds.Warning("This match is no longer loaded. Run `/simulate` again.", ""), true)
		return
	}

	if err := v.run.Kickoff(b.ctx); err != nil {
		b.respond(s, i, embeds.Warning("This match already started.", ""), true)
		return
	}

	components := matchButtons(uid, true)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embeds.MatchLive(v.run.Snapshot(), v.my, v.opp)},
			Components: components,
		},
	}); err != nil {
		logger.Log.Warnf("Error updating match card: %v", err)
	}

	go b.render(s, v)
}

// handleCloseMatch cancels the run and freezes the message.
func (b *Bot) handleCloseMatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	uid := userID(i)
	if v := b.view(uid); v != nil && v.messageID == i.Message.ID {
		v.run.Cancel()
		b.dropView(uid)
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     i.Message.Embeds,
			Components: []discordgo.MessageComponent{},
		},
	}); err != nil {
		logger.Log.Warnf("Error closing match card: %v", err)
	}
}

// render edits the match message with the newest snapshot, at most once per
// render interval, until the run ends. A finished run gets the full time
// card and the simulation panel. The view is forgotten once render returns.
func (b *Bot) render(s *discordgo.Session, v *liveView) {
	defer b.releaseView(v)
	limiter := rate.NewLimiter(rate.Every(b.cfg.RenderInterval()), 1)

	for {
		select {
		case snap := <-v.latest:
			if err := limiter.Wait(b.ctx); err != nil {
				return
			}
			if snap.State == match.Finished {
				b.finish(s, v, snap)
				return
			}
			b.editView(s, v, []*discordgo.MessageEmbed{embeds.MatchLive(snap, v.my, v.opp)}, nil)

		case <-v.run.Done():
			snap := v.run.Snapshot()
			if snap.State == match.Finished {
				b.finish(s, v, snap)
			}
			return
		}
	}
}

func (b *Bot) finish(s *discordgo.Session, v *liveView, snap match.Snapshot) {
	empty := []discordgo.MessageComponent{}
	b.editView(s, v, []*discordgo.MessageEmbed{embeds.MatchLive(snap, v.my, v.opp), embeds.Simulation(v.result)}, &empty)
}

func (b *Bot) editView(s *discordgo.Session, v *liveView, list []*discordgo.MessageEmbed, components *[]discordgo.MessageComponent) {
	edit := discordgo.NewMessageEdit(v.channelID, v.messageID).SetEmbeds(list)
	edit.Components = components
	if _, err := s.ChannelMessageEditComplex(edit); err != nil {
		logger.Log.Debugf("Match card edit failed: %v", err)
	}
}
