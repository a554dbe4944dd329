// Package bot provides the Discord front end for Tactix.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tactix/internal/config"
	"github.com/tactix/internal/embeds"
	"github.com/tactix/internal/session"
	"github.com/tactix/pkg/logger"
)

// Bot represents the Discord bot.
type Bot struct {
	session  *discordgo.Session
	cfg      *config.Config
	sessions *session.Manager
	fetcher  *attachmentFetcher

	views   map[string]*liveView // userID -> current match view
	viewsMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	commands []*discordgo.ApplicationCommand
}

// New creates a new Bot instance.
func New(cfg *config.Config, sessions *session.Manager) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		session:  dg,
		cfg:      cfg,
		sessions: sessions,
		fetcher:  newAttachmentFetcher(),
		views:    make(map[string]*liveView),
		ctx:      ctx,
		cancel:   cancel,
	}

	dg.AddHandler(bot.onReady)
	dg.AddHandler(bot.onInteractionCreate)
	dg.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// Start connects to Discord and registers the slash commands.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	logger.Log.Info("Connected to Discord")

	if err := b.registerCommands(); err != nil {
		logger.Log.Warnf("Register commands failed: %v", err)
	}

	if idle := b.cfg.SessionIdle(); idle > 0 {
		go b.evictIdle(time.Minute, idle)
	}
	return nil
}

// evictIdle closes sessions unused for idle, checking every interval,
// until the bot stops.
func (b *Bot) evictIdle(interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			evicted := b.sessions.EvictIdle(idle)
			for _, uid := range evicted {
				b.dropView(uid)
			}
			if len(evicted) > 0 {
				logger.Log.Infof("Closed %d idle sessions", len(evicted))
			}
		}
	}
}

// Stop cancels running matches, closes every session and disconnects.
func (b *Bot) Stop() error {
	b.cancel()
	if err := b.sessions.CloseAll(); err != nil {
		logger.Log.Warnf("Closing sessions: %v", err)
	}
	return b.session.Close()
}

// Ready reports an error until the gateway handshake completed.
func (b *Bot) Ready() error {
	if !b.session.DataReady {
		return errors.New("discord gateway not ready")
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	logger.Log.Infof("Bot ready: %s", event.User.Username)
}

var (
	sideChoices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "My team", Value: "self"},
		{Name: "Opponent", Value: "opponent"},
	}
	venueChoices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Home", Value: "Home"},
		{Name: "Away", Value: "Away"},
	}
)

func sideOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "side",
		Description: "Which team",
		Required:    required,
		Choices:     sideChoices,
	}
}

// registerCommands registers all slash commands.
func (b *Bot) registerCommands() error {
	minRating, maxRating := 1.0, 150.0

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check the bot is alive",
		},
		{
			Name:        "team",
			Description: "Show or edit the matchup",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show both teams",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Edit one team",
					Options: []*discordgo.ApplicationCommandOption{
						sideOption(true),
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Team name"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "formation", Description: "Formation (e.g. 4-3-3 A)", Choices: formationChoices()},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "rating", Description: "Average rating", MinValue: &minRating, MaxValue: maxRating},
						{Type: discordgo.ApplicationCommandOptionString, Name: "form", Description: "Last three results (e.g. W-D-L)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "venue", Description: "Home or away", Choices: venueChoices},
					},
				},
			},
		},
		{
			Name:        "scan",
			Description: "Read a team screenshot",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionAttachment, Name: "image", Description: "Screenshot of the squad screen", Required: true},
				sideOption(true),
			},
		},
		{
			Name:        "analyze",
			Description: "Build a battle plan for the matchup",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "notes", Description: "Anything the analyst should know"},
			},
		},
		{
			Name:        "coach",
			Description: "Step by step guide for applying the battle plan",
		},
		{
			Name:        "simulate",
			Description: "Simulate the match with the battle plan",
		},
		{
			Name:        "kb",
			Description: "Manage the tactical knowledge base",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Learn from a document image",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionAttachment, Name: "document", Description: "Tactical chart or guide", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "url",
					Description: "Learn from a web article",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Article address", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List learned documents",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Forget a document",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Document ID from /kb list", Required: true},
					},
				},
			},
		},
		{
			Name:        "voice",
			Description: "Toggle the voice assistant, or ask it something",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Question for the assistant"},
			},
		},
		{
			Name:        "language",
			Description: "Answer language",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "language",
					Description: "Language",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "English", Value: "en"},
						{Name: "Türkçe", Value: "tr"},
					},
				},
			},
		},
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commands)
	if err != nil {
		return err
	}

	b.commands = registered
	logger.Log.Infof("Registered %d commands", len(registered))
	return nil
}

// onInteractionCreate routes slash commands and button clicks.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Errorf("Interaction handler panicked: %v", rec)
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "ping":
			b.handlePing(s, i)
		case "team":
			b.handleTeam(s, i)
		case "scan":
			b.handleScan(s, i)
		case "analyze":
			b.handleAnalyze(s, i)
		case "coach":
			b.handleCoach(s, i)
		case "simulate":
			b.handleSimulate(s, i)
		case "kb":
			b.handleKnowledge(s, i)
		case "voice":
			b.handleVoice(s, i)
		case "language":
			b.handleLanguage(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponentInteraction(s, i)
	}
}

// handlePing handles the /ping command.
func (b *Bot) handlePing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	latency := s.HeartbeatLatency().Milliseconds()
	b.respond(s, i, embeds.Success(
		fmt.Sprintf("🏓 Pong! Latency: **%dms**", latency),
		"✅ Bot is up",
	), false)
}

// handleComponentInteraction handles button clicks. Custom IDs are
// "<action>_<userID>".
func (b *Bot) handleComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, owner, ok := strings.Cut(i.MessageComponentData().CustomID, "_")
	if !ok {
		return
	}
	if owner != userID(i) {
		b.respond(s, i, embeds.Warning("Only the manager who started this match can control it.", ""), true)
		return
	}

	switch action {
	case actionKickoff:
		b.handleKickoff(s, i)
	case actionClose:
		b.handleCloseMatch(s, i)
	}
}

// onMessageCreate forwards replies to the bot's messages to the voice
// assistant when it is connected.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.MessageReference == nil {
		return
	}

	refMsg, err := s.ChannelMessage(m.ChannelID, m.MessageReference.MessageID)
	if err != nil || refMsg.Author == nil || refMsg.Author.ID != s.State.User.ID {
		return
	}

	question := strings.TrimSpace(m.Content)
	if question == "" {
		return
	}

	sess := b.sessions.Get(b.ctx, m.Author.ID)
	if !sess.VoiceActive() {
		return
	}
	if err := sess.Ask(question); err != nil {
		logger.Log.Warnf("Voice ask failed for %s: %v", m.Author.ID, err)
		_, _ = s.ChannelMessageSendEmbedReply(m.ChannelID, embeds.Error("The voice assistant did not take the question. Try again.", ""), m.Reference())
		return
	}
	_ = s.MessageReactionAdd(m.ChannelID, m.ID, "🎙️")
}

// userID returns the invoking user in guilds and DMs.
func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) userSession(i *discordgo.InteractionCreate) *session.Session {
	return b.sessions.Get(b.ctx, userID(i))
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		logger.Log.Warnf("Error responding to interaction: %v", err)
	}
}

// deferWith acknowledges a slow command with a working status.
func (b *Bot) deferWith(s *discordgo.Session, i *discordgo.InteractionCreate, what string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embeds.Working(what)},
		},
	}); err != nil {
		logger.Log.Warnf("Error responding to interaction: %v", err)
	}
}

func (b *Bot) edit(s *discordgo.Session, i *discordgo.InteractionCreate, list ...*discordgo.MessageEmbed) *discordgo.Message {
	msg, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &list,
	})
	if err != nil {
		logger.Log.Warnf("Error editing interaction response: %v", err)
	}
	return msg
}

// fail edits the deferred response into an error embed.
func (b *Bot) fail(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	logger.Log.Warnf("%s for %s: %v", i.ApplicationCommandData().Name, userID(i), err)
	b.edit(s, i, embeds.Error(userMessage(err), ""))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoReport):
		return "Run `/analyze` first."
	case errors.Is(err, session.ErrClosed):
		return "Your session was closed. Try again."
	default:
		return err.Error()
	}
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}
