package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/heartflow/internal/config"
	"github.com/keshon/heartflow/internal/grouplist"
	"github.com/keshon/heartflow/internal/mind"
)

// Bot is the Discord transport: it feeds guild messages into the engagement
// engine and sends whatever the engine decides to say. It carries no
// decision logic of its own.
type Bot struct {
	dg     *discordgo.Session
	cfg    *config.Config
	engine *mind.Engine
	hb     *mind.Heartbeat
	allow  *grouplist.Checker
}

func NewBot(cfg *config.Config, allow *grouplist.Checker) *Bot {
	return &Bot{cfg: cfg, allow: allow}
}

// Attach wires the engine and heartbeat in after construction; the engine
// needs the bot as its Responder, so the two are built in two steps.
func (b *Bot) Attach(engine *mind.Engine, hb *mind.Heartbeat) {
	b.engine = engine
	b.hb = hb
}

// Run opens the session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] Shutdown signal received. Closing Discord session...")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

// onMessageCreate converts a guild message into an engine event. DMs and the
// bot's own messages are ignored; disallowed guilds are dropped silently.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}
	if b.allow != nil && !b.allow.Allowed(m.GuildID) {
		return
	}

	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if !mentioned && m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		mentioned = m.ReferencedMessage.Author.ID == s.State.User.ID
	}

	at, err := discordgo.SnowflakeTimestamp(m.ID)
	if err != nil {
		at = time.Now()
	}

	msg := mind.Message{
		GroupID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Content:   m.ContentWithMentionsReplaced(),
		Mentioned: mentioned,
		At:        at,
	}

	if b.hb != nil {
		b.hb.Ensure(m.GuildID)
	}
	// The engine sleeps for typing simulation and blocks on generation;
	// never do that on the gateway event goroutine.
	go b.engine.HandleMessage(context.Background(), msg)
}

// Send implements mind.Responder.
func (b *Bot) Send(channelID, content string) error {
	_, err := b.dg.ChannelMessageSend(channelID, content)
	return err
}

// Typing implements mind.Responder.
func (b *Bot) Typing(channelID string) error {
	return b.dg.ChannelTyping(channelID)
}
