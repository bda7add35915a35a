package ingest

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/vtuber/controlplane/internal/chatmsg"
)

// DiscordSource feeds a Pipeline from one bot token's message events
// across a set of guilds, using the same AddHandler + Open/Close session
// lifecycle a slash-command bot would, generalized to plain
// MessageCreate ingestion.
type DiscordSource struct {
	session  *discordgo.Session
	guildIDs map[string]bool // empty means accept every guild
}

// NewDiscordSource opens a single discordgo session scoped to guildIDs
// (empty accepts messages from any guild the bot is in). Intents are
// limited to guild messages; no voice or presence state is needed.
func NewDiscordSource(token string, guildIDs []string) (*DiscordSource, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("ingest: create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("ingest: open discord session: %w", err)
	}

	allowed := make(map[string]bool, len(guildIDs))
	for _, id := range guildIDs {
		allowed[id] = true
	}
	return &DiscordSource{session: session, guildIDs: allowed}, nil
}

// Listen registers the message handler and blocks until ctx is
// cancelled, at which point the handler is detached.
func (d *DiscordSource) Listen(ctx context.Context, handle func(chatmsg.ChatMessage)) error {
	remove := d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if len(d.guildIDs) > 0 && !d.guildIDs[m.GuildID] {
			return
		}
		handle(chatmsg.ChatMessage{
			PlatformTag: "discord",
			UserID:      m.Author.ID,
			Username:    m.Author.Username,
			Text:        m.Content,
			Timestamp:   m.Timestamp,
		})
	})
	defer remove()

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects the underlying discordgo session.
func (d *DiscordSource) Close() error {
	return d.session.Close()
}
