package session

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/activityboard/pkg/log"
)

// Test seams.
var (
	newSession  = func(token string) (*discordgo.Session, error) { return discordgo.New("Bot " + token) }
	openSession = func(s *discordgo.Session) error { return s.Open() }
)

// New creates a Discord session with the gateway intents the tracker
// needs and opens the connection.
func New(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}

	s, err := newSession(token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	// Guild members are needed so leaderboard candidates can be resolved;
	// voice states drive the session tracker.
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	log.DiscordLogger().Info("Connecting to Discord")
	if err := openSession(s); err != nil {
		return nil, fmt.Errorf("connect to discord: %w", err)
	}
	log.DiscordLogger().Info("Connected to Discord")

	return s, nil
}
