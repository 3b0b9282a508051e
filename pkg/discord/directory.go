package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/activityboard/pkg/rank"
)

// memberSource is the slice of discordgo.Session the directory uses.
type memberSource interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// stateSource is the gateway cache the directory consults before REST.
type stateSource interface {
	Member(guildID, userID string) (*discordgo.Member, error)
	Channel(channelID string) (*discordgo.Channel, error)
	Guild(guildID string) (*discordgo.Guild, error)
}

// Directory resolves guild membership through the gateway state cache,
// falling back to the REST API on a miss. Departed members surface as
// rank.ErrMemberNotFound so the ranking engine can drop them.
type Directory struct {
	rest  memberSource
	state stateSource
}

// NewDirectory builds a Directory over a connected session.
func NewDirectory(s *discordgo.Session) *Directory {
	return &Directory{rest: s, state: s.State}
}

// ResolveMember returns the member's mention and bot flag.
func (d *Directory) ResolveMember(guildID, userID string) (rank.Member, error) {
	if m, err := d.state.Member(guildID, userID); err == nil && m != nil && m.User != nil {
		return rank.Member{
			Mention:     m.User.Mention(),
			IsAutomated: m.User.Bot,
		}, nil
	}

	m, err := d.rest.GuildMember(guildID, userID)
	if err != nil {
		if isUnknownEntity(err) {
			return rank.Member{}, rank.ErrMemberNotFound
		}
		return rank.Member{}, fmt.Errorf("fetch member %s in guild %s: %w", userID, guildID, err)
	}
	if m == nil || m.User == nil {
		return rank.Member{}, rank.ErrMemberNotFound
	}
	return rank.Member{
		Mention:     m.User.Mention(),
		IsAutomated: m.User.Bot,
	}, nil
}

// GuildExists reports whether the bot is still in the guild. Gateway state
// tracks guild membership, so no REST call is needed.
func (d *Directory) GuildExists(guildID string) bool {
	g, err := d.state.Guild(guildID)
	return err == nil && g != nil
}

// ChannelExists reports whether a channel exists and belongs to the guild.
func (d *Directory) ChannelExists(s *discordgo.Session, guildID, channelID string) bool {
	if ch, err := d.state.Channel(channelID); err == nil && ch != nil {
		return ch.GuildID == guildID
	}
	ch, err := s.Channel(channelID)
	if err != nil || ch == nil {
		return false
	}
	return ch.GuildID == guildID
}

// isUnknownEntity reports whether a REST error means the user or member
// no longer exists.
func isUnknownEntity(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	switch restErr.Message.Code {
	case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
		return true
	}
	return false
}
