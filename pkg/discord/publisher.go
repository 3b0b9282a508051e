package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/activityboard/pkg/board"
)

// embedColor is the accent used for every leaderboard embed.
const embedColor = 0xFFB6C1

// messenger is the slice of discordgo.Session the publisher uses.
type messenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// Publisher posts and edits leaderboard embeds. It satisfies
// board.Publisher, translating Discord REST errors into the reconciler's
// sentinels.
type Publisher struct {
	session messenger
	now     func() time.Time
}

// NewPublisher builds a Publisher over a connected session.
func NewPublisher(s *discordgo.Session) *Publisher {
	return &Publisher{session: s, now: time.Now}
}

func (p *Publisher) Send(ctx context.Context, channelID string, content board.Content) (string, error) {
	embed := p.buildEmbed(content)
	msg, err := p.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", translateRESTError(err)
	}
	return msg.ID, nil
}

func (p *Publisher) Edit(ctx context.Context, channelID, messageID string, content board.Content) error {
	embed := p.buildEmbed(content)
	if _, err := p.session.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx)); err != nil {
		return translateRESTError(err)
	}
	return nil
}

func (p *Publisher) Fetch(ctx context.Context, channelID, messageID string) error {
	if _, err := p.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return translateRESTError(err)
	}
	return nil
}

func (p *Publisher) Delete(ctx context.Context, channelID, messageID string) error {
	if err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return translateRESTError(err)
	}
	return nil
}

// buildEmbed dresses rendered leaderboard content as a Discord embed with
// the guild's name and icon in the author line.
func (p *Publisher) buildEmbed(content board.Content) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       content.Title,
		Description: content.Body,
		Color:       embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: board.UpdatedFooter(p.now()),
		},
	}
	if g, err := p.session.Guild(content.GuildID); err == nil && g != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    g.Name,
			IconURL: g.IconURL("128"),
		}
	}
	return embed
}

// translateRESTError maps Discord error codes onto the reconciler's
// sentinels so it can tell a deleted message from a transient failure.
func translateRESTError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return err
	}
	switch restErr.Message.Code {
	case discordgo.ErrCodeUnknownMessage:
		return fmt.Errorf("%w: %s", board.ErrMessageNotFound, restErr.Message.Message)
	case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeMissingAccess:
		return fmt.Errorf("%w: %s", board.ErrChannelNotFound, restErr.Message.Message)
	}
	return err
}
