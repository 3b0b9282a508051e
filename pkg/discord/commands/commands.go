package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/activityboard/pkg/board"
	"github.com/small-frappuccino/activityboard/pkg/log"
	"github.com/small-frappuccino/activityboard/pkg/storage"
)

// Settings persists the configured leaderboard channels.
type Settings interface {
	SetLeaderboardChannel(guildID, purpose, channelID string) error
}

// Boards is the slice of the reconciler the commands drive.
type Boards interface {
	Publish(ctx context.Context, guildID string) (board.GuildArtifacts, error)
	ForceUpdate(ctx context.Context, guildID string) (board.TickResult, error)
}

// ChannelChecker validates that a channel belongs to the guild.
type ChannelChecker interface {
	ChannelExists(s *discordgo.Session, guildID, channelID string) bool
}

// Handler registers and routes the admin slash commands.
type Handler struct {
	session  *discordgo.Session
	settings Settings
	boards   Boards
	checker  ChannelChecker

	remove func() // detaches the interaction handler
}

// NewHandler wires the command surface. Call Setup to register the
// commands with Discord.
func NewHandler(session *discordgo.Session, settings Settings, boards Boards, checker ChannelChecker) *Handler {
	return &Handler{
		session:  session,
		settings: settings,
		boards:   boards,
		checker:  checker,
	}
}

var adminOnly = int64(discordgo.PermissionAdministrator)

func definitions() []*discordgo.ApplicationCommand {
	channelOption := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionChannel,
			Name:        "channel",
			Description: desc,
			Required:    true,
			ChannelTypes: []discordgo.ChannelType{
				discordgo.ChannelTypeGuildText,
			},
		}}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "set_chat",
			Description:              "Choose the channel for the chat leaderboard",
			DefaultMemberPermissions: &adminOnly,
			Options:                  channelOption("Channel where the chat leaderboard will be posted"),
		},
		{
			Name:                     "set_vc",
			Description:              "Choose the channel for the voice leaderboard",
			DefaultMemberPermissions: &adminOnly,
			Options:                  channelOption("Channel where the voice leaderboard will be posted"),
		},
		{
			Name:                     "show_lbs",
			Description:              "Post both leaderboards in their configured channels",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "update",
			Description:              "Refresh the leaderboards right now",
			DefaultMemberPermissions: &adminOnly,
		},
	}
}

// Setup registers all commands with Discord in one bulk overwrite and
// attaches the interaction handler.
func (h *Handler) Setup() error {
	appID := h.session.State.User.ID
	if _, err := h.session.ApplicationCommandBulkOverwrite(appID, "", definitions()); err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}

	h.remove = h.session.AddHandler(h.onInteraction)
	log.ApplicationLogger().Info("Slash commands registered", "count", len(definitions()))
	return nil
}

// Shutdown detaches the interaction handler.
func (h *Handler) Shutdown() {
	if h.remove != nil {
		h.remove()
	}
}

func (h *Handler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	var reply string
	switch i.ApplicationCommandData().Name {
	case "set_chat":
		reply = h.setChannel(i, storage.PurposeMessageChannel, "Chat")
	case "set_vc":
		reply = h.setChannel(i, storage.PurposeVoiceChannel, "Voice")
	case "show_lbs":
		reply = h.showBoards(i)
	case "update":
		reply = h.updateBoards(i)
	default:
		return
	}

	h.respond(s, i, reply)
}

func (h *Handler) setChannel(i *discordgo.InteractionCreate, purpose, label string) string {
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		return "❌ Please choose a channel."
	}
	channelID, ok := opts[0].Value.(string)
	if !ok || channelID == "" {
		return "❌ Please choose a channel."
	}

	if !h.checker.ChannelExists(h.session, i.GuildID, channelID) {
		return "❌ One or both channels not found."
	}
	if err := h.settings.SetLeaderboardChannel(i.GuildID, purpose, channelID); err != nil {
		log.ApplicationLogger().Error("Could not save leaderboard channel",
			"guild", i.GuildID, "purpose", purpose, "err", err)
		return "❌ Could not save that channel. Try again."
	}
	return fmt.Sprintf("✅ %s leaderboard will be posted in <#%s>.", label, channelID)
}

func (h *Handler) showBoards(i *discordgo.InteractionCreate) string {
	_, err := h.boards.Publish(context.Background(), i.GuildID)
	switch {
	case err == nil:
		return "✅ Leaderboards posted and will auto-update."
	case errors.Is(err, board.ErrNotConfigured):
		return "❌ Please run `/set_chat` and `/set_vc` first."
	case errors.Is(err, board.ErrChannelNotFound):
		return "❌ One or both channels not found."
	default:
		log.ApplicationLogger().Error("Publish failed", "guild", i.GuildID, "err", err)
		return "❌ Could not post the leaderboards. Try again."
	}
}

func (h *Handler) updateBoards(i *discordgo.InteractionCreate) string {
	_, err := h.boards.ForceUpdate(context.Background(), i.GuildID)
	switch {
	case err == nil:
		return "✅ Leaderboards updated manually."
	case errors.Is(err, board.ErrNotPublished):
		return "❌ No leaderboard messages found for this server. Use `/show_lbs` first."
	default:
		log.ApplicationLogger().Error("Manual update failed", "guild", i.GuildID, "err", err)
		return "❌ Could not update the leaderboards. Try again."
	}
}

func (h *Handler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.ApplicationLogger().Error("Could not respond to interaction",
			"command", i.ApplicationCommandData().Name, "err", err)
	}
}
