package gateway

import (
	"github.com/bwmarrin/discordgo"

	"github.com/small-frappuccino/activityboard/pkg/activity"
	"github.com/small-frappuccino/activityboard/pkg/log"
)

// statusText is the presence shown once the gateway connection is ready.
const statusText = "ur daily distraction"

// Sink consumes normalized activity events.
type Sink interface {
	Handle(ev activity.Event)
}

// Wiring attaches the gateway handlers that translate raw Discord events
// into activity events for the recorder.
type Wiring struct {
	sink Sink
}

// Attach registers the message, voice and ready handlers on the session.
func Attach(s *discordgo.Session, sink Sink) *Wiring {
	w := &Wiring{sink: sink}
	s.AddHandler(w.onReady)
	s.AddHandler(w.onMessageCreate)
	s.AddHandler(w.onVoiceStateUpdate)
	return w
}

func (w *Wiring) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	if err := s.UpdateGameStatus(0, statusText); err != nil {
		log.DiscordLogger().Warn("Could not set presence", "err", err)
	}
	log.DiscordLogger().Info("Gateway ready", "status", statusText)
}

func (w *Wiring) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	w.sink.Handle(activity.MessageCreated{
		AuthorID:    m.Author.ID,
		GuildID:     m.GuildID,
		IsAutomated: m.Author.Bot,
	})
}

func (w *Wiring) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	hadBefore := vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID != ""
	automated := vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot

	w.sink.Handle(activity.VoiceStateChanged{
		UserID:           vs.UserID,
		GuildID:          vs.GuildID,
		IsAutomated:      automated,
		HadChannelBefore: hadBefore,
		HasChannelAfter:  vs.ChannelID != "",
	})
}
