package activity

// Event is the closed set of activity projections consumed by the Recorder.
// Gateway adapters translate platform events into these variants so handlers
// can match exhaustively instead of probing payload shapes.
type Event interface {
	isEvent()
}

// MessageCreated is emitted when a user posts a text message in a guild.
type MessageCreated struct {
	AuthorID    string
	GuildID     string
	IsAutomated bool
}

// VoiceStateChanged is emitted when a user's voice channel membership
// changes. HadChannelBefore/HasChannelAfter describe whether the user was in
// any voice channel on each side of the transition; channel-to-channel moves
// have both true.
type VoiceStateChanged struct {
	UserID           string
	GuildID          string
	IsAutomated      bool
	HadChannelBefore bool
	HasChannelAfter  bool
}

func (MessageCreated) isEvent()    {}
func (VoiceStateChanged) isEvent() {}
