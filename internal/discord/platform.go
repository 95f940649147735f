package discord

// ChannelKind is the subset of Discord channel types the manager cares about.
type ChannelKind int

const (
	ChannelOther ChannelKind = iota
	ChannelText
	ChannelVoice
	ChannelStage
)

// Voice reports whether the bot can join a channel of this kind.
func (k ChannelKind) Voice() bool {
	return k == ChannelVoice || k == ChannelStage
}

// Channel is a guild channel as seen by the bot.
type Channel struct {
	ID      string
	GuildID string
	Name    string
	Kind    ChannelKind
}

// Guild is a guild the bot belongs to, with its channels in platform order.
type Guild struct {
	ID       string
	Name     string
	Channels []Channel
}

// Profile is the bot's global identity.
type Profile struct {
	Username  string
	AvatarURL string
}

// VoiceLink is a live voice connection owned by the platform session.
type VoiceLink interface {
	GuildID() string
	ChannelID() string
	Connected() bool
	Disconnect() error
	Speaking(bool) error
	OpusSend() chan<- []byte
}

// Session is the platform connection the manager drives.
type Session interface {
	Open() error
	Close() error
	Closed() bool
	Ready() bool

	Guilds() ([]Guild, error)
	Channel(id string) (*Channel, error)
	CanConnect(channelID string) (bool, error)
	CanChangeNickname(guildID string) (bool, error)

	VoiceLinks() ([]VoiceLink, error)
	JoinVoice(guildID, channelID string) (VoiceLink, error)

	Profile() (Profile, error)
	SetAvatar(data []byte, contentType string) error
	SetNickname(guildID, nickname string) error
}

// Observer is notified of session lifecycle events. Callbacks are
// registered when the session is dialed and removed when it is closed.
type Observer interface {
	OnReady(username string, guilds int)
	OnResumed()
	OnDisconnect()
}

// Dialer creates an unopened session for token.
type Dialer func(token string, obs Observer) (Session, error)
