package discord

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// ErrSessionClosed is returned by a closed session.
var ErrSessionClosed = errors.New("session closed")

// botSession adapts a discordgo session to Session.
type botSession struct {
	dg *discordgo.Session

	ready atomic.Bool

	mu       sync.Mutex
	closed   bool
	removers []func()
}

// Dial creates a discordgo session for a bot token. The session is not
// opened until Open is called.
func Dial(token string, obs Observer) (Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b := &botSession{dg: dg}
	b.removers = append(b.removers,
		dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			b.ready.Store(true)
			if obs != nil {
				name := ""
				if r.User != nil {
					name = r.User.Username
				}
				obs.OnReady(name, len(r.Guilds))
			}
		}),
		dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
			b.ready.Store(true)
			if obs != nil {
				obs.OnResumed()
			}
		}),
		dg.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
			b.ready.Store(false)
			if obs != nil {
				obs.OnDisconnect()
			}
		}),
	)
	return b, nil
}

func (b *botSession) Open() error {
	if b.Closed() {
		return ErrSessionClosed
	}
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

func (b *botSession) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	removers := b.removers
	b.removers = nil
	b.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	b.ready.Store(false)
	return b.dg.Close()
}

func (b *botSession) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *botSession) Ready() bool {
	return !b.Closed() && b.ready.Load()
}

// Guilds returns cached guilds with channels ordered by position.
func (b *botSession) Guilds() ([]Guild, error) {
	st := b.dg.State
	if st == nil {
		return nil, errors.New("state cache disabled")
	}
	st.RLock()
	defer st.RUnlock()

	out := make([]Guild, 0, len(st.Guilds))
	for _, g := range st.Guilds {
		channels := make([]*discordgo.Channel, len(g.Channels))
		copy(channels, g.Channels)
		sort.SliceStable(channels, func(i, j int) bool {
			return channels[i].Position < channels[j].Position
		})

		guild := Guild{ID: g.ID, Name: g.Name, Channels: make([]Channel, 0, len(channels))}
		for _, c := range channels {
			guild.Channels = append(guild.Channels, toChannel(c))
		}
		out = append(out, guild)
	}
	return out, nil
}

func (b *botSession) Channel(id string) (*Channel, error) {
	c, err := b.dg.State.Channel(id)
	if err != nil || c == nil {
		c, err = b.dg.Channel(id)
		if err != nil {
			return nil, err
		}
	}
	ch := toChannel(c)
	return &ch, nil
}

func (b *botSession) VoiceLinks() ([]VoiceLink, error) {
	if b.Closed() {
		return nil, ErrSessionClosed
	}
	b.dg.RLock()
	links := make([]VoiceLink, 0, len(b.dg.VoiceConnections))
	for _, vc := range b.dg.VoiceConnections {
		links = append(links, voiceConn{vc})
	}
	b.dg.RUnlock()

	sort.Slice(links, func(i, j int) bool { return links[i].GuildID() < links[j].GuildID() })
	return links, nil
}

func (b *botSession) JoinVoice(guildID, channelID string) (VoiceLink, error) {
	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return voiceConn{vc}, nil
}

func (b *botSession) Profile() (Profile, error) {
	u, err := b.dg.User("@me")
	if err != nil {
		return Profile{}, err
	}
	return profileOf(u), nil
}

// SetAvatar patches the current user with a data URI avatar.
func (b *botSession) SetAvatar(data []byte, contentType string) error {
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	body, err := b.dg.RequestWithBucketID(
		"PATCH",
		discordgo.EndpointUser("@me"),
		map[string]string{"avatar": uri},
		discordgo.EndpointUsers,
	)
	if err != nil {
		return err
	}

	var u discordgo.User
	if err := json.Unmarshal(body, &u); err == nil && b.dg.State != nil && b.dg.State.User != nil {
		b.dg.State.Lock()
		b.dg.State.User.Avatar = u.Avatar
		b.dg.State.Unlock()
	}
	return nil
}

func (b *botSession) SetNickname(guildID, nickname string) error {
	return b.dg.GuildMemberNickname(guildID, "@me", nickname)
}

func profileOf(u *discordgo.User) Profile {
	p := Profile{Username: u.Username}
	if u.Avatar != "" {
		p.AvatarURL = u.AvatarURL("")
	}
	return p
}

func toChannel(c *discordgo.Channel) Channel {
	kind := ChannelOther
	switch c.Type {
	case discordgo.ChannelTypeGuildVoice:
		kind = ChannelVoice
	case discordgo.ChannelTypeGuildStageVoice:
		kind = ChannelStage
	case discordgo.ChannelTypeGuildText:
		kind = ChannelText
	}
	return Channel{ID: c.ID, GuildID: c.GuildID, Name: c.Name, Kind: kind}
}

// voiceConn adapts a discordgo voice connection to VoiceLink.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (v voiceConn) GuildID() string {
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.GuildID
}

func (v voiceConn) ChannelID() string {
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.ChannelID
}

func (v voiceConn) Connected() bool {
	v.vc.RLock()
	defer v.vc.RUnlock()
	return v.vc.Ready
}

func (v voiceConn) Disconnect() error       { return v.vc.Disconnect() }
func (v voiceConn) Speaking(on bool) error  { return v.vc.Speaking(on) }
func (v voiceConn) OpusSend() chan<- []byte { return v.vc.OpusSend }
