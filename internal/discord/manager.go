package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/voice"
	"github.com/Dombearx/VoiceBot/pkg/jobmgr"
)

const gatewayJob = "discord-gateway"

// MaxAvatarBytes is the largest avatar accepted by UpdateConfig.
const MaxAvatarBytes = 2 << 20

// Synthesizer produces audio for text in a given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
}

// AudioPlayer plays audio on a voice sink, one playback at a time.
type AudioPlayer interface {
	Play(sink voice.Sink, audio []byte) error
	Stop()
}

// Status is the bot's connection state. ChannelID is nil when the bot is
// not in a voice channel.
type Status struct {
	Connected bool    `json:"connected"`
	ChannelID *string `json:"channelId"`
	Error     string  `json:"error,omitempty"`
}

// VoiceChannel is a channel the bot may join.
type VoiceChannel struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// BotConfig is the result of a profile update.
type BotConfig struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// ConfigUpdate is a requested profile change.
type ConfigUpdate struct {
	Nickname          string `validate:"min=1,max=32"`
	Avatar            []byte `validate:"omitempty,max=2097152"`
	AvatarContentType string `validate:"omitempty,oneof=image/jpeg image/png"`
}

// Manager owns the single bot session and its voice link.
//
// Connect, Disconnect, UpdateConfig, PlayAudio and Shutdown run one at a
// time. Status and ListChannels do not wait for them.
type Manager struct {
	dial     Dialer
	tts      Synthesizer
	player   AudioPlayer
	jobs     *jobmgr.Manager
	validate *validator.Validate
	log      *zap.Logger

	mu           sync.Mutex
	session      Session
	initializing bool

	opMu sync.Mutex
}

// NewManager creates a Manager. Nothing is dialed until Initialize.
func NewManager(dial Dialer, tts Synthesizer, player AudioPlayer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		dial:     dial,
		tts:      tts,
		player:   player,
		validate: validator.New(),
		log:      logger,
	}
	m.jobs = jobmgr.NewManager(func(ev jobmgr.Event) {
		fields := []zap.Field{zap.String("job", ev.Name), zap.String("state", string(ev.State))}
		if ev.Err != nil {
			m.log.Error("Background job failed", append(fields, zap.Error(ev.Err))...)
			return
		}
		m.log.Info("Background job", fields...)
	})
	return m
}

// Initialize dials a session and opens it in the background. A second call
// while the first is still dialing fails with ErrAlreadyInitializing; a call
// while a session is open returns that session. A session whose gateway
// failed to open is replaced by a fresh dial.
func (m *Manager) Initialize(token string) (Session, error) {
	const op = "initialize"

	m.mu.Lock()
	if m.initializing {
		m.mu.Unlock()
		return nil, newError(KindAlreadyInitializing, op, nil)
	}
	if m.session != nil && !m.session.Closed() && !m.gatewayFailed() {
		s := m.session
		m.mu.Unlock()
		m.log.Info("Discord session already open")
		return s, nil
	}
	m.initializing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.initializing = false
		m.mu.Unlock()
	}()

	if token == "" {
		return nil, newError(KindInvalidConfig, op, errors.New("empty token"))
	}

	s, err := m.dial(token, sessionObserver{log: m.log})
	if err != nil {
		return nil, newError(KindPlatform, op, err)
	}

	if m.jobs.Running(gatewayJob) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.jobs.Stop(ctx, gatewayJob)
		cancel()
	}

	err = m.jobs.Start(gatewayJob, func(ctx context.Context) error {
		if err := s.Open(); err != nil {
			if cerr := s.Close(); cerr != nil {
				m.log.Warn("Failed to close Discord session after open failure", zap.Error(cerr))
			}
			return err
		}
		<-ctx.Done()
		return nil
	})
	if err != nil {
		return nil, newError(KindPlatform, op, err)
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.log.Info("Discord session starting")
	return s, nil
}

// Shutdown stops playback, leaves voice and closes the session. Errors are
// logged, never returned.
func (m *Manager) Shutdown(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	m.player.Stop()

	if m.jobs.Running(gatewayJob) {
		if err := m.jobs.Stop(ctx, gatewayJob); err != nil {
			m.log.Warn("Failed to stop gateway job", zap.Error(err))
		}
	}

	if s == nil || s.Closed() {
		return
	}
	m.disconnectAll(s)
	if err := s.Close(); err != nil {
		m.log.Error("Failed to close Discord session", zap.Error(err))
		return
	}
	m.log.Info("Discord session closed")
}

// Status reports readiness and the current voice channel.
func (m *Manager) Status() (Status, error) {
	var st Status
	if res, ok := m.jobs.Result(gatewayJob); ok && res.Err != nil {
		st.Error = res.Err.Error()
	}

	s := m.current()
	if s == nil || s.Closed() || !s.Ready() {
		return st, nil
	}

	links, err := s.VoiceLinks()
	if err != nil {
		return Status{}, newError(KindStatusCheckFailed, "status", err)
	}

	st.Connected = true
	if len(links) > 0 && links[0].Connected() {
		id := links[0].ChannelID()
		st.ChannelID = &id
	}
	return st, nil
}

// ListChannels returns joinable voice channels as "Guild - Channel" in
// guild order, then channel order.
func (m *Manager) ListChannels() ([]VoiceChannel, error) {
	const op = "list channels"

	s, err := m.ready(op)
	if err != nil {
		return nil, err
	}

	guilds, err := s.Guilds()
	if err != nil {
		return nil, newError(KindPlatform, op, err)
	}

	out := make([]VoiceChannel, 0)
	for _, g := range guilds {
		for _, c := range g.Channels {
			if !c.Kind.Voice() {
				continue
			}
			ok, err := s.CanConnect(c.ID)
			if err != nil {
				m.log.Warn("Permission check failed",
					zap.String("guild_id", g.ID),
					zap.String("channel_id", c.ID),
					zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			out = append(out, VoiceChannel{
				ID:          c.ID,
				DisplayName: fmt.Sprintf("%s - %s", g.Name, c.Name),
			})
		}
	}
	return out, nil
}

// Connect leaves any voice channel and joins channelID.
//
// Existing links are torn down before the join is attempted, so a failed
// join leaves the bot in no channel.
func (m *Manager) Connect(channelID string) (Status, error) {
	const op = "connect"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, err := m.ready(op)
	if err != nil {
		return Status{}, err
	}
	if _, err := snowflake.Parse(channelID); err != nil {
		return Status{}, newError(KindMalformedID, op, err)
	}

	ch, err := s.Channel(channelID)
	if err != nil {
		if unknownChannel(err) {
			return Status{}, newError(KindChannelNotFound, op, err)
		}
		return Status{}, newError(KindPlatform, op, err)
	}
	if ch == nil {
		return Status{}, newError(KindChannelNotFound, op, nil)
	}
	if !ch.Kind.Voice() {
		return Status{}, newError(KindWrongChannelType, op, nil)
	}

	ok, err := s.CanConnect(ch.ID)
	if err != nil {
		return Status{}, newError(KindPlatform, op, err)
	}
	if !ok {
		return Status{}, newError(KindPermissionDenied, op, nil)
	}

	m.player.Stop()
	m.disconnectAll(s)

	link, err := s.JoinVoice(ch.GuildID, ch.ID)
	if err != nil {
		return Status{}, newError(KindConnectionFailed, op, err)
	}
	if link == nil || !link.Connected() {
		return Status{}, newError(KindConnectionFailed, op, errors.New("voice link not confirmed"))
	}

	m.log.Info("Joined voice channel",
		zap.String("guild_id", ch.GuildID),
		zap.String("channel_id", ch.ID))

	id := ch.ID
	return Status{Connected: true, ChannelID: &id}, nil
}

// Disconnect leaves every voice channel. Connected in the result reflects
// the session, not the voice link.
func (m *Manager) Disconnect() (Status, error) {
	const op = "disconnect"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, err := m.ready(op)
	if err != nil {
		return Status{}, err
	}

	m.player.Stop()
	m.disconnectAll(s)

	return Status{Connected: s.Ready()}, nil
}

// UpdateConfig sets the avatar, if given, then the nickname in every guild
// where the bot may change it. Guilds that refuse are skipped.
func (m *Manager) UpdateConfig(upd ConfigUpdate) (BotConfig, error) {
	const op = "update config"

	if err := m.validate.Struct(upd); err != nil {
		return BotConfig{}, newError(KindInvalidConfig, op, err)
	}
	if len(upd.Avatar) > 0 && upd.AvatarContentType == "" {
		return BotConfig{}, newError(KindInvalidConfig, op, errors.New("avatar content type missing"))
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, err := m.ready(op)
	if err != nil {
		return BotConfig{}, err
	}

	if len(upd.Avatar) > 0 {
		if err := s.SetAvatar(upd.Avatar, upd.AvatarContentType); err != nil {
			return BotConfig{}, classifyProfileError(op, err)
		}
		m.log.Info("Avatar updated", zap.Int("bytes", len(upd.Avatar)))
	}

	guilds, err := s.Guilds()
	if err != nil {
		return BotConfig{}, newError(KindPlatform, op, err)
	}
	for _, g := range guilds {
		ok, err := s.CanChangeNickname(g.ID)
		if err != nil || !ok {
			m.log.Warn("Skipping nickname change",
				zap.String("guild_id", g.ID),
				zap.Bool("permitted", ok),
				zap.Error(err))
			continue
		}
		if err := s.SetNickname(g.ID, upd.Nickname); err != nil {
			m.log.Warn("Nickname change failed", zap.String("guild_id", g.ID), zap.Error(err))
			continue
		}
		m.log.Info("Nickname updated", zap.String("guild_id", g.ID), zap.String("nickname", upd.Nickname))
	}

	profile, err := s.Profile()
	if err != nil {
		return BotConfig{}, classifyProfileError(op, err)
	}
	return BotConfig{Name: upd.Nickname, AvatarURL: profile.AvatarURL}, nil
}

// PlayAudio synthesizes text and plays it in the current voice channel.
func (m *Manager) PlayAudio(ctx context.Context, voiceID, text string) error {
	const op = "play audio"

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s := m.current()
	if s == nil || s.Closed() || !s.Ready() {
		return newError(KindNotConnectedToVoice, op, nil)
	}
	links, err := s.VoiceLinks()
	if err != nil {
		return newError(KindPlatform, op, err)
	}
	var link VoiceLink
	for _, l := range links {
		if l.Connected() {
			link = l
			break
		}
	}
	if link == nil {
		return newError(KindNotConnectedToVoice, op, nil)
	}

	audio, err := m.tts.Synthesize(ctx, voiceID, text)
	if err != nil {
		return newError(KindPlatform, op, err)
	}

	if err := m.player.Play(link, audio); err != nil {
		return newError(KindPlatform, op, err)
	}
	m.log.Info("Playing audio",
		zap.String("channel_id", link.ChannelID()),
		zap.String("voice_id", voiceID),
		zap.Int("bytes", len(audio)))
	return nil
}

func (m *Manager) current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// gatewayFailed reports whether the last gateway job ended with an error.
func (m *Manager) gatewayFailed() bool {
	res, ok := m.jobs.Result(gatewayJob)
	return ok && res.Err != nil
}

func (m *Manager) ready(op string) (Session, error) {
	s := m.current()
	if s == nil || s.Closed() {
		return nil, newError(KindNotInitialized, op, nil)
	}
	if !s.Ready() {
		return nil, newError(KindNotReady, op, nil)
	}
	return s, nil
}

// disconnectAll tears down every voice link, logging failures.
func (m *Manager) disconnectAll(s Session) {
	links, err := s.VoiceLinks()
	if err != nil {
		m.log.Warn("Failed to list voice links", zap.Error(err))
		return
	}
	for _, l := range links {
		if err := l.Disconnect(); err != nil {
			m.log.Warn("Failed to leave voice channel",
				zap.String("guild_id", l.GuildID()),
				zap.String("channel_id", l.ChannelID()),
				zap.Error(err))
			continue
		}
		m.log.Info("Left voice channel", zap.String("channel_id", l.ChannelID()))
	}
}

type sessionObserver struct {
	log *zap.Logger
}

func (o sessionObserver) OnReady(username string, guilds int) {
	o.log.Info("Discord bot is running", zap.String("user", username), zap.Int("guilds", guilds))
}

func (o sessionObserver) OnResumed() {
	o.log.Info("Discord session resumed")
}

func (o sessionObserver) OnDisconnect() {
	o.log.Warn("Discord session disconnected")
}
