package voice

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// ErrEmptyAudio is returned by Play for a zero-length buffer.
var ErrEmptyAudio = errors.New("audio is empty")

type playback struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	kill     func()
}

func (pb *playback) halt() {
	pb.stopOnce.Do(func() {
		close(pb.stop)
		pb.kill()
	})
}

// Player holds at most one active playback. Starting a new one stops the
// previous one first.
type Player struct {
	// TempDir is where audio is staged; empty means os.TempDir.
	TempDir string

	decoder    Decoder
	newEncoder EncoderFactory
	log        *zap.Logger

	playMu  sync.Mutex
	mu      sync.Mutex
	current *playback
}

// New creates a Player.
func New(decoder Decoder, newEncoder EncoderFactory, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		decoder:    decoder,
		newEncoder: newEncoder,
		log:        logger,
	}
}

// Play stops the current playback and starts audio on sink. It returns
// once playback has started; the staged file is removed when playback
// ends, fails or never starts.
func (p *Player) Play(sink Sink, audio []byte) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.Stop()

	path, err := p.stage(audio)
	if err != nil {
		return err
	}
	release := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn("Failed to remove staged audio", zap.String("path", path), zap.Error(err))
		}
	}

	pcm, kill, err := p.decoder.Decode(path)
	if err != nil {
		release()
		return fmt.Errorf("failed to start decoder: %w", err)
	}

	enc, err := p.newEncoder()
	if err != nil {
		kill()
		release()
		return err
	}

	pb := &playback{
		stop: make(chan struct{}),
		done: make(chan struct{}),
		kill: kill,
	}
	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()

	p.log.Debug("Playback started", zap.Int("bytes", len(audio)))

	go func() {
		defer close(pb.done)
		defer release()
		defer kill()

		err := streamOpus(pcm, pb.stop, sink, enc)

		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()

		if err != nil {
			p.log.Error("Playback finished with error", zap.Error(err))
			return
		}
		p.log.Debug("Playback finished")
	}()

	return nil
}

// Stop halts the current playback, if any, and waits for it to clean up.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb == nil {
		return
	}
	pb.halt()
	<-pb.done
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Player) stage(audio []byte) (string, error) {
	f, err := os.CreateTemp(p.TempDir, "voicebot-*.audio")
	if err != nil {
		return "", fmt.Errorf("failed to stage audio: %w", err)
	}
	path := f.Name()

	_, werr := f.Write(audio)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to stage audio: %w", err)
	}
	return path, nil
}
