package voice

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	ch       chan []byte
	mu       sync.Mutex
	speaking []bool
}

func newFakeSink(buf int) *fakeSink { return &fakeSink{ch: make(chan []byte, buf)} }

func (s *fakeSink) Speaking(on bool) error {
	s.mu.Lock()
	s.speaking = append(s.speaking, on)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) OpusSend() chan<- []byte { return s.ch }

type copyEncoder struct{}

func (copyEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	return []byte{byte(len(pcm) / frameSize)}, nil
}

func copyEncoders() (Encoder, error) { return copyEncoder{}, nil }

// fakeDecoder serves canned PCM, or blocks forever when pcm is nil.
type fakeDecoder struct {
	pcm []byte
	err error

	mu    sync.Mutex
	paths []string
}

func (d *fakeDecoder) Decode(path string) (io.Reader, func(), error) {
	d.mu.Lock()
	d.paths = append(d.paths, path)
	d.mu.Unlock()

	if d.err != nil {
		return nil, nil, d.err
	}
	if d.pcm != nil {
		return bytes.NewReader(d.pcm), func() {}, nil
	}
	r, w := io.Pipe()
	var once sync.Once
	return r, func() { once.Do(func() { w.CloseWithError(errors.New("killed")) }) }, nil
}

func (d *fakeDecoder) lastPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paths[len(d.paths)-1]
}

func gone(path string) func() bool {
	return func() bool {
		_, err := os.Stat(path)
		return errors.Is(err, os.ErrNotExist)
	}
}

func newTestPlayer(t *testing.T, dec Decoder) *Player {
	p := New(dec, copyEncoders, nil)
	p.TempDir = t.TempDir()
	return p
}

func TestPlayStreamsFramesAndReleasesFile(t *testing.T) {
	frame := FrameSize * Channels * 2
	dec := &fakeDecoder{pcm: make([]byte, frame*2+10)}
	sink := newFakeSink(8)
	p := newTestPlayer(t, dec)

	require.NoError(t, p.Play(sink, []byte("mp3")))

	for i := 0; i < 3; i++ {
		select {
		case pkt := <-sink.ch:
			assert.Equal(t, []byte{Channels}, pkt)
		case <-time.After(time.Second):
			t.Fatalf("frame %d not sent", i)
		}
	}

	require.Eventually(t, gone(dec.lastPath()), time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !p.Playing() }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, []bool{true, false}, sink.speaking)
	sink.mu.Unlock()
}

func TestPlayDecoderFailureReleasesFile(t *testing.T) {
	dec := &fakeDecoder{err: errors.New("no ffmpeg")}
	p := newTestPlayer(t, dec)

	err := p.Play(newFakeSink(1), []byte("mp3"))
	require.Error(t, err)

	assert.True(t, gone(dec.lastPath())())
	assert.False(t, p.Playing())
}

func TestPlayEncoderFailureReleasesFile(t *testing.T) {
	dec := &fakeDecoder{pcm: []byte{}}
	p := New(dec, func() (Encoder, error) { return nil, errors.New("no opus") }, nil)
	p.TempDir = t.TempDir()

	require.Error(t, p.Play(newFakeSink(1), []byte("mp3")))
	assert.True(t, gone(dec.lastPath())())
}

func TestStopHaltsBlockedPlayback(t *testing.T) {
	dec := &fakeDecoder{}
	p := newTestPlayer(t, dec)

	require.NoError(t, p.Play(newFakeSink(1), []byte("mp3")))
	assert.True(t, p.Playing())

	p.Stop()
	assert.False(t, p.Playing())
	assert.True(t, gone(dec.lastPath())())
}

func TestPlayReplacesCurrentPlayback(t *testing.T) {
	dec := &fakeDecoder{}
	p := newTestPlayer(t, dec)

	require.NoError(t, p.Play(newFakeSink(1), []byte("first")))
	first := dec.lastPath()

	require.NoError(t, p.Play(newFakeSink(1), []byte("second")))
	second := dec.lastPath()

	assert.NotEqual(t, first, second)
	assert.True(t, gone(first)())
	assert.True(t, p.Playing())

	p.Stop()
	assert.True(t, gone(second)())
}

func TestPlayRejectsEmptyAudio(t *testing.T) {
	p := newTestPlayer(t, &fakeDecoder{})
	assert.ErrorIs(t, p.Play(newFakeSink(1), nil), ErrEmptyAudio)
}
