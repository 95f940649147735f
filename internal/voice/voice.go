// Package voice plays synthesized audio into a Discord voice connection.
//
// Audio is staged to a temporary file, decoded to 48 kHz stereo PCM by an
// external decoder (ffmpeg) and sent to the connection as 20 ms Opus frames.
package voice

import "io"

const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960 // samples per channel in 20 ms
)

// Sink receives Opus frames. A Discord voice connection satisfies it.
type Sink interface {
	Speaking(bool) error
	OpusSend() chan<- []byte
}

// Encoder turns one PCM frame into an Opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// EncoderFactory returns a fresh encoder for each playback.
type EncoderFactory func() (Encoder, error)

// Decoder opens a signed 16-bit little-endian PCM stream for the file at
// path. The returned stop func must be safe to call more than once and
// must unblock pending reads.
type Decoder interface {
	Decode(path string) (pcm io.Reader, stop func(), err error)
}
