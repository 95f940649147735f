// Package codec holds the cgo Opus encoder used for live playback.
package codec

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/Dombearx/VoiceBot/internal/voice"
)

// NewOpus returns a voice.EncoderFactory backed by libopus.
func NewOpus(bitrate int) voice.EncoderFactory {
	return func() (voice.Encoder, error) {
		enc, err := gopus.NewEncoder(voice.SampleRate, voice.Channels, gopus.Audio)
		if err != nil {
			return nil, fmt.Errorf("encoder error: %w", err)
		}
		if bitrate > 0 {
			enc.SetBitrate(bitrate)
		}
		return enc, nil
	}
}
