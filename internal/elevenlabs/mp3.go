package elevenlabs

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Duration measures MP3 audio by decoding it.
func Duration(audio []byte) (time.Duration, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	if d.SampleRate() <= 0 || d.Length() <= 0 {
		return 0, errors.New("decode mp3: unknown length")
	}
	// Length is in bytes of 16-bit stereo PCM.
	samples := d.Length() / 4
	return time.Duration(samples) * time.Second / time.Duration(d.SampleRate()), nil
}

// Base64Duration is Duration for base64 encoded audio.
func Base64Duration(audio string) (time.Duration, error) {
	raw, err := base64.StdEncoding.DecodeString(audio)
	if err != nil {
		return 0, fmt.Errorf("decode base64: %w", err)
	}
	return Duration(raw)
}
