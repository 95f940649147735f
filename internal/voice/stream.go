package voice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// streamOpus reads PCM frames until EOF or stop and sends them to sink.
// A trailing partial frame is padded with silence.
func streamOpus(pcm io.Reader, stop <-chan struct{}, sink Sink, enc Encoder) error {
	if err := sink.Speaking(true); err != nil {
		return fmt.Errorf("speaking error: %w", err)
	}
	defer sink.Speaking(false)

	pcmBuf := make([]byte, FrameSize*Channels*2)
	intBuf := make([]int16, FrameSize*Channels)
	send := sink.OpusSend()

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := io.ReadFull(pcm, pcmBuf)
		last := false
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			clear(pcmBuf[n:])
			last = true
		case err != nil:
			select {
			case <-stop:
				return nil
			default:
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := enc.Encode(intBuf, FrameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case send <- opus:
		case <-stop:
			return nil
		}

		if last {
			return nil
		}
	}
}
