package usecase

import (
	"errors"
	"fmt"

	"tabcap/internal/ports"
)

// pumpFrames feeds captured frames into the combined encoder until the
// capture ends or the encoder stops accepting input.
func pumpFrames(video ports.VideoSession, encoder ports.EncoderSession, done chan struct{}, onErr func(error)) {
	defer close(done)

	for frame := range video.Frames() {
		if err := encoder.WriteFrame(frame); err != nil {
			if errors.Is(err, ports.ErrEncoderFinished) {
				return
			}
			onErr(fmt.Errorf("failed to encode frame: %w", err))
			return
		}
	}
}

// pumpMixedAudio feeds each mixed PCM frame to the combined and the
// audio-only encoders. An encoder that has finished drops out of the
// fan-out; a hard write error fails the recording.
func pumpMixedAudio(mix <-chan []byte, combined, audioOnly ports.EncoderSession, done chan struct{}, onErr func(error)) {
	defer close(done)

	for frame := range mix {
		if combined != nil {
			switch err := combined.WritePCM(frame); {
			case err == nil:
			case errors.Is(err, ports.ErrEncoderFinished):
				combined = nil
			default:
				onErr(fmt.Errorf("failed to encode audio: %w", err))
				return
			}
		}
		if audioOnly != nil {
			switch err := audioOnly.WritePCM(frame); {
			case err == nil:
			case errors.Is(err, ports.ErrEncoderFinished):
				audioOnly = nil
			default:
				onErr(fmt.Errorf("failed to encode audio track: %w", err))
				return
			}
		}
	}
}

// pumpChunks moves encoder output into the accumulator. After an append
// failure it keeps draining so the encoder can still flush and close.
func pumpChunks(session ports.EncoderSession, sink *blobAccumulator, done chan struct{}, onErr func(error)) {
	defer close(done)

	failed := false
	for chunk := range session.Chunks() {
		if failed {
			continue
		}
		if err := sink.Append(chunk); err != nil {
			failed = true
			onErr(err)
		}
	}
}
