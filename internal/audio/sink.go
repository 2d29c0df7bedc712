package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"tabcap/internal/ports"
)

// SpeakerSink plays s16le PCM through the default output device using
// an ffmpeg subprocess. It is the passthrough leg of the mix graph:
// captured tab audio keeps reaching the speakers while it records.
type SpeakerSink struct {
	command string
	// OutputFormat is the ffmpeg output muxer, pulse by default.
	outputFormat string
}

func NewSpeakerSink(command string, outputFormat string) *SpeakerSink {
	if command == "" {
		command = "ffmpeg"
	}
	if outputFormat == "" {
		outputFormat = "pulse"
	}
	return &SpeakerSink{command: command, outputFormat: outputFormat}
}

func (s *SpeakerSink) Open(ctx context.Context, cfg ports.AudioConfig) (ports.PlaybackSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "pipe:0",
		"-f", s.outputFormat,
		"tabcap passthrough",
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create playback stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("playback exited before start: %w: %s", err, trimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("playback exited before start")
	case <-time.After(250 * time.Millisecond):
	}

	return &playbackSession{
		stdin:   stdin,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type playbackSession struct {
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

func (p *playbackSession) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *playbackSession) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()

		select {
		case err, ok := <-p.waitErr:
			if ok {
				p.closeErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if p.process != nil {
				_ = p.process.Kill()
			}
			err, ok := <-p.waitErr
			if ok {
				p.closeErr = normalizeStopErr(err)
			}
		}

		if p.closeErr != nil && p.stderr != nil && p.stderr.Len() > 0 {
			p.closeErr = fmt.Errorf("%w: %s", p.closeErr, trimSpaceSafe(p.stderr.String()))
		}
	})

	return p.closeErr
}
