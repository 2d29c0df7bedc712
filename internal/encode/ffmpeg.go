package encode

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
	"sync/atomic"
	"time"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// Factory starts encoder sessions. Containers ffmpeg can stream are
// encoded by an ffmpeg subprocess; the builtin avi/wav fallbacks cover
// machines without one.
type Factory struct {
	command string

	mu      sync.Mutex
	probed  bool
	support []string
}

func NewFactory(command string) *Factory {
	if command == "" {
		command = "ffmpeg"
	}
	return &Factory{command: command}
}

// Support probes the local ffmpeg once and caches the result.
func (f *Factory) Support(ctx context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.probed {
		f.support = DetectSupport(ctx, f.command)
		f.probed = true
	}
	return append([]string(nil), f.support...)
}

func (f *Factory) StartVideo(ctx context.Context, cfg ports.EncodeConfig) (ports.EncoderSession, error) {
	cfg = withDefaults(cfg)
	if cfg.MimeType == MimeVideoAVI {
		return newAVISession(cfg)
	}
	return f.startProcess(ctx, cfg, videoArgs(cfg), true)
}

func (f *Factory) StartAudio(ctx context.Context, cfg ports.EncodeConfig) (ports.EncoderSession, error) {
	cfg = withDefaults(cfg)
	if cfg.MimeType == MimeAudioWAV {
		return newWAVSession(cfg)
	}
	return f.startProcess(ctx, cfg, audioArgs(cfg), false)
}

func withDefaults(cfg ports.EncodeConfig) ports.EncodeConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	return cfg
}

// videoArgs builds the ffmpeg argument list for a combined session:
// concatenated JPEG frames on stdin, s16le PCM on fd 3, the container
// streamed to stdout. Frame timestamps come from arrival wallclock so
// sparse screencast frames keep real-time pacing.
func videoArgs(cfg ports.EncodeConfig) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-use_wallclock_as_timestamps", "1",
		"-f", "image2pipe",
		"-i", "pipe:0",
	}
	if cfg.HasAudio {
		args = append(args,
			"-use_wallclock_as_timestamps", "1",
			"-f", "s16le",
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-ac", strconv.Itoa(cfg.Channels),
			"-i", "pipe:3",
		)
	}

	args = append(args, "-map", "0:v")
	if cfg.HasAudio {
		args = append(args, "-map", "1:a")
	}

	switch cfg.MimeType {
	case MimeVideoVP8:
		args = append(args, "-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M")
	case MimeVideoH264:
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency")
	case MimeVideoMP4:
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency")
	default:
		// vp9 and the generic webm profile
		args = append(args, "-c:v", "libvpx-vp9", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M")
	}

	if cfg.HasAudio {
		if cfg.MimeType == MimeVideoMP4 {
			args = append(args, "-c:a", "aac", "-b:a", "128k")
		} else {
			args = append(args, "-c:a", "libopus", "-b:a", "128k")
		}
	}

	if cfg.MimeType == MimeVideoMP4 {
		args = append(args, "-movflags", "frag_keyframe+empty_moov", "-f", "mp4")
	} else {
		args = append(args, "-f", "webm")
	}
	return append(args, "pipe:1")
}

// audioArgs builds the ffmpeg argument list for an audio-only session:
// s16le PCM on stdin, the container streamed to stdout.
func audioArgs(cfg ports.EncodeConfig) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "pipe:0",
	}

	switch cfg.MimeType {
	case MimeAudioOpusOgg:
		args = append(args, "-c:a", "libopus", "-b:a", "128k", "-f", "ogg")
	case MimeAudioMP4:
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4")
	default:
		args = append(args, "-c:a", "libopus", "-b:a", "128k", "-f", "webm")
	}
	return append(args, "pipe:1")
}

func (f *Factory) startProcess(ctx context.Context, cfg ports.EncodeConfig, args []string, video bool) (ports.EncoderSession, error) {
	cmd := exec.CommandContext(ctx, f.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder stdin pipe: %w", err)
	}

	var pcmWriter *os.File
	var pcmReader *os.File
	if video && cfg.HasAudio {
		pcmReader, pcmWriter, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create encoder pcm pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{pcmReader}
	}

	// The container stream goes through a pipe owned here, not by
	// StdoutPipe. Wait closes StdoutPipe as soon as the process exits,
	// which can drop the final container bytes before they are drained.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	// The child holds its own descriptors now.
	_ = stdoutW.Close()
	if pcmReader != nil {
		_ = pcmReader.Close()
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = stdin.Close()
		_ = stdoutR.Close()
		if pcmWriter != nil {
			_ = pcmWriter.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("encoder exited before start: %w: %s", err, trimStderr(&stderr))
		}
		return nil, errors.New("encoder exited before start")
	case <-time.After(250 * time.Millisecond):
	}

	session := &processSession{
		stdout:  stdoutR,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		chunks:  make(chan []byte, 8),
		exited:  make(chan struct{}),
		readEnd: make(chan struct{}),
	}
	if video {
		session.frameW = stdin
		session.pcmW = pcmWriter
	} else {
		session.pcmW = stdin
	}

	go session.monitor()
	go session.readOutput()
	go session.emitChunks(cfg.ChunkInterval)

	return session, nil
}

// processSession is a live ffmpeg encoder. Output bytes are buffered
// and released as one chunk per interval; the remainder flushes when
// the process ends.
type processSession struct {
	frameW io.WriteCloser // nil for audio-only sessions
	pcmW   io.WriteCloser

	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	chunks  chan []byte
	exited  chan struct{}
	readEnd chan struct{}

	finished atomic.Bool

	frameMu sync.Mutex
	pcmMu   sync.Mutex

	pendMu  sync.Mutex
	pending []byte

	errMu   sync.Mutex
	termErr error

	finishOnce sync.Once
	finishErr  error
}

func (s *processSession) WriteFrame(frame domain.VideoFrame) error {
	if s.frameW == nil {
		return errors.New("audio-only encoder accepts no video frames")
	}
	if s.finished.Load() {
		return ports.ErrEncoderFinished
	}

	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	if _, err := s.frameW.Write(frame.Data); err != nil {
		if s.finished.Load() {
			return ports.ErrEncoderFinished
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (s *processSession) WritePCM(pcm []byte) error {
	if s.pcmW == nil {
		return errors.New("encoder has no audio input")
	}
	if s.finished.Load() {
		return ports.ErrEncoderFinished
	}

	s.pcmMu.Lock()
	defer s.pcmMu.Unlock()
	if _, err := s.pcmW.Write(pcm); err != nil {
		if s.finished.Load() {
			return ports.ErrEncoderFinished
		}
		return fmt.Errorf("failed to write pcm: %w", err)
	}
	return nil
}

func (s *processSession) Chunks() <-chan []byte {
	return s.chunks
}

// Finish closes the encoder inputs, lets the process flush the
// container, and releases the remaining bytes as the final chunk.
func (s *processSession) Finish() error {
	s.finishOnce.Do(func() {
		s.finished.Store(true)
		if s.frameW != nil {
			_ = s.frameW.Close()
		}
		if s.pcmW != nil {
			_ = s.pcmW.Close()
		}

		select {
		case <-s.exited:
		case <-time.After(5 * time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			<-s.exited
		}

		// Chunk emission stops only after stdout is drained.
		<-s.readEnd
		s.finishErr = s.Err()
	})
	return s.finishErr
}

// Err reports the terminal encoder error. It is set when the process
// fails, or when it exits at all before Finish.
func (s *processSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.termErr
}

func (s *processSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.termErr == nil {
		s.termErr = err
	}
}

func (s *processSession) monitor() {
	err := <-s.waitErr
	if err != nil {
		s.setErr(fmt.Errorf("encoder failed: %w: %s", err, trimStderr(s.stderr)))
	} else if !s.finished.Load() {
		s.setErr(fmt.Errorf("encoder exited before finish: %s", trimStderr(s.stderr)))
	}
	close(s.exited)
}

func (s *processSession) readOutput() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.pendMu.Lock()
			s.pending = append(s.pending, buf[:n]...)
			s.pendMu.Unlock()
		}
		if err != nil {
			_ = s.stdout.Close()
			close(s.readEnd)
			return
		}
	}
}

func (s *processSession) emitChunks(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flushPending()
		case <-s.readEnd:
			s.flushPending()
			close(s.chunks)
			return
		}
	}
}

func (s *processSession) flushPending() {
	s.pendMu.Lock()
	chunk := s.pending
	s.pending = nil
	s.pendMu.Unlock()

	if len(chunk) > 0 {
		s.chunks <- chunk
	}
}

func trimStderr(stderr *bytes.Buffer) string {
	if stderr == nil {
		return ""
	}
	return string(bytes.TrimSpace(stderr.Bytes()))
}
