package encode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/icza/mjpeg"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// fallbackChunkSize is the piece size the builtin encoders use when
// releasing a finished file through the chunk channel.
const fallbackChunkSize = 1 << 20

// aviSession is the builtin video encoder used when no ffmpeg is
// available. MJPEG/AVI writes its index on close, so the file cannot
// be streamed mid-recording; every chunk is emitted at Finish instead.
type aviSession struct {
	path   string
	writer mjpeg.AviWriter
	chunks chan []byte

	mu       sync.Mutex
	finished bool

	finishOnce sync.Once
	finishErr  error
}

func newAVISession(cfg ports.EncodeConfig) (ports.EncoderSession, error) {
	f, err := os.CreateTemp(cfg.WorkDir, "tabcap-*.avi")
	if err != nil {
		return nil, fmt.Errorf("failed to create avi temp file: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	fps := cfg.FrameRate
	if fps <= 0 {
		fps = 30
	}
	writer, err := mjpeg.New(path, int32(cfg.Width), int32(cfg.Height), int32(fps))
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to open avi writer: %w", err)
	}

	return &aviSession{
		path:   path,
		writer: writer,
		chunks: make(chan []byte, 8),
	}, nil
}

func (s *aviSession) WriteFrame(frame domain.VideoFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ports.ErrEncoderFinished
	}
	if err := s.writer.AddFrame(frame.Data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// WritePCM discards audio. The AVI fallback records silent video; any
// sound lives in the separate audio artifact.
func (s *aviSession) WritePCM([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ports.ErrEncoderFinished
	}
	return nil
}

func (s *aviSession) Chunks() <-chan []byte {
	return s.chunks
}

func (s *aviSession) Finish() error {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()

		defer close(s.chunks)
		defer os.Remove(s.path)

		if err := s.writer.Close(); err != nil {
			s.finishErr = fmt.Errorf("failed to finalize avi: %w", err)
			return
		}
		s.finishErr = emitFileChunks(s.path, s.chunks)
	})
	return s.finishErr
}

func (s *aviSession) Err() error {
	return nil
}

// wavSession is the builtin audio encoder used when no ffmpeg is
// available. The wav encoder patches its header on close, so chunks
// are emitted at Finish like the avi fallback.
type wavSession struct {
	path    string
	file    *os.File
	encoder *wav.Encoder
	format  *audio.Format
	chunks  chan []byte

	mu       sync.Mutex
	finished bool

	finishOnce sync.Once
	finishErr  error
}

func newWAVSession(cfg ports.EncodeConfig) (ports.EncoderSession, error) {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 2
	}

	f, err := os.CreateTemp(cfg.WorkDir, "tabcap-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create wav temp file: %w", err)
	}

	return &wavSession{
		path:    f.Name(),
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, channels, 1),
		format:  &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		chunks:  make(chan []byte, 8),
	}, nil
}

func (s *wavSession) WriteFrame(domain.VideoFrame) error {
	return errors.New("audio-only encoder accepts no video frames")
}

func (s *wavSession) WritePCM(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ports.ErrEncoderFinished
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buf := &audio.IntBuffer{Format: s.format, Data: samples, SourceBitDepth: 16}
	if err := s.encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write pcm: %w", err)
	}
	return nil
}

func (s *wavSession) Chunks() <-chan []byte {
	return s.chunks
}

func (s *wavSession) Finish() error {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()

		defer close(s.chunks)
		defer os.Remove(s.path)

		if err := s.encoder.Close(); err != nil {
			_ = s.file.Close()
			s.finishErr = fmt.Errorf("failed to finalize wav: %w", err)
			return
		}
		if err := s.file.Close(); err != nil {
			s.finishErr = fmt.Errorf("failed to close wav file: %w", err)
			return
		}
		s.finishErr = emitFileChunks(s.path, s.chunks)
	})
	return s.finishErr
}

func (s *wavSession) Err() error {
	return nil
}

// emitFileChunks releases a finished file through the chunk channel in
// fixed-size pieces. Concatenated in order the pieces reproduce the
// file byte for byte.
func emitFileChunks(path string, chunks chan<- []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", path, err)
	}
	defer f.Close()

	for {
		piece := make([]byte, fallbackChunkSize)
		n, err := io.ReadFull(f, piece)
		if n > 0 {
			chunks <- piece[:n]
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
}
