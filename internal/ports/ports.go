package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"tabcap/internal/domain"
)

// TabDirectory lists and activates capturable browser tabs. List returns
// page targets in most-recently-focused order.
type TabDirectory interface {
	List(ctx context.Context) ([]domain.Tab, error)
	Activate(ctx context.Context, tabID string) error
}

// VideoConfig describes how tab video should be captured.
type VideoConfig struct {
	Width     int
	Height    int
	FrameRate int
	// Quality is the JPEG quality for captured frames, 0-100.
	Quality int
}

// VideoSession is a live tab video capture. Frames is closed when the
// capture ends; Wait reports the terminal error, nil for a clean end
// such as the tab going away.
type VideoSession interface {
	Frames() <-chan domain.VideoFrame
	Wait() error
	Close() error
}

// VideoSource starts tab video capture sessions.
type VideoSource interface {
	Start(ctx context.Context, tab domain.Tab, cfg VideoConfig) (VideoSession, error)
}

// AudioConfig describes how an audio source should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string

	// Microphone conditioning requests. The capture backend applies
	// whichever it supports.
	NoiseSuppression bool
	AutoGain         bool
	EchoCancellation bool
}

// AudioSession is a live PCM capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates PCM capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// MicAccess is the tri-state outcome of a microphone capability probe.
type MicAccess string

const (
	MicAccessGranted      MicAccess = "granted"
	MicAccessDenied       MicAccess = "denied"
	MicAccessUndetermined MicAccess = "undetermined"
)

// MicrophoneProbe checks microphone availability without keeping a
// stream open. Probes are bounded by an internal timeout; a source
// that opens but never produces audio is undetermined, not denied.
type MicrophoneProbe interface {
	ProbeMicrophone(ctx context.Context, cfg AudioConfig) MicAccess
}

// PlaybackSink accepts PCM for local playback. Closing releases the
// output device.
type PlaybackSink interface {
	io.WriteCloser
}

// AudioPlayback opens local playback sinks for captured tab audio so the
// user keeps hearing the meeting while it records.
type AudioPlayback interface {
	Open(ctx context.Context, cfg AudioConfig) (PlaybackSink, error)
}

// EncodeConfig describes one encoder session.
type EncodeConfig struct {
	MimeType      string
	Width         int
	Height        int
	FrameRate     int
	SampleRate    int
	Channels      int
	HasAudio      bool
	ChunkInterval time.Duration
	// WorkDir holds encoder scratch files for the recording.
	WorkDir string
}

// ErrEncoderFinished is returned by encoder writes after Finish. Pumps
// treat it as a clean end of input, not a failure.
var ErrEncoderFinished = errors.New("encoder session finished")

// EncoderSession consumes frames and PCM and emits ordered container
// chunks. Concatenating every chunk in arrival order reproduces the
// final media file byte for byte. Chunks is closed after Finish; Err
// reports the terminal encoder error once Chunks is closed.
type EncoderSession interface {
	WriteFrame(frame domain.VideoFrame) error
	WritePCM(pcm []byte) error
	Chunks() <-chan []byte
	Finish() error
	Err() error
}

// EncoderFactory starts encoder sessions for the selected container.
type EncoderFactory interface {
	Support(ctx context.Context) []string
	StartVideo(ctx context.Context, cfg EncodeConfig) (EncoderSession, error)
	StartAudio(ctx context.Context, cfg EncodeConfig) (EncoderSession, error)
}

// RecordingEvents receives recording lifecycle broadcasts. Implementations
// must not block.
type RecordingEvents interface {
	RecordingStateChanged(state domain.RecordingState)
	MicrophoneFailed(detail string)
	MemoryWarning(totalBytes int64)
	StreamsReleased()
	RecordingComplete(artifact domain.RecordingArtifact)
	RecordingFailed(code domain.ErrorCode, detail string)
}

// MeetingEvents receives conference tab detection broadcasts.
type MeetingEvents interface {
	MeetingDetected(meeting domain.Meeting)
	MeetingEnded(meeting domain.Meeting)
}

// AuthEvents receives sign-in state broadcasts.
type AuthEvents interface {
	AuthStateChanged(state domain.AuthState)
}

// TokenStore persists the OTP session between runs.
type TokenStore interface {
	Load() (domain.AuthSession, error)
	Save(session domain.AuthSession) error
	Clear() error
}

// Notifier shows best-effort desktop notifications.
type Notifier interface {
	Notify(title string, body string)
}
