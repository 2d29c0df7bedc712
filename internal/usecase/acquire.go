package usecase

import (
	"context"
	"time"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// activationSettle gives the browser a moment to finish raising a tab
// before capture attaches to it.
const activationSettle = 500 * time.Millisecond

// acquiredStreams holds every live session a recording runs on. micErr
// carries the non-fatal microphone failure when the mic was requested
// but could not start.
type acquiredStreams struct {
	tab     domain.Tab
	video   ports.VideoSession
	device  ports.AudioSession
	mic     ports.AudioSession
	micErr  error
	speaker ports.PlaybackSink
}

func (s *acquiredStreams) hasAudio() bool {
	return s.device != nil || s.mic != nil
}

// streamAcquirer resolves the capture target and opens every stream a
// recording needs, in a fixed order so each failure maps to one stable
// error code.
type streamAcquirer struct {
	tabs    ports.TabDirectory
	video   ports.VideoSource
	device  ports.AudioCapture
	mic     ports.AudioCapture
	speaker ports.AudioPlayback
	settle  time.Duration
}

func newStreamAcquirer(
	tabs ports.TabDirectory,
	video ports.VideoSource,
	device ports.AudioCapture,
	mic ports.AudioCapture,
	speaker ports.AudioPlayback,
) *streamAcquirer {
	return &streamAcquirer{
		tabs:    tabs,
		video:   video,
		device:  device,
		mic:     mic,
		speaker: speaker,
		settle:  activationSettle,
	}
}

func (a *streamAcquirer) Acquire(
	ctx context.Context,
	opts domain.RecordingOptions,
	videoCfg ports.VideoConfig,
	deviceCfg ports.AudioConfig,
	micCfg ports.AudioConfig,
) (*acquiredStreams, error) {
	tabs, err := a.tabs.List(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeTabUnavailable, "failed to list browser tabs", err)
	}
	if len(tabs) == 0 {
		return nil, domain.NewError(domain.ErrorCodeTabUnavailable, "no capturable tab found")
	}

	tab, focused, err := pickTarget(tabs, opts.TargetTabID)
	if err != nil {
		return nil, err
	}
	if domain.RestrictedURL(tab.URL) {
		return nil, domain.NewError(domain.ErrorCodeUnsupportedTarget, "browser-internal pages cannot be captured")
	}

	// Capture follows focus, so a background target is raised first and
	// given a moment to settle.
	if !focused {
		if err := a.tabs.Activate(ctx, tab.ID); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeTabActivationFailed, "failed to activate tab", err)
		}
		if err := sleepCtx(ctx, a.settle); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeTabActivationFailed, "interrupted while activating tab", err)
		}
	}

	if tab.WebSocketDebuggerURL == "" {
		return nil, domain.NewError(domain.ErrorCodeStreamIDUnavailable,
			"tab has no debugger endpoint; close other inspector sessions and retry")
	}

	streams := &acquiredStreams{tab: tab}
	video, err := a.video.Start(ctx, tab, videoCfg)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeStreamIDUnavailable, "failed to start tab capture", err)
	}
	streams.video = video

	if opts.IncludeDeviceAudio {
		device, err := a.device.Start(ctx, deviceCfg)
		if err != nil {
			streams.release()
			return nil, domain.WrapError(domain.ErrorCodeAudioGraph, "failed to capture tab audio", err)
		}
		streams.device = device
	}

	if opts.IncludeMicrophone {
		mic, err := a.mic.Start(ctx, micCfg)
		if err != nil {
			// Not fatal: the recording continues without the mic.
			streams.micErr = domain.WrapError(domain.ErrorCodeMicrophoneUnavailable, "microphone unavailable", err)
		} else {
			streams.mic = mic
		}
	}

	if streams.device != nil {
		speaker, err := a.speaker.Open(ctx, deviceCfg)
		if err != nil {
			streams.release()
			return nil, domain.WrapError(domain.ErrorCodeAudioGraph, "failed to open audio passthrough", err)
		}
		streams.speaker = speaker
	}

	return streams, nil
}

// pickTarget resolves the requested tab, or the focused one when no tab
// was named. The directory lists tabs in focus order, so index zero is
// the focused tab.
func pickTarget(tabs []domain.Tab, targetID string) (domain.Tab, bool, error) {
	if targetID == "" {
		return tabs[0], true, nil
	}
	for i, tab := range tabs {
		if tab.ID == targetID {
			return tab, i == 0, nil
		}
	}
	return domain.Tab{}, false, domain.NewError(domain.ErrorCodeTabUnavailable, "target tab no longer exists")
}

// release closes whatever was acquired so far. Used when acquisition
// fails partway.
func (s *acquiredStreams) release() {
	if s.video != nil {
		_ = s.video.Close()
	}
	if s.device != nil {
		_ = s.device.Stop()
	}
	if s.mic != nil {
		_ = s.mic.Stop()
	}
	if s.speaker != nil {
		_ = s.speaker.Close()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
