package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabcap/internal/audio"
	"tabcap/internal/domain"
	"tabcap/internal/encode"
	"tabcap/internal/ports"
)

// Config controls recording behavior.
type Config struct {
	FrameRate     int
	JPEGQuality   int
	ChunkInterval time.Duration
	// OutputDir receives finalized artifacts; scratch dirs for pieces
	// and encoder temp files are created underneath it.
	OutputDir   string
	DeviceAudio ports.AudioConfig
	MicAudio    ports.AudioConfig
}

// RecordingController orchestrates the recording lifecycle: acquire
// streams, mix audio, run both encoders, accumulate chunks, and tear
// everything down exactly once on stop, failure, or the tab going away.
type RecordingController struct {
	acquirer *streamAcquirer
	encoders ports.EncoderFactory
	events   ports.RecordingEvents
	machine  *stateMachine
	cfg      Config

	mu      sync.Mutex
	current *activeRecording
}

func NewRecordingController(
	tabs ports.TabDirectory,
	video ports.VideoSource,
	device ports.AudioCapture,
	mic ports.AudioCapture,
	speaker ports.AudioPlayback,
	encoders ports.EncoderFactory,
	events ports.RecordingEvents,
	cfg Config,
) *RecordingController {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.DeviceAudio.SampleRate <= 0 {
		cfg.DeviceAudio.SampleRate = 48000
	}
	if cfg.DeviceAudio.Channels <= 0 {
		cfg.DeviceAudio.Channels = 2
	}
	if cfg.MicAudio.SampleRate <= 0 {
		cfg.MicAudio.SampleRate = cfg.DeviceAudio.SampleRate
	}
	if cfg.MicAudio.Channels <= 0 {
		cfg.MicAudio.Channels = cfg.DeviceAudio.Channels
	}
	return &RecordingController{
		acquirer: newStreamAcquirer(tabs, video, device, mic, speaker),
		encoders: encoders,
		events:   events,
		machine:  newStateMachine(events),
		cfg:      cfg,
	}
}

// Start begins a new recording of the target tab.
func (c *RecordingController) Start(ctx context.Context, opts domain.RecordingOptions) (domain.StartResult, error) {
	normalized, legacy := opts.RecordingType.Normalize()
	opts.RecordingType = normalized

	if err := c.machine.Begin(opts); err != nil {
		return domain.StartResult{}, err
	}

	recCtx, cancel := context.WithCancel(ctx)

	var (
		streams   *acquiredStreams
		graph     *audio.MixGraph
		combined  ports.EncoderSession
		audioOnly ports.EncoderSession
		workDir   string
	)
	abort := func(err error) (domain.StartResult, error) {
		cancel()
		if combined != nil {
			_ = combined.Finish()
		}
		if audioOnly != nil {
			_ = audioOnly.Finish()
		}
		if graph != nil {
			_ = graph.Close()
		}
		if streams != nil {
			streams.release()
		}
		if workDir != "" {
			_ = os.RemoveAll(workDir)
		}
		c.machine.Fail()
		code := domain.CodeOf(err)
		if code == "" {
			code = domain.ErrorCodeEncoding
		}
		c.events.RecordingFailed(code, err.Error())
		return domain.StartResult{}, err
	}

	width, height := opts.VideoQuality.Dimensions()
	videoCfg := ports.VideoConfig{
		Width:     width,
		Height:    height,
		FrameRate: c.cfg.FrameRate,
		Quality:   c.cfg.JPEGQuality,
	}

	streams, err := c.acquirer.Acquire(recCtx, opts, videoCfg, c.cfg.DeviceAudio, c.cfg.MicAudio)
	if err != nil {
		return abort(err)
	}
	if streams.micErr != nil {
		c.events.MicrophoneFailed(streams.micErr.Error())
	}

	if streams.hasAudio() {
		graph, err = audio.NewMixGraph(audio.GraphConfig{
			SampleRate: c.cfg.DeviceAudio.SampleRate,
			Channels:   c.cfg.DeviceAudio.Channels,
		}, streams.device, streams.mic, streams.speaker, func(micErr error) {
			c.events.MicrophoneFailed(micErr.Error())
		})
		if err != nil {
			return abort(domain.WrapError(domain.ErrorCodeAudioGraph, "failed to build audio graph", err))
		}
	}
	hasAudio := graph != nil

	support := c.encoders.Support(recCtx)
	combinedMime, err := encode.Select(encode.KindVideo, support)
	if err != nil {
		return abort(domain.WrapError(domain.ErrorCodeEncoding, "no usable video container", err))
	}
	var audioMime string
	if hasAudio {
		audioMime, err = encode.Select(encode.KindAudio, support)
		if err != nil {
			return abort(domain.WrapError(domain.ErrorCodeEncoding, "no usable audio container", err))
		}
	}

	workDir, err = os.MkdirTemp(c.cfg.OutputDir, ".tabcap-rec-")
	if err != nil {
		return abort(domain.WrapError(domain.ErrorCodeEncoding, "failed to create recording scratch dir", err))
	}

	encodeCfg := ports.EncodeConfig{
		Width:         width,
		Height:        height,
		FrameRate:     c.cfg.FrameRate,
		SampleRate:    c.cfg.DeviceAudio.SampleRate,
		Channels:      c.cfg.DeviceAudio.Channels,
		ChunkInterval: c.cfg.ChunkInterval,
		WorkDir:       workDir,
	}
	combinedCfg := encodeCfg
	combinedCfg.MimeType = combinedMime
	combinedCfg.HasAudio = hasAudio
	combined, err = c.encoders.StartVideo(recCtx, combinedCfg)
	if err != nil {
		return abort(domain.WrapError(domain.ErrorCodeEncoding, "failed to start video encoder", err))
	}
	if hasAudio {
		audioCfg := encodeCfg
		audioCfg.MimeType = audioMime
		audioCfg.HasAudio = true
		audioOnly, err = c.encoders.StartAudio(recCtx, audioCfg)
		if err != nil {
			return abort(domain.WrapError(domain.ErrorCodeEncoding, "failed to start audio encoder", err))
		}
	}

	active := &activeRecording{
		id:                 uuid.NewString(),
		opts:               opts,
		tab:                streams.tab,
		workDir:            workDir,
		cancel:             cancel,
		streams:            streams,
		graph:              graph,
		combined:           combined,
		combinedMime:       combinedMime,
		audioOnly:          audioOnly,
		audioMime:          audioMime,
		frameDone:          make(chan struct{}),
		mixDone:            closedChan(),
		combinedChunksDone: make(chan struct{}),
		audioChunksDone:    closedChan(),
	}
	if hasAudio {
		active.mixDone = make(chan struct{})
	}
	if audioOnly != nil {
		active.audioChunksDone = make(chan struct{})
	}

	// One memory warning per recording, whichever artifact grows first.
	var warnOnce sync.Once
	onWarn := func(total int64) {
		warnOnce.Do(func() { c.events.MemoryWarning(total) })
	}
	active.combinedAcc = newBlobAccumulator(workDir, "video", onWarn)
	active.audioAcc = newBlobAccumulator(workDir, "audio", onWarn)

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	active.startedAt = time.Now()
	if err := c.machine.MarkRecording(streams.tab.ID, active.startedAt); err != nil {
		c.clearCurrent(active)
		return abort(err)
	}

	onPumpErr := func(err error) {
		go c.fail(active, domain.ErrorCodeEncoding, err)
	}
	go pumpFrames(streams.video, combined, active.frameDone, onPumpErr)
	if hasAudio {
		go pumpMixedAudio(graph.Output(), combined, audioOnly, active.mixDone, onPumpErr)
	}
	go pumpChunks(combined, active.combinedAcc, active.combinedChunksDone, onPumpErr)
	if audioOnly != nil {
		go pumpChunks(audioOnly, active.audioAcc, active.audioChunksDone, onPumpErr)
	}
	go c.watchCaptureEnd(active)

	message := "recording started"
	if legacy {
		message = "window and display capture are recorded as the focused tab"
	}
	return domain.StartResult{Started: true, Message: message}, nil
}

// Stop ends the active recording and returns the finalized artifact.
func (c *RecordingController) Stop(ctx context.Context) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}
	if err := c.machine.MarkStopping(); err != nil {
		return domain.StopResult{}, err
	}
	return c.finish(active)
}

// State returns the authoritative recording snapshot.
func (c *RecordingController) State() domain.RecordingState {
	return c.machine.Snapshot()
}

// watchCaptureEnd finishes the recording when the capture stream ends on
// its own, which is how a closed tab surfaces. Captured data is kept.
func (c *RecordingController) watchCaptureEnd(a *activeRecording) {
	if err := a.streams.video.Wait(); err != nil {
		c.fail(a, domain.ErrorCodeEncoding, fmt.Errorf("tab capture failed: %w", err))
		return
	}
	if err := c.machine.MarkStopping(); err != nil {
		// A stop or failure is already in flight.
		return
	}
	_, _ = c.finish(a)
}

func (c *RecordingController) finish(a *activeRecording) (domain.StopResult, error) {
	c.releaseAll(a)

	if err := a.firstEncoderErr(); err != nil {
		c.fail(a, domain.ErrorCodeEncoding, err)
		return domain.StopResult{}, a.failureOr(err)
	}

	artifact, err := c.finalize(a)
	if err != nil {
		c.fail(a, domain.ErrorCodeEncoding, err)
		return domain.StopResult{}, a.failureOr(err)
	}

	c.clearCurrent(a)
	if err := c.machine.Complete(&artifact); err != nil {
		return domain.StopResult{}, a.failureOr(err)
	}
	c.events.RecordingComplete(artifact)
	return domain.StopResult{Recording: artifact}, nil
}

// releaseAll tears the session down in dependency order: stop the
// inputs, drain the input pumps, flush the encoders, drain the chunk
// pumps, then close the graph and its playback sink. Idempotent.
func (c *RecordingController) releaseAll(a *activeRecording) {
	a.releaseOnce.Do(func() {
		_ = a.streams.video.Close()
		if a.streams.device != nil {
			_ = a.streams.device.Stop()
		}
		if a.streams.mic != nil {
			_ = a.streams.mic.Stop()
		}
		<-a.frameDone
		<-a.mixDone

		_ = a.combined.Finish()
		if a.audioOnly != nil {
			_ = a.audioOnly.Finish()
		}
		<-a.combinedChunksDone
		<-a.audioChunksDone

		if a.graph != nil {
			_ = a.graph.Close()
		}
		a.cancel()
		c.events.StreamsReleased()
	})
}

// fail ends the recording on an error: streams are released, buffered
// data is discarded, and the failure is broadcast once.
func (c *RecordingController) fail(a *activeRecording, code domain.ErrorCode, err error) {
	a.failOnce.Do(func() {
		coded := err
		if domain.CodeOf(coded) == "" {
			coded = domain.WrapError(code, "recording failed", err)
		}
		a.setFailure(coded)

		c.releaseAll(a)
		a.combinedAcc.Discard()
		a.audioAcc.Discard()
		_ = os.RemoveAll(a.workDir)
		c.clearCurrent(a)

		if c.machine.Fail() {
			c.events.RecordingFailed(domain.CodeOf(coded), coded.Error())
		}
	})
}

func (c *RecordingController) finalize(a *activeRecording) (domain.RecordingArtifact, error) {
	stamp := a.startedAt.Format("2006-01-02-15-04-05")

	videoName := fmt.Sprintf("recording-%s.%s", stamp, encode.Extension(a.combinedMime))
	videoPath := filepath.Join(c.cfg.OutputDir, videoName)
	videoSize, err := a.combinedAcc.Finalize(videoPath)
	if err != nil {
		return domain.RecordingArtifact{}, err
	}

	artifact := domain.RecordingArtifact{
		ID: a.id,
		Video: domain.BlobHandle{
			Path:     videoPath,
			Filename: videoName,
			MimeType: a.combinedMime,
			Size:     videoSize,
		},
		DurationMs: time.Since(a.startedAt).Milliseconds(),
		RecordedAt: a.startedAt,
		TabID:      a.tab.ID,
		TabTitle:   a.tab.Title,
		TabURL:     a.tab.URL,
	}

	if a.audioOnly != nil {
		audioName := fmt.Sprintf("recording-%s-audio.%s", stamp, encode.Extension(a.audioMime))
		audioPath := filepath.Join(c.cfg.OutputDir, audioName)
		audioSize, err := a.audioAcc.Finalize(audioPath)
		if err != nil {
			_ = os.Remove(videoPath)
			return domain.RecordingArtifact{}, err
		}
		artifact.Audio = &domain.BlobHandle{
			Path:     audioPath,
			Filename: audioName,
			MimeType: a.audioMime,
			Size:     audioSize,
		}
	}

	_ = os.RemoveAll(a.workDir)
	return artifact, nil
}

func (c *RecordingController) getCurrent() (*activeRecording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, domain.NewError(domain.ErrorCodeNoRecording, "no recording in progress")
	}
	return c.current, nil
}

func (c *RecordingController) clearCurrent(a *activeRecording) {
	c.mu.Lock()
	if c.current == a {
		c.current = nil
	}
	c.mu.Unlock()
}
