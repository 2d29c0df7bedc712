package bootstrap

import (
	"context"

	"tabcap/internal/audio"
	"tabcap/internal/auth"
	"tabcap/internal/config"
	"tabcap/internal/devtools"
	"tabcap/internal/diagnostics"
	"tabcap/internal/encode"
	"tabcap/internal/meet"
	"tabcap/internal/notify"
	"tabcap/internal/ports"
	"tabcap/internal/upload"
	"tabcap/internal/usecase"
)

// Sinks collects the event receivers the frontend or CLI provides.
type Sinks struct {
	Recording ports.RecordingEvents
	Meetings  ports.MeetingEvents
	Auth      ports.AuthEvents
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Tabs       ports.TabDirectory
	Controller *usecase.RecordingController
	Auth       *auth.Manager
	Uploader   *upload.Uploader
	Watcher    *meet.Watcher
	Checker    *diagnostics.Checker
	Notifier   *notify.Desktop
}

// Build wires all backend dependencies for the current runtime.
func Build(sinks Sinks) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	matcher, err := meet.NewMatcher(cfg.Meet.Patterns)
	if err != nil {
		return Services{}, err
	}

	client := devtools.NewClient(cfg.Browser.DebugURL)

	micCapture := audio.NewFFMPEGCapture(cfg.Recording.FFmpegCommand)
	micConfig := ports.AudioConfig{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		InputFormat:      cfg.Audio.InputFormat,
		InputDevice:      cfg.Audio.MicSource,
		NoiseSuppression: cfg.Audio.NoiseSuppression,
		AutoGain:         cfg.Audio.AutoGain,
		EchoCancellation: cfg.Audio.EchoCancellation,
	}

	controller := usecase.NewRecordingController(
		client,
		devtools.NewScreencastSource(),
		audio.NewFFMPEGCapture(cfg.Recording.FFmpegCommand),
		micCapture,
		audio.NewSpeakerSink(cfg.Recording.FFmpegCommand, cfg.Audio.PlaybackFormat),
		encode.NewFactory(cfg.Recording.FFmpegCommand),
		sinks.Recording,
		usecase.Config{
			FrameRate:     cfg.Recording.FrameRate,
			JPEGQuality:   cfg.Recording.JPEGQuality,
			ChunkInterval: cfg.Recording.ChunkInterval,
			OutputDir:     cfg.Recording.OutputDir,
			DeviceAudio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.DeviceSource,
			},
			MicAudio: micConfig,
		},
	)

	manager := auth.NewManager(
		auth.NewClient(cfg.Service.BaseURL),
		auth.NewFileStore(cfg.Service.SessionFile),
		sinks.Auth,
	)
	// A corrupt session file must not block startup; it just means
	// signed out.
	_ = manager.Restore()

	uploader := upload.NewUploader(upload.Config{
		BaseURL:    cfg.Service.BaseURL,
		MaxRetries: cfg.Service.UploadRetries,
		RetryDelay: cfg.Service.UploadRetryDelay,
	}, manager)

	checker := diagnostics.NewChecker(
		func(ctx context.Context) (string, error) {
			version, err := client.Version(ctx)
			if err != nil {
				return "", err
			}
			return version.Browser, nil
		},
		func(ctx context.Context) ports.MicAccess {
			return micCapture.ProbeMicrophone(ctx, micConfig)
		},
		manager.State,
	)

	return Services{
		Config:     cfg,
		Tabs:       client,
		Controller: controller,
		Auth:       manager,
		Uploader:   uploader,
		Watcher:    meet.NewWatcher(client, sinks.Meetings, matcher, cfg.Meet.PollInterval),
		Checker:    checker,
		Notifier:   notify.NewDesktop(cfg.Notify.Enabled),
	}, nil
}
