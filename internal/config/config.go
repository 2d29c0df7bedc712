package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config stores runtime configuration for the recorder.
type Config struct {
	Browser   BrowserConfig
	Recording RecordingConfig
	Audio     AudioConfig
	Service   ServiceConfig
	Meet      MeetConfig
	Notify    NotifyConfig
	Hotkey    HotkeyConfig
}

type BrowserConfig struct {
	DebugURL string
}

type RecordingConfig struct {
	OutputDir     string
	FFmpegCommand string
	FrameRate     int
	JPEGQuality   int
	ChunkInterval time.Duration
}

type AudioConfig struct {
	InputFormat    string
	DeviceSource   string
	MicSource      string
	PlaybackFormat string
	SampleRate     int
	Channels       int

	NoiseSuppression bool
	AutoGain         bool
	EchoCancellation bool
}

type ServiceConfig struct {
	BaseURL          string
	SessionFile      string
	UploadRetries    int
	UploadRetryDelay time.Duration
}

type MeetConfig struct {
	PollInterval time.Duration
	Patterns     []string
}

type NotifyConfig struct {
	Enabled bool
}

type HotkeyConfig struct {
	Toggle string
}

// fileConfig mirrors Config with toml tags. Optional booleans are
// pointers so an absent key keeps the default instead of forcing false.
type fileConfig struct {
	Browser struct {
		DebugURL string `toml:"debug_url"`
	} `toml:"browser"`
	Recording struct {
		OutputDir       string `toml:"output_dir"`
		FFmpegCommand   string `toml:"ffmpeg_command"`
		FrameRate       int    `toml:"frame_rate"`
		JPEGQuality     int    `toml:"jpeg_quality"`
		ChunkIntervalMS int    `toml:"chunk_interval_ms"`
	} `toml:"recording"`
	Audio struct {
		InputFormat      string `toml:"input_format"`
		DeviceSource     string `toml:"device_source"`
		MicSource        string `toml:"mic_source"`
		PlaybackFormat   string `toml:"playback_format"`
		SampleRate       int    `toml:"sample_rate"`
		Channels         int    `toml:"channels"`
		NoiseSuppression *bool  `toml:"noise_suppression"`
		AutoGain         *bool  `toml:"auto_gain"`
		EchoCancellation *bool  `toml:"echo_cancellation"`
	} `toml:"audio"`
	Service struct {
		BaseURL            string `toml:"base_url"`
		SessionFile        string `toml:"session_file"`
		UploadRetries      int    `toml:"upload_retries"`
		UploadRetryDelayMS int    `toml:"upload_retry_delay_ms"`
	} `toml:"service"`
	Meet struct {
		PollIntervalMS int      `toml:"poll_interval_ms"`
		Patterns       []string `toml:"patterns"`
	} `toml:"meet"`
	Notify struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"notify"`
	Hotkey struct {
		Toggle string `toml:"toggle"`
	} `toml:"hotkey"`
}

// Load resolves configuration from defaults, an optional
// ~/.config/tabcap/config.toml, and TABCAP_* environment overrides,
// in that order.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := defaults(home)

	if path := configFilePath(home); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return Config{}, fmt.Errorf("could not parse %s: %w", path, err)
		}
		applyFile(&cfg, fc, home)
	}

	applyEnv(&cfg, home)

	if cfg.Recording.FrameRate <= 0 || cfg.Recording.FrameRate > 60 {
		cfg.Recording.FrameRate = 30
	}
	if cfg.Recording.JPEGQuality < 1 || cfg.Recording.JPEGQuality > 100 {
		cfg.Recording.JPEGQuality = 80
	}
	if cfg.Recording.ChunkInterval <= 0 {
		cfg.Recording.ChunkInterval = time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 || cfg.Audio.Channels > 2 {
		cfg.Audio.Channels = 2
	}
	if cfg.Service.UploadRetries < 0 {
		cfg.Service.UploadRetries = 3
	}
	if cfg.Service.UploadRetryDelay <= 0 {
		cfg.Service.UploadRetryDelay = 500 * time.Millisecond
	}
	if cfg.Meet.PollInterval <= 0 {
		cfg.Meet.PollInterval = 2 * time.Second
	}

	return cfg, nil
}

func defaults(home string) Config {
	return Config{
		Browser: BrowserConfig{
			DebugURL: "http://127.0.0.1:9222",
		},
		Recording: RecordingConfig{
			OutputDir:     filepath.Join(home, "Videos", "tabcap"),
			FFmpegCommand: "ffmpeg",
			FrameRate:     30,
			JPEGQuality:   80,
			ChunkInterval: time.Second,
		},
		Audio: AudioConfig{
			InputFormat:      "pulse",
			DeviceSource:     "@DEFAULT_MONITOR@",
			MicSource:        "default",
			PlaybackFormat:   "pulse",
			SampleRate:       48000,
			Channels:         2,
			NoiseSuppression: true,
			AutoGain:         true,
			EchoCancellation: true,
		},
		Service: ServiceConfig{
			SessionFile:      filepath.Join(configDir(home), "session.json"),
			UploadRetries:    3,
			UploadRetryDelay: 500 * time.Millisecond,
		},
		Meet: MeetConfig{
			PollInterval: 2 * time.Second,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
	}
}

func applyFile(cfg *Config, fc fileConfig, home string) {
	if fc.Browser.DebugURL != "" {
		cfg.Browser.DebugURL = fc.Browser.DebugURL
	}
	if fc.Recording.OutputDir != "" {
		cfg.Recording.OutputDir = expandTilde(fc.Recording.OutputDir, home)
	}
	if fc.Recording.FFmpegCommand != "" {
		cfg.Recording.FFmpegCommand = fc.Recording.FFmpegCommand
	}
	if fc.Recording.FrameRate > 0 {
		cfg.Recording.FrameRate = fc.Recording.FrameRate
	}
	if fc.Recording.JPEGQuality > 0 {
		cfg.Recording.JPEGQuality = fc.Recording.JPEGQuality
	}
	if fc.Recording.ChunkIntervalMS > 0 {
		cfg.Recording.ChunkInterval = time.Duration(fc.Recording.ChunkIntervalMS) * time.Millisecond
	}
	if fc.Audio.InputFormat != "" {
		cfg.Audio.InputFormat = fc.Audio.InputFormat
	}
	if fc.Audio.DeviceSource != "" {
		cfg.Audio.DeviceSource = fc.Audio.DeviceSource
	}
	if fc.Audio.MicSource != "" {
		cfg.Audio.MicSource = fc.Audio.MicSource
	}
	if fc.Audio.PlaybackFormat != "" {
		cfg.Audio.PlaybackFormat = fc.Audio.PlaybackFormat
	}
	if fc.Audio.SampleRate > 0 {
		cfg.Audio.SampleRate = fc.Audio.SampleRate
	}
	if fc.Audio.Channels > 0 {
		cfg.Audio.Channels = fc.Audio.Channels
	}
	if fc.Audio.NoiseSuppression != nil {
		cfg.Audio.NoiseSuppression = *fc.Audio.NoiseSuppression
	}
	if fc.Audio.AutoGain != nil {
		cfg.Audio.AutoGain = *fc.Audio.AutoGain
	}
	if fc.Audio.EchoCancellation != nil {
		cfg.Audio.EchoCancellation = *fc.Audio.EchoCancellation
	}
	if fc.Service.BaseURL != "" {
		cfg.Service.BaseURL = fc.Service.BaseURL
	}
	if fc.Service.SessionFile != "" {
		cfg.Service.SessionFile = expandTilde(fc.Service.SessionFile, home)
	}
	if fc.Service.UploadRetries > 0 {
		cfg.Service.UploadRetries = fc.Service.UploadRetries
	}
	if fc.Service.UploadRetryDelayMS > 0 {
		cfg.Service.UploadRetryDelay = time.Duration(fc.Service.UploadRetryDelayMS) * time.Millisecond
	}
	if fc.Meet.PollIntervalMS > 0 {
		cfg.Meet.PollInterval = time.Duration(fc.Meet.PollIntervalMS) * time.Millisecond
	}
	if len(fc.Meet.Patterns) > 0 {
		cfg.Meet.Patterns = fc.Meet.Patterns
	}
	if fc.Notify.Enabled != nil {
		cfg.Notify.Enabled = *fc.Notify.Enabled
	}
	if fc.Hotkey.Toggle != "" {
		cfg.Hotkey.Toggle = fc.Hotkey.Toggle
	}
}

func applyEnv(cfg *Config, home string) {
	cfg.Browser.DebugURL = envOrDefault("TABCAP_BROWSER_URL", cfg.Browser.DebugURL)
	cfg.Recording.OutputDir = expandTilde(envOrDefault("TABCAP_OUTPUT_DIR", cfg.Recording.OutputDir), home)
	cfg.Recording.FFmpegCommand = envOrDefault("TABCAP_FFMPEG_COMMAND", cfg.Recording.FFmpegCommand)
	cfg.Recording.FrameRate = envOrDefaultInt("TABCAP_FRAME_RATE", cfg.Recording.FrameRate)
	cfg.Recording.JPEGQuality = envOrDefaultInt("TABCAP_JPEG_QUALITY", cfg.Recording.JPEGQuality)
	if ms := envOrDefaultInt("TABCAP_CHUNK_INTERVAL_MS", 0); ms > 0 {
		cfg.Recording.ChunkInterval = time.Duration(ms) * time.Millisecond
	}
	cfg.Audio.InputFormat = envOrDefault("TABCAP_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.DeviceSource = envOrDefault("TABCAP_DEVICE_SOURCE", cfg.Audio.DeviceSource)
	cfg.Audio.MicSource = envOrDefault("TABCAP_MIC_SOURCE", cfg.Audio.MicSource)
	cfg.Audio.PlaybackFormat = envOrDefault("TABCAP_PLAYBACK_FORMAT", cfg.Audio.PlaybackFormat)
	cfg.Audio.SampleRate = envOrDefaultInt("TABCAP_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("TABCAP_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.NoiseSuppression = envOrDefaultBool("TABCAP_NOISE_SUPPRESSION", cfg.Audio.NoiseSuppression)
	cfg.Audio.AutoGain = envOrDefaultBool("TABCAP_AUTO_GAIN", cfg.Audio.AutoGain)
	cfg.Audio.EchoCancellation = envOrDefaultBool("TABCAP_ECHO_CANCELLATION", cfg.Audio.EchoCancellation)
	cfg.Service.BaseURL = envOrDefault("TABCAP_SERVICE_URL", cfg.Service.BaseURL)
	cfg.Service.SessionFile = expandTilde(envOrDefault("TABCAP_SESSION_FILE", cfg.Service.SessionFile), home)
	cfg.Service.UploadRetries = envOrDefaultInt("TABCAP_UPLOAD_RETRIES", cfg.Service.UploadRetries)
	if ms := envOrDefaultInt("TABCAP_UPLOAD_RETRY_DELAY_MS", 0); ms > 0 {
		cfg.Service.UploadRetryDelay = time.Duration(ms) * time.Millisecond
	}
	if ms := envOrDefaultInt("TABCAP_MEET_POLL_MS", 0); ms > 0 {
		cfg.Meet.PollInterval = time.Duration(ms) * time.Millisecond
	}
	cfg.Notify.Enabled = envOrDefaultBool("TABCAP_NOTIFICATIONS", cfg.Notify.Enabled)
	cfg.Hotkey.Toggle = envOrDefault("TABCAP_HOTKEY", cfg.Hotkey.Toggle)
}

func configDir(home string) string {
	base := firstNonEmpty(os.Getenv("XDG_CONFIG_HOME"), filepath.Join(home, ".config"))
	return filepath.Join(base, "tabcap")
}

func configFilePath(home string) string {
	path := filepath.Join(configDir(home), "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func expandTilde(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
