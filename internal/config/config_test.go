package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Browser.DebugURL != "http://127.0.0.1:9222" {
		t.Fatalf("unexpected debug url: %q", cfg.Browser.DebugURL)
	}
	if cfg.Recording.OutputDir != filepath.Join(home, "Videos", "tabcap") {
		t.Fatalf("unexpected output dir: %q", cfg.Recording.OutputDir)
	}
	if cfg.Recording.FFmpegCommand != "ffmpeg" || cfg.Recording.FrameRate != 30 || cfg.Recording.JPEGQuality != 80 {
		t.Fatalf("unexpected recording config: %+v", cfg.Recording)
	}
	if cfg.Recording.ChunkInterval != time.Second {
		t.Fatalf("unexpected chunk interval: %s", cfg.Recording.ChunkInterval)
	}
	if cfg.Audio.InputFormat != "pulse" || cfg.Audio.DeviceSource != "@DEFAULT_MONITOR@" || cfg.Audio.MicSource != "default" {
		t.Fatalf("unexpected audio sources: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 {
		t.Fatalf("unexpected sample/channels: %+v", cfg.Audio)
	}
	if !cfg.Audio.NoiseSuppression || !cfg.Audio.AutoGain || !cfg.Audio.EchoCancellation {
		t.Fatalf("expected mic conditioning on by default: %+v", cfg.Audio)
	}
	if cfg.Service.SessionFile != filepath.Join(home, ".config", "tabcap", "session.json") {
		t.Fatalf("unexpected session file: %q", cfg.Service.SessionFile)
	}
	if cfg.Service.UploadRetries != 3 || cfg.Service.UploadRetryDelay != 500*time.Millisecond {
		t.Fatalf("unexpected upload config: %+v", cfg.Service)
	}
	if cfg.Meet.PollInterval != 2*time.Second || len(cfg.Meet.Patterns) != 0 {
		t.Fatalf("unexpected meet config: %+v", cfg.Meet)
	}
	if !cfg.Notify.Enabled {
		t.Fatalf("expected notifications on by default")
	}
	if cfg.Hotkey.Toggle != "" {
		t.Fatalf("expected hotkey disabled by default, got %q", cfg.Hotkey.Toggle)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	writeConfigFile(t, filepath.Join(home, ".config", "tabcap", "config.toml"), `
[browser]
debug_url = "http://127.0.0.1:9333"

[recording]
output_dir = "~/captures"
frame_rate = 24
chunk_interval_ms = 250

[audio]
mic_source = "alsa_input.usb-mic"
noise_suppression = false

[service]
base_url = "https://recordings.example.com"
upload_retries = 5

[meet]
poll_interval_ms = 750
patterns = ['zoom.us ^/j/(\d+)']

[notify]
enabled = false

[hotkey]
toggle = "ctrl-shift-F9"
`)

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Browser.DebugURL != "http://127.0.0.1:9333" {
		t.Fatalf("unexpected debug url: %q", cfg.Browser.DebugURL)
	}
	if cfg.Recording.OutputDir != filepath.Join(home, "captures") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Recording.OutputDir)
	}
	if cfg.Recording.FrameRate != 24 || cfg.Recording.ChunkInterval != 250*time.Millisecond {
		t.Fatalf("unexpected recording config: %+v", cfg.Recording)
	}
	if cfg.Recording.JPEGQuality != 80 {
		t.Fatalf("expected untouched default quality, got %d", cfg.Recording.JPEGQuality)
	}
	if cfg.Audio.MicSource != "alsa_input.usb-mic" || cfg.Audio.NoiseSuppression {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if !cfg.Audio.AutoGain {
		t.Fatalf("expected untouched auto gain default")
	}
	if cfg.Service.BaseURL != "https://recordings.example.com" || cfg.Service.UploadRetries != 5 {
		t.Fatalf("unexpected service config: %+v", cfg.Service)
	}
	if cfg.Meet.PollInterval != 750*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.Meet.PollInterval)
	}
	if len(cfg.Meet.Patterns) != 1 || cfg.Meet.Patterns[0] != `zoom.us ^/j/(\d+)` {
		t.Fatalf("unexpected patterns: %v", cfg.Meet.Patterns)
	}
	if cfg.Notify.Enabled {
		t.Fatalf("expected notifications disabled")
	}
	if cfg.Hotkey.Toggle != "ctrl-shift-F9" {
		t.Fatalf("unexpected hotkey: %q", cfg.Hotkey.Toggle)
	}
}

func TestLoadPrefersXDGConfigDir(t *testing.T) {
	home := t.TempDir()
	xdg := filepath.Join(home, "xdg")
	writeConfigFile(t, filepath.Join(home, ".config", "tabcap", "config.toml"), "[browser]\ndebug_url = \"http://home:1\"\n")
	writeConfigFile(t, filepath.Join(xdg, "tabcap", "config.toml"), "[browser]\ndebug_url = \"http://xdg:1\"\n")

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Browser.DebugURL != "http://xdg:1" {
		t.Fatalf("expected XDG config to win, got %q", cfg.Browser.DebugURL)
	}
	if cfg.Service.SessionFile != filepath.Join(xdg, "tabcap", "session.json") {
		t.Fatalf("unexpected session file: %q", cfg.Service.SessionFile)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	writeConfigFile(t, filepath.Join(home, ".config", "tabcap", "config.toml"), `
[recording]
output_dir = "/from/file"
frame_rate = 24
`)

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("TABCAP_OUTPUT_DIR", "~/from-env")
	t.Setenv("TABCAP_FRAME_RATE", "25")
	t.Setenv("TABCAP_SERVICE_URL", "https://env.example.com")
	t.Setenv("TABCAP_NOTIFICATIONS", "off")
	t.Setenv("TABCAP_MEET_POLL_MS", "900")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recording.OutputDir != filepath.Join(home, "from-env") {
		t.Fatalf("expected env override with tilde expansion, got %q", cfg.Recording.OutputDir)
	}
	if cfg.Recording.FrameRate != 25 {
		t.Fatalf("expected env frame rate, got %d", cfg.Recording.FrameRate)
	}
	if cfg.Service.BaseURL != "https://env.example.com" {
		t.Fatalf("unexpected service url: %q", cfg.Service.BaseURL)
	}
	if cfg.Notify.Enabled {
		t.Fatalf("expected notifications off")
	}
	if cfg.Meet.PollInterval != 900*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.Meet.PollInterval)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	home := t.TempDir()
	writeConfigFile(t, filepath.Join(home, ".config", "tabcap", "config.toml"), "[recording\nframe_rate = 24\n")

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for malformed config")
	} else if !strings.Contains(err.Error(), "could not parse") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("TABCAP_FRAME_RATE", "999")
	t.Setenv("TABCAP_JPEG_QUALITY", "0")
	t.Setenv("TABCAP_SAMPLE_RATE", "bad")
	t.Setenv("TABCAP_CHANNELS", "-1")
	t.Setenv("TABCAP_NOTIFICATIONS", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recording.FrameRate != 30 {
		t.Fatalf("expected default frame rate, got %d", cfg.Recording.FrameRate)
	}
	if cfg.Recording.JPEGQuality != 80 {
		t.Fatalf("expected default quality, got %d", cfg.Recording.JPEGQuality)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Fatalf("expected default channels, got %d", cfg.Audio.Channels)
	}
	if !cfg.Notify.Enabled {
		t.Fatalf("expected default notifications on")
	}
}

func writeConfigFile(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
