package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tabcap/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCaptureFilterChain(t *testing.T) {
	t.Parallel()

	if got := captureFilter(ports.AudioConfig{}); got != "" {
		t.Fatalf("expected empty filter chain, got %q", got)
	}
	got := captureFilter(ports.AudioConfig{NoiseSuppression: true, AutoGain: true})
	if got != "afftdn=nr=12,dynaudnorm=f=250:g=15" {
		t.Fatalf("unexpected filter chain: %q", got)
	}
	if got := captureFilter(ports.AudioConfig{EchoCancellation: true}); got != "" {
		t.Fatalf("echo cancellation must not add an ffmpeg filter, got %q", got)
	}
}

func TestProbeMicrophoneGranted(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "mic.sh", "#!/usr/bin/env bash\nprintf 'pcm'\nsleep 2\n")
	access := NewFFMPEGCapture(script).ProbeMicrophone(context.Background(), ports.AudioConfig{})
	if access != ports.MicAccessGranted {
		t.Fatalf("expected granted, got %s", access)
	}
}

func TestProbeMicrophoneDeniedWhenStartFails(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "no-mic.sh", "#!/usr/bin/env bash\necho 'no such source' 1>&2\nexit 1\n")
	access := NewFFMPEGCapture(script).ProbeMicrophone(context.Background(), ports.AudioConfig{})
	if access != ports.MicAccessDenied {
		t.Fatalf("expected denied, got %s", access)
	}
}

func TestProbeMicrophoneUndeterminedWhenSilent(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "silent.sh", "#!/usr/bin/env bash\nsleep 5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	access := NewFFMPEGCapture(script).ProbeMicrophone(ctx, ports.AudioConfig{})
	if access != ports.MicAccessUndetermined {
		t.Fatalf("expected undetermined, got %s", access)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
