package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tabcap/internal/domain"
	"tabcap/internal/usecase"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeTabUnavailable:        "Tab is unavailable",
		domain.ErrorCodeUnsupportedTarget:     "This page cannot be captured",
		domain.ErrorCodeTabActivationFailed:   "Could not focus the tab",
		domain.ErrorCodeStreamIDUnavailable:   "Tab capture did not start",
		domain.ErrorCodeMicrophoneUnavailable: "Microphone unavailable",
		domain.ErrorCodeAudioGraph:            "Audio mixing failed",
		domain.ErrorCodeEncoding:              "Recording encoder failed",
		domain.ErrorCodeAlreadyRecording:      "A recording is already running",
		domain.ErrorCodeNoRecording:           "No recording in progress",
		domain.ErrorCodeStartup:               "Startup failed",
		domain.ErrorCodeAuth:                  "Sign-in required",
		domain.ErrorCodeUpload:                "Upload failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetRecordingStateWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	state := app.GetRecordingState()
	if state.Phase != domain.PhaseIdle || state.IsRecording {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestGetAuthStateWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	if state := app.GetAuthState(); state.Phase != domain.AuthPhaseSignedOut {
		t.Fatalf("unexpected auth state: %+v", state)
	}
}

func TestActiveMeetingsWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	if meetings := app.ActiveMeetings(); meetings != nil {
		t.Fatalf("expected no meetings, got %+v", meetings)
	}
}

func TestGetDiagnosticsWhenBootFailed(t *testing.T) {
	t.Parallel()

	app := &App{bootErr: errors.New("config broken")}
	report := app.GetDiagnostics()
	if !report.HasFailures {
		t.Fatalf("expected failing report: %+v", report)
	}
	if len(report.Items) != 1 || report.Items[0].ID != "startup" {
		t.Fatalf("expected startup item: %+v", report.Items)
	}
	if report.Items[0].Message != "config broken" {
		t.Fatalf("unexpected message: %q", report.Items[0].Message)
	}
}

func TestUploadLastRecordingWithoutArtifact(t *testing.T) {
	t.Parallel()

	app := &App{
		controller: usecase.NewRecordingController(nil, nil, nil, nil, nil, nil, nil, usecase.Config{}),
	}

	_, err := app.UploadLastRecording()
	if domain.CodeOf(err) != domain.ErrorCodeNoRecording {
		t.Fatalf("expected no-recording error, got %v", err)
	}
}

func TestSaveRecordingAsWithoutArtifact(t *testing.T) {
	t.Parallel()

	app := &App{
		controller: usecase.NewRecordingController(nil, nil, nil, nil, nil, nil, nil, usecase.Config{}),
	}

	_, err := app.SaveRecordingAs()
	if domain.CodeOf(err) != domain.ErrorCodeNoRecording {
		t.Fatalf("expected no-recording error, got %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.webm")
	dst := filepath.Join(dir, "dst.webm")
	if err := os.WriteFile(src, []byte("container bytes"), 0o644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if string(got) != "container bytes" {
		t.Fatalf("unexpected copy contents: %q", got)
	}

	if err := copyFile(filepath.Join(dir, "missing.webm"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRecordingCompleteTracksArtifact(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.RecordingComplete(domain.RecordingArtifact{
		ID:    "rec-1",
		Video: domain.BlobHandle{Path: "/tmp/recording.webm", Filename: "recording.webm"},
	})

	app.mu.Lock()
	defer app.mu.Unlock()
	if app.lastArtifact == nil || app.lastArtifact.ID != "rec-1" {
		t.Fatalf("expected tracked artifact, got %+v", app.lastArtifact)
	}
}

func TestSinksAreSafeBeforeStartup(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.RecordingStateChanged(domain.RecordingState{Phase: domain.PhaseRecording})
	app.MicrophoneFailed("mic gone")
	app.MemoryWarning(100 << 20)
	app.StreamsReleased()
	app.RecordingFailed(domain.ErrorCodeEncoding, "boom")
	app.MeetingDetected(domain.Meeting{Title: "Weekly Sync"})
	app.MeetingEnded(domain.Meeting{Title: "Weekly Sync"})
	app.AuthStateChanged(domain.AuthState{Phase: domain.AuthPhaseSignedOut})
}
