package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"tabcap/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	services, err := Build(noopSinks())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if services.Controller == nil {
		t.Fatal("expected controller")
	}
	if services.Tabs == nil || services.Watcher == nil || services.Checker == nil {
		t.Fatalf("incomplete services: %+v", services)
	}
	if services.Auth == nil || services.Uploader == nil || services.Notifier == nil {
		t.Fatalf("incomplete services: %+v", services)
	}
	if services.Auth.State().Phase != domain.AuthPhaseSignedOut {
		t.Fatalf("expected signed out on a fresh home, got %+v", services.Auth.State())
	}
}

func TestBuildFailsOnBadMeetPattern(t *testing.T) {
	home := t.TempDir()
	cfgPath := filepath.Join(home, ".config", "tabcap", "config.toml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(cfgPath, []byte("[meet]\npatterns = [\"onlyhost\"]\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	if _, err := Build(noopSinks()); err == nil {
		t.Fatal("expected build error for malformed meeting pattern")
	}
}

func TestBuildRestoresSavedSession(t *testing.T) {
	home := t.TempDir()
	sessionPath := filepath.Join(home, ".config", "tabcap", "session.json")
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	session := `{
  "accessToken": "access-1",
  "refreshToken": "refresh-1",
  "expiresAt": "2099-01-01T00:00:00Z",
  "profile": {"name": "Dana", "phone": "+15551234567"}
}`
	if err := os.WriteFile(sessionPath, []byte(session), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	services, err := Build(noopSinks())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	state := services.Auth.State()
	if state.Phase != domain.AuthPhaseSignedIn {
		t.Fatalf("expected restored session, got %+v", state)
	}
	if state.Profile == nil || state.Profile.Name != "Dana" {
		t.Fatalf("expected restored profile, got %+v", state.Profile)
	}
}

func noopSinks() Sinks {
	return Sinks{
		Recording: noopRecordingEvents{},
		Meetings:  noopMeetingEvents{},
		Auth:      noopAuthEvents{},
	}
}

type noopRecordingEvents struct{}

func (noopRecordingEvents) RecordingStateChanged(_ domain.RecordingState) {}
func (noopRecordingEvents) MicrophoneFailed(_ string)                     {}
func (noopRecordingEvents) MemoryWarning(_ int64)                         {}
func (noopRecordingEvents) StreamsReleased()                              {}
func (noopRecordingEvents) RecordingComplete(_ domain.RecordingArtifact)  {}
func (noopRecordingEvents) RecordingFailed(_ domain.ErrorCode, _ string)  {}

type noopMeetingEvents struct{}

func (noopMeetingEvents) MeetingDetected(_ domain.Meeting) {}
func (noopMeetingEvents) MeetingEnded(_ domain.Meeting)    {}

type noopAuthEvents struct{}

func (noopAuthEvents) AuthStateChanged(_ domain.AuthState) {}
