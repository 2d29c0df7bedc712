package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tabcap/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	saved := domain.AuthSession{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		Profile:      domain.UserProfile{Name: "Dana", Phone: "+15551234567"},
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file permissions = %o, want 600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.AccessToken != saved.AccessToken || loaded.RefreshToken != saved.RefreshToken {
		t.Fatalf("tokens changed: %+v", loaded)
	}
	if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
		t.Fatalf("expiry changed: %v != %v", loaded.ExpiresAt, saved.ExpiresAt)
	}
	if loaded.Profile != saved.Profile {
		t.Fatalf("profile changed: %+v", loaded.Profile)
	}
}

func TestFileStoreMissingFileIsZeroSession(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	session, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if session.AccessToken != "" || session.RefreshToken != "" {
		t.Fatalf("expected zero session, got %+v", session)
	}
}

func TestFileStoreCreatesParentDirs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "tabcap", "session.json")
	store := NewFileStore(path)
	if err := store.Save(domain.AuthSession{AccessToken: "a"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file: %v", err)
	}
}

func TestFileStoreClear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	if err := store.Save(domain.AuthSession{AccessToken: "a"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if session, err := store.Load(); err != nil || session.AccessToken != "" {
		t.Fatalf("expected cleared session, got %+v err %v", session, err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}
