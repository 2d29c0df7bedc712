package meet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tabcap/internal/domain"
)

func meetTab(id, room string) domain.Tab {
	return domain.Tab{
		ID:    id,
		Title: "Meet – " + room,
		URL:   "https://meet.google.com/" + room,
		Type:  "page",
	}
}

func TestWatcherDetectsAndEndsMeetings(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabDirectory{}
	events := &fakeMeetingEvents{}
	watcher := NewWatcher(tabs, events, nil, time.Minute)

	tabs.set(meetTab("t1", "abc-defg-hij"), domain.Tab{ID: "t2", URL: "https://example.com", Type: "page"})
	watcher.poll(context.Background())

	detected := events.detectedMeetings()
	if len(detected) != 1 || detected[0].TabID != "t1" || detected[0].RoomCode != "abc-defg-hij" {
		t.Fatalf("unexpected detections: %+v", detected)
	}
	if active := watcher.Active(); len(active) != 1 || active[0].TabID != "t1" {
		t.Fatalf("unexpected active set: %+v", active)
	}

	// Same tabs again: no duplicate broadcasts.
	watcher.poll(context.Background())
	if got := events.detectedMeetings(); len(got) != 1 {
		t.Fatalf("expected one detection total, got %d", len(got))
	}

	tabs.set(domain.Tab{ID: "t2", URL: "https://example.com", Type: "page"})
	watcher.poll(context.Background())

	ended := events.endedMeetings()
	if len(ended) != 1 || ended[0].TabID != "t1" {
		t.Fatalf("unexpected ended: %+v", ended)
	}
	if active := watcher.Active(); len(active) != 0 {
		t.Fatalf("expected empty active set, got %+v", active)
	}
}

func TestWatcherPreservesDetectionTime(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabDirectory{}
	events := &fakeMeetingEvents{}
	watcher := NewWatcher(tabs, events, nil, time.Minute)

	tabs.set(meetTab("t1", "abc-defg-hij"))
	watcher.poll(context.Background())
	first := watcher.Active()[0].DetectedAt
	if first.IsZero() {
		t.Fatalf("expected detection time")
	}

	time.Sleep(5 * time.Millisecond)
	watcher.poll(context.Background())
	if got := watcher.Active()[0].DetectedAt; !got.Equal(first) {
		t.Fatalf("detection time moved: %v -> %v", first, got)
	}
}

func TestWatcherSkipsFailedPolls(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabDirectory{}
	events := &fakeMeetingEvents{}
	watcher := NewWatcher(tabs, events, nil, time.Minute)

	tabs.set(meetTab("t1", "abc-defg-hij"))
	watcher.poll(context.Background())

	tabs.fail(errors.New("connection refused"))
	watcher.poll(context.Background())

	if got := events.endedMeetings(); len(got) != 0 {
		t.Fatalf("outage must not end meetings, got %+v", got)
	}
	if active := watcher.Active(); len(active) != 1 {
		t.Fatalf("active set lost during outage: %+v", active)
	}

	tabs.fail(nil)
	tabs.set()
	watcher.poll(context.Background())
	if got := events.endedMeetings(); len(got) != 1 {
		t.Fatalf("expected end after recovery, got %+v", got)
	}
}

func TestWatcherRunStopsWithContext(t *testing.T) {
	t.Parallel()

	tabs := &fakeTabDirectory{}
	watcher := NewWatcher(tabs, &fakeMeetingEvents{}, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
}

type fakeTabDirectory struct {
	mu   sync.Mutex
	tabs []domain.Tab
	err  error
}

func (f *fakeTabDirectory) List(_ context.Context) ([]domain.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Tab(nil), f.tabs...), nil
}

func (f *fakeTabDirectory) Activate(_ context.Context, _ string) error { return nil }

func (f *fakeTabDirectory) set(tabs ...domain.Tab) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = tabs
}

func (f *fakeTabDirectory) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeMeetingEvents struct {
	mu       sync.Mutex
	detected []domain.Meeting
	ended    []domain.Meeting
}

func (f *fakeMeetingEvents) MeetingDetected(meeting domain.Meeting) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detected = append(f.detected, meeting)
}

func (f *fakeMeetingEvents) MeetingEnded(meeting domain.Meeting) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, meeting)
}

func (f *fakeMeetingEvents) detectedMeetings() []domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Meeting(nil), f.detected...)
}

func (f *fakeMeetingEvents) endedMeetings() []domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Meeting(nil), f.ended...)
}
