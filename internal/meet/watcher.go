package meet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// Watcher polls the tab directory and tracks live conference tabs,
// broadcasting detected and ended sessions as the set changes.
type Watcher struct {
	tabs     ports.TabDirectory
	events   ports.MeetingEvents
	matcher  *Matcher
	interval time.Duration

	mu     sync.Mutex
	active map[string]domain.Meeting
}

func NewWatcher(tabs ports.TabDirectory, events ports.MeetingEvents, matcher *Matcher, interval time.Duration) *Watcher {
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		tabs:     tabs,
		events:   events,
		matcher:  matcher,
		interval: interval,
		active:   make(map[string]domain.Meeting),
	}
}

// Run polls until the context ends. The first poll happens immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Active returns tracked meetings ordered by detection time.
func (w *Watcher) Active() []domain.Meeting {
	w.mu.Lock()
	meetings := lo.Values(w.active)
	w.mu.Unlock()

	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].DetectedAt.Equal(meetings[j].DetectedAt) {
			return meetings[i].TabID < meetings[j].TabID
		}
		return meetings[i].DetectedAt.Before(meetings[j].DetectedAt)
	})
	return meetings
}

func (w *Watcher) poll(ctx context.Context) {
	tabs, err := w.tabs.List(ctx)
	if err != nil {
		// A flaky poll must not end every tracked meeting.
		return
	}

	matched := lo.FilterMap(tabs, func(tab domain.Tab, _ int) (domain.Meeting, bool) {
		return w.matcher.Match(tab)
	})
	current := lo.KeyBy(matched, func(m domain.Meeting) string { return m.TabID })

	now := time.Now()
	var detected, ended []domain.Meeting

	w.mu.Lock()
	for id, meeting := range current {
		if prev, ok := w.active[id]; ok {
			meeting.DetectedAt = prev.DetectedAt
			current[id] = meeting
			continue
		}
		meeting.DetectedAt = now
		current[id] = meeting
		detected = append(detected, meeting)
	}
	for id, meeting := range w.active {
		if _, ok := current[id]; !ok {
			ended = append(ended, meeting)
		}
	}
	w.active = current
	w.mu.Unlock()

	sortByTab(detected)
	sortByTab(ended)
	for _, meeting := range detected {
		w.events.MeetingDetected(meeting)
	}
	for _, meeting := range ended {
		w.events.MeetingEnded(meeting)
	}
}

func sortByTab(meetings []domain.Meeting) {
	sort.Slice(meetings, func(i, j int) bool { return meetings[i].TabID < meetings[j].TabID })
}
