package meet

import (
	"strings"
	"testing"

	"tabcap/internal/domain"
)

func TestMatcherRecognizesMeetRooms(t *testing.T) {
	t.Parallel()

	matcher := DefaultMatcher()
	cases := []struct {
		name string
		tab  domain.Tab
		want string
	}{
		{
			name: "room url",
			tab:  domain.Tab{ID: "t1", URL: "https://meet.google.com/abc-defg-hij", Type: "page"},
			want: "abc-defg-hij",
		},
		{
			name: "room url with query",
			tab:  domain.Tab{ID: "t2", URL: "https://meet.google.com/abc-defg-hij?authuser=1", Type: "page"},
			want: "abc-defg-hij",
		},
		{
			name: "uppercase host",
			tab:  domain.Tab{ID: "t3", URL: "https://MEET.GOOGLE.COM/xyz-abcd-efg", Type: "page"},
			want: "xyz-abcd-efg",
		},
		{
			name: "landing page",
			tab:  domain.Tab{ID: "t4", URL: "https://meet.google.com/landing", Type: "page"},
		},
		{
			name: "home page",
			tab:  domain.Tab{ID: "t5", URL: "https://meet.google.com/", Type: "page"},
		},
		{
			name: "other host",
			tab:  domain.Tab{ID: "t6", URL: "https://example.com/abc-defg-hij", Type: "page"},
		},
		{
			name: "non page target",
			tab:  domain.Tab{ID: "t7", URL: "https://meet.google.com/abc-defg-hij", Type: "iframe"},
		},
		{
			name: "garbage url",
			tab:  domain.Tab{ID: "t8", URL: "::not-a-url", Type: "page"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			meeting, ok := matcher.Match(tc.tab)
			if tc.want == "" {
				if ok {
					t.Fatalf("expected no match, got %+v", meeting)
				}
				return
			}
			if !ok {
				t.Fatalf("expected match")
			}
			if meeting.RoomCode != tc.want {
				t.Fatalf("room = %q, want %q", meeting.RoomCode, tc.want)
			}
			if meeting.TabID != tc.tab.ID || meeting.URL != tc.tab.URL {
				t.Fatalf("unexpected meeting identity: %+v", meeting)
			}
		})
	}
}

func TestMatcherCleansMeetTitles(t *testing.T) {
	t.Parallel()

	matcher := DefaultMatcher()
	cases := []struct {
		title string
		want  string
	}{
		{"Meet – Weekly standup", "Weekly standup"},
		{"Meet - abc-defg-hij", "abc-defg-hij"},
		{"Quarterly review", "Quarterly review"},
		{"", "abc-defg-hij"},
		{"Meet – ", "abc-defg-hij"},
	}

	for _, tc := range cases {
		meeting, ok := matcher.Match(domain.Tab{
			ID:    "t1",
			Title: tc.title,
			URL:   "https://meet.google.com/abc-defg-hij",
			Type:  "page",
		})
		if !ok {
			t.Fatalf("expected match for title %q", tc.title)
		}
		if meeting.Title != tc.want {
			t.Fatalf("title %q cleaned to %q, want %q", tc.title, meeting.Title, tc.want)
		}
	}
}

func TestMatcherExtraPatterns(t *testing.T) {
	t.Parallel()

	matcher, err := NewMatcher([]string{
		"",
		"# corporate providers",
		`zoom.us ^/j/(\d+)`,
	})
	if err != nil {
		t.Fatalf("matcher failed: %v", err)
	}

	meeting, ok := matcher.Match(domain.Tab{ID: "z1", URL: "https://zoom.us/j/123456789", Type: "page"})
	if !ok || meeting.RoomCode != "123456789" {
		t.Fatalf("expected zoom match, got ok=%v meeting=%+v", ok, meeting)
	}

	if _, ok := matcher.Match(domain.Tab{ID: "g1", URL: "https://meet.google.com/abc-defg-hij", Type: "page"}); !ok {
		t.Fatalf("builtin provider lost after extension")
	}
}

func TestMatcherRejectsBadPatterns(t *testing.T) {
	t.Parallel()

	if _, err := NewMatcher([]string{"zoom.us"}); err == nil || !strings.Contains(err.Error(), "pattern 1") {
		t.Fatalf("expected field count error, got %v", err)
	}
	if _, err := NewMatcher([]string{`zoom.us ^/j/([\d`}); err == nil || !strings.Contains(err.Error(), "invalid path pattern") {
		t.Fatalf("expected compile error, got %v", err)
	}
}
