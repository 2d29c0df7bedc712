package meet

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"tabcap/internal/domain"
)

// Matcher recognizes conference tabs by URL. Google Meet is built in;
// extra patterns from config extend recognition to other providers.
type Matcher struct {
	providers []provider
}

type provider struct {
	host string
	path *regexp.Regexp
}

// Meet rooms are three-four-three lowercase letter groups.
var meetRoomPath = regexp.MustCompile(`^/([a-z]{3}-[a-z]{4}-[a-z]{3})(?:/|$)`)

var meetTitlePrefix = regexp.MustCompile(`^Meet\s*[-–—]\s*`)

func googleMeet() provider {
	return provider{host: "meet.google.com", path: meetRoomPath}
}

// DefaultMatcher recognizes Google Meet rooms only.
func DefaultMatcher() *Matcher {
	return &Matcher{providers: []provider{googleMeet()}}
}

// NewMatcher compiles extra provider patterns on top of the builtin
// set. Each pattern is one "host path-regexp" line; blank lines and
// lines starting with # are skipped. The first capture group of the
// path regexp, when present, names the room.
func NewMatcher(extra []string) (*Matcher, error) {
	m := DefaultMatcher()
	for i, raw := range extra {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := parseProvider(line)
		if err != nil {
			return nil, fmt.Errorf("meeting pattern %d: %w", i+1, err)
		}
		m.providers = append(m.providers, p)
	}
	return m, nil
}

func parseProvider(line string) (provider, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return provider{}, errors.New(`want "host path-pattern"`)
	}
	re, err := regexp.Compile(fields[1])
	if err != nil {
		return provider{}, fmt.Errorf("invalid path pattern: %w", err)
	}
	return provider{host: strings.ToLower(fields[0]), path: re}, nil
}

// Match reports whether the tab is a live conference session. The
// returned meeting carries no detection time; the watcher stamps it.
func (m *Matcher) Match(tab domain.Tab) (domain.Meeting, bool) {
	if tab.Type != "" && tab.Type != "page" {
		return domain.Meeting{}, false
	}
	u, err := url.Parse(tab.URL)
	if err != nil {
		return domain.Meeting{}, false
	}
	host := strings.ToLower(u.Hostname())

	for _, p := range m.providers {
		if host != p.host {
			continue
		}
		groups := p.path.FindStringSubmatch(u.Path)
		if groups == nil {
			continue
		}
		room := groups[0]
		if len(groups) > 1 && groups[1] != "" {
			room = groups[1]
		}
		room = strings.Trim(room, "/")
		return domain.Meeting{
			TabID:    tab.ID,
			Title:    cleanTitle(tab.Title, room),
			RoomCode: room,
			URL:      tab.URL,
		}, true
	}
	return domain.Meeting{}, false
}

// cleanTitle strips the provider boilerplate Meet puts in front of the
// meeting name, falling back to the room code for untitled sessions.
func cleanTitle(title, room string) string {
	cleaned := strings.TrimSpace(meetTitlePrefix.ReplaceAllString(title, ""))
	if cleaned == "" {
		return room
	}
	return cleaned
}
