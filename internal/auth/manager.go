package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

const (
	// refreshMargin renews the access token this long before expiry.
	refreshMargin = 2 * time.Minute
	checkInterval = 30 * time.Second
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Manager owns the sign-in lifecycle: the OTP exchange, the persisted
// token session, access-token refresh, and state broadcasts.
type Manager struct {
	api    API
	store  ports.TokenStore
	events ports.AuthEvents

	margin   time.Duration
	interval time.Duration

	// refreshMu serializes refresh calls so concurrent token requests
	// hit the service once.
	refreshMu sync.Mutex

	mu      sync.Mutex
	session domain.AuthSession
	phase   domain.AuthPhase
}

func NewManager(api API, store ports.TokenStore, events ports.AuthEvents) *Manager {
	return &Manager{
		api:      api,
		store:    store,
		events:   events,
		margin:   refreshMargin,
		interval: checkInterval,
		phase:    domain.AuthPhaseSignedOut,
	}
}

// Restore loads the persisted session, if any. An expired session is
// restored anyway; the refresh loop renews or drops it.
func (m *Manager) Restore() error {
	session, err := m.store.Load()
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "failed to load saved session", err)
	}
	if session.AccessToken == "" && session.RefreshToken == "" {
		return nil
	}
	m.setSession(session, domain.AuthPhaseSignedIn)
	return nil
}

// State returns the sign-in snapshot published to the UI.
func (m *Manager) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// RequestCode asks the service to text a sign-in code.
func (m *Manager) RequestCode(ctx context.Context, phone string) error {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return err
	}
	if err := m.api.RequestCode(ctx, normalized); err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "failed to send sign-in code", err)
	}

	m.mu.Lock()
	m.phase = domain.AuthPhaseCodeSent
	state := m.stateLocked()
	m.mu.Unlock()
	m.events.AuthStateChanged(state)
	return nil
}

// VerifyCode exchanges the texted code for a session and persists it.
func (m *Manager) VerifyCode(ctx context.Context, phone, code string) error {
	normalized, err := normalizePhone(phone)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.NewError(domain.ErrorCodeAuth, "enter the code you received")
	}

	session, err := m.api.VerifyCode(ctx, normalized, code)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "sign-in code rejected", err)
	}
	if err := m.store.Save(session); err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "failed to save session", err)
	}
	m.setSession(session, domain.AuthPhaseSignedIn)
	return nil
}

// Logout clears the session everywhere.
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.setSession(domain.AuthSession{}, domain.AuthPhaseSignedOut)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "failed to clear saved session", err)
	}
	return nil
}

// Token returns a live access token, refreshing first when the current
// one is at or past its margin. Implements the upload token source.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session.AccessToken == "" && session.RefreshToken == "" {
		return "", domain.NewError(domain.ErrorCodeAuth, "not signed in")
	}
	if !session.Expired(m.margin) {
		return session.AccessToken, nil
	}

	if err := m.refreshSession(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	token := m.session.AccessToken
	m.mu.Unlock()
	return token, nil
}

// RunRefresh keeps the session fresh until the context ends.
func (m *Manager) RunRefresh(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		m.mu.Lock()
		session := m.session
		m.mu.Unlock()
		if session.RefreshToken == "" || !session.Expired(m.margin) {
			continue
		}
		// Transient failures retry on the next tick; a rejected token
		// drops the session inside refreshSession.
		_ = m.refreshSession(ctx)
	}
}

func (m *Manager) refreshSession(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	current := m.session
	m.mu.Unlock()

	if current.RefreshToken == "" {
		return domain.NewError(domain.ErrorCodeAuth, "not signed in")
	}
	if !current.Expired(m.margin) {
		// A concurrent caller already renewed it.
		return nil
	}

	renewed, err := m.api.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if isRejected(err) {
			m.dropSession()
			return domain.WrapError(domain.ErrorCodeAuth, "session expired, sign in again", err)
		}
		return domain.WrapError(domain.ErrorCodeAuth, "failed to refresh session", err)
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = current.RefreshToken
	}

	if err := m.store.Save(renewed); err != nil {
		return domain.WrapError(domain.ErrorCodeAuth, "failed to save session", err)
	}
	m.setSession(renewed, domain.AuthPhaseSignedIn)
	return nil
}

func (m *Manager) dropSession() {
	_ = m.store.Clear()
	m.setSession(domain.AuthSession{}, domain.AuthPhaseSignedOut)
}

func (m *Manager) setSession(session domain.AuthSession, phase domain.AuthPhase) {
	m.mu.Lock()
	m.session = session
	m.phase = phase
	state := m.stateLocked()
	m.mu.Unlock()
	m.events.AuthStateChanged(state)
}

func (m *Manager) stateLocked() domain.AuthState {
	state := domain.AuthState{Phase: m.phase}
	if m.phase == domain.AuthPhaseSignedIn {
		profile := m.session.Profile
		expires := m.session.ExpiresAt
		state.Profile = &profile
		state.ExpiresAt = &expires
	}
	return state
}

func normalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	if !phonePattern.MatchString(cleaned) {
		return "", domain.NewError(domain.ErrorCodeAuth, "enter a valid phone number")
	}
	return cleaned, nil
}

func isRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
