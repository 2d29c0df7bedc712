package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tabcap/internal/domain"
)

// API is the remote auth service surface the manager drives.
type API interface {
	RequestCode(ctx context.Context, phone string) error
	VerifyCode(ctx context.Context, phone, code string) (domain.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (domain.AuthSession, error)
}

// APIError is a non-2xx reply from the auth service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("auth service replied %d", e.Status)
	}
	return fmt.Sprintf("auth service replied %d: %s", e.Status, e.Body)
}

// Client implements API over the service's JSON endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// RequestCode asks the service to text a sign-in code to the phone.
func (c *Client) RequestCode(ctx context.Context, phone string) error {
	return c.post(ctx, "/auth/otp/request", map[string]string{"phone": phone}, nil)
}

// VerifyCode exchanges the texted code for a token session.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (domain.AuthSession, error) {
	var reply sessionReply
	err := c.post(ctx, "/auth/otp/verify", map[string]string{"phone": phone, "code": code}, &reply)
	if err != nil {
		return domain.AuthSession{}, err
	}
	return reply.toSession(), nil
}

// Refresh exchanges a refresh token for a renewed session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.AuthSession, error) {
	var reply sessionReply
	err := c.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &reply)
	if err != nil {
		return domain.AuthSession{}, err
	}
	return reply.toSession(), nil
}

type sessionReply struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"`
	Profile      domain.UserProfile `json:"profile"`
}

func (r sessionReply) toSession() domain.AuthSession {
	return domain.AuthSession{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
		Profile:      r.Profile,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
