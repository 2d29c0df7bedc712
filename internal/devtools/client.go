package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tabcap/internal/domain"
)

// DefaultEndpoint is the standard local debugging endpoint of a
// Chromium browser started with --remote-debugging-port=9222.
const DefaultEndpoint = "http://127.0.0.1:9222"

// Client talks to the browser debugging HTTP endpoint. It implements
// ports.TabDirectory.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultEndpoint
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// List returns the browser's page targets. The endpoint reports targets
// in most-recently-focused order, which List preserves; non-page targets
// (workers, extensions) are dropped.
func (c *Client) List(ctx context.Context) ([]domain.Tab, error) {
	body, err := c.get(ctx, "/json/list")
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}

	var targets []domain.Tab
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("failed to decode tab list: %w", err)
	}

	pages := targets[:0]
	for _, target := range targets {
		if target.Type == "page" {
			pages = append(pages, target)
		}
	}
	return pages, nil
}

// Activate brings a tab to the foreground.
func (c *Client) Activate(ctx context.Context, tabID string) error {
	if _, err := c.get(ctx, "/json/activate/"+tabID); err != nil {
		return fmt.Errorf("failed to activate tab %s: %w", tabID, err)
	}
	return nil
}

// BrowserVersion identifies the debugged browser.
type BrowserVersion struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
}

// Version probes the endpoint. Used by diagnostics to verify the
// browser is reachable.
func (c *Client) Version(ctx context.Context) (BrowserVersion, error) {
	body, err := c.get(ctx, "/json/version")
	if err != nil {
		return BrowserVersion{}, fmt.Errorf("debugging endpoint unreachable: %w", err)
	}

	var version BrowserVersion
	if err := json.Unmarshal(body, &version); err != nil {
		return BrowserVersion{}, fmt.Errorf("failed to decode version: %w", err)
	}
	return version, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("%s", detail)
	}
	return body, nil
}
