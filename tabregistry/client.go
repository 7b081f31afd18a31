package tabregistry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/savedtabs/message"
)

// Client drives a remote registry over its HTTP API. It offers the same
// lifecycle and sender surface as *Registry, so a watcher can run in a
// different process from the registry.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the registry at base (e.g.
// "http://127.0.0.1:8765").
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), client: hc}
}

// Sender returns an HTTP message sender bound to tabID.
func (c *Client) Sender(tabID string) message.Sender {
	return message.NewHTTPSender(c.base, tabID, message.WithHTTPClient(c.client))
}

func (c *Client) ResetOnNavigationStart(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodPost, tabID, "/updated")
}

func (c *Client) OnActivated(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodPost, tabID, "/activated")
}

func (c *Client) OnRemoved(ctx context.Context, tabID string) error {
	return c.do(ctx, http.MethodDelete, tabID, "")
}

func (c *Client) do(ctx context.Context, method, tabID, suffix string) error {
	if tabID == "" {
		return message.ErrNoTab
	}
	u := c.base + "/v1/tabs/" + url.PathEscape(tabID) + suffix
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("registry client: new request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry client: %s %s: %w", method, suffix, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registry client: %s %s: status %d", method, u, resp.StatusCode)
	}
	return nil
}
