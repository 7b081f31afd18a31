package message

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers messages from one tab's observer to the registry. A
// Sender is bound to a single tab; the tab id travels with the transport.
type Sender interface {
	Send(ctx context.Context, m FoundCount) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, m FoundCount) error

func (f SenderFunc) Send(ctx context.Context, m FoundCount) error { return f(ctx, m) }

// HTTPSender posts messages to a remote registry at
// {base}/v1/tabs/{tabID}/messages. It never retries: a lost report is
// superseded by the next scan.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// HTTPSenderOption configures an HTTPSender.
type HTTPSenderOption func(*HTTPSender)

// WithHTTPClient sets the client used for delivery. Default: 5s timeout.
func WithHTTPClient(c *http.Client) HTTPSenderOption {
	return func(s *HTTPSender) { s.client = c }
}

// NewHTTPSender creates a sender for tabID against the registry at base.
func NewHTTPSender(base, tabID string, opts ...HTTPSenderOption) *HTTPSender {
	s := &HTTPSender{
		endpoint: strings.TrimRight(base, "/") + "/v1/tabs/" + url.PathEscape(tabID) + "/messages",
		client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *HTTPSender) Send(ctx context.Context, m FoundCount) error {
	body, err := Encode(m)
	if err != nil {
		return fmt.Errorf("message: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("message: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("message: send: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("message: send: status %d", resp.StatusCode)
	}
	return nil
}
