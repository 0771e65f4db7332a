// Package httpclient posts server-to-server notifications.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single notification when no timeout is configured
const DefaultTimeout = 10 * time.Second

// StatusError reports a non-2xx answer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d", e.URL, e.StatusCode)
}

// Client posts form encoded bodies with a per-call timeout.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a client. A zero timeout selects DefaultTimeout.
func New(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			// notifications must not follow redirects to unregistered endpoints
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		timeout: timeout,
		logger:  logger,
	}
}

// PostForm posts form to target and fails on transport errors and non-2xx answers
func (c *Client) PostForm(ctx context.Context, target string, form url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	c.logger.Debug("Notification delivered", zap.String("url", target), zap.Int("status", resp.StatusCode))
	return nil
}
