// Package hosted talks to the hosted backend that owns notification storage.
package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fanzone/internal/domain"

	"golang.org/x/oauth2"
)

// NotificationClient fetches the notification list for a session from the
// backend's REST API.
type NotificationClient struct {
	baseURL string
	timeout time.Duration
	base    http.RoundTripper
}

type listResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

func NewNotificationClient(baseURL string, timeout time.Duration) *NotificationClient {
	return &NotificationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		base:    http.DefaultTransport,
	}
}

// WithTransport swaps the underlying round tripper, mainly for tests.
func (c *NotificationClient) WithTransport(rt http.RoundTripper) *NotificationClient {
	c.base = rt
	return c
}

func (c *NotificationClient) httpClient(token string) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}
}

// ListNotifications returns every notification visible to the session.
func (c *NotificationClient) ListNotifications(ctx context.Context, token string) ([]domain.Notification, error) {
	if token == "" {
		return nil, domain.ErrMissingSession
	}

	endpoint := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient(token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	return out.Notifications, nil
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notifications request failed with status %d: %s", e.StatusCode, e.Body)
}
