// Package presence reads a user's presence from the Microsoft Graph API.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"presencelight/internal/core"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com"
	DefaultTimeout = 5 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for logs
	maxErrorBody = 512
)

// GraphClient implements core.PresenceClient for a single subject
type GraphClient struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGraphClient creates a new presence client for userID
func NewGraphClient(baseURL, userID string, timeout time.Duration, logger *slog.Logger) *GraphClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GraphClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "presence-client"),
	}
}

// presenceResponse uses pointers so absent fields can be told apart
type presenceResponse struct {
	Availability *string `json:"availability"`
	Activity     *string `json:"activity"`
}

// GetPresence fetches the subject's presence. Any transport failure,
// non-2xx status, or malformed body is returned as a presence-unavailable
// error; missing fields default to core.PresenceUnknown.
func (c *GraphClient) GetPresence(ctx context.Context, token string) (core.PresenceStatus, error) {
	u := fmt.Sprintf("%s/v1.0/users/%s/presence", c.baseURL, url.PathEscape(c.userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.PresenceStatus{}, core.PresenceUnavailable("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching presence", "url", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.PresenceStatus{}, core.PresenceUnavailable("request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.PresenceStatus{}, core.PresenceUnavailable("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.PresenceStatus{}, core.PresenceUnavailable("request",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), maxErrorBody)))
	}

	var parsed presenceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.PresenceStatus{}, core.PresenceUnavailable("parse response", err)
	}

	status := core.PresenceStatus{
		Availability: valueOr(parsed.Availability, core.PresenceUnknown),
		Activity:     valueOr(parsed.Activity, core.PresenceUnknown),
	}

	c.logger.Debug("presence received",
		"availability", status.Availability,
		"activity", status.Activity,
	)

	return status, nil
}

func valueOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure GraphClient implements core.PresenceClient
var _ core.PresenceClient = (*GraphClient)(nil)
