// Package logs fetches a session's raw log history from the bot platform.
package logs

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const DefaultTimeout = 30 * time.Second

// Client fetches the ordered log records for a session over HTTP. The
// platform returns one record per conversation turn, in turn order.
type Client struct {
	Hostname string

	httpClient *http.Client
}

func NewClient(hostname string) *Client {
	return &Client{
		Hostname: hostname,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Fetch returns all log records for the session so far. Any non-200 status
// means the logs are unavailable; the fetch is attempted exactly once.
func (c *Client) Fetch(sessionID string) ([]string, error) {
	url := fmt.Sprintf("http://%s/session-logs/%s", c.Hostname, sessionID)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session logs unavailable: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read session logs response: %w", err)
	}

	var records []string
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode session logs: %w", err)
	}

	return records, nil
}
