package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// Client posts run events to a dashboard server's /api/event endpoint.
// A zero-value Client with an empty BaseURL is a no-op, so callers can
// embed it unconditionally and only wire a BaseURL when a dashboard is
// actually running.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client posting to baseURL. An empty baseURL yields
// a Client whose Post calls are silently no-ops.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// Post sends a typed event to the dashboard. Errors are not fatal to the
// caller's pipeline run; a dashboard that isn't listening shouldn't stop
// a classify/acquire/screen run.
func (c *Client) Post(eventType string, data interface{}) error {
	if c == nil || c.BaseURL == "" {
		return nil
	}
	body, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(c.BaseURL+"/api/event", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
