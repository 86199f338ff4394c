package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"

	"github.com/gorilla/websocket"
)

// Client talks to a running server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base, e.g. "http://127.0.0.1:8420".
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// StopBuild asks the server to stop the running build.
func (c *Client) StopBuild(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/build/stop", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stop build: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stop build: unexpected status %s", resp.Status)
	}
	return nil
}

// Stream dials /v1/stream and forwards snapshots until ctx is done or the
// server closes the connection. The returned channel is closed on exit.
func (c *Client) Stream(ctx context.Context) (<-chan campaign.Snapshot, error) {
	u, err := url.Parse(c.base + "/v1/stream")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	out := make(chan campaign.Snapshot, 16)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(streamWriteWait))
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var msg streamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Get(logging.CategoryServer).Warn("stream read failed: %v", err)
				}
				return
			}
			if msg.Type != "snapshot" || msg.Snapshot == nil {
				continue
			}
			select {
			case out <- *msg.Snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
