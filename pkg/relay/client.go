package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

var ErrSceneExists = errors.New("scene already exists on relay")

// Client talks to a relay server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(addr string) (*Client, error) {
	if u, err := url.Parse(addr); err == nil && u.Scheme != "" && u.Host != "" {
		return &Client{baseURL: u, http: http.DefaultClient}, nil
	}
	u, err := url.Parse("http://" + addr)
	if err != nil {
		return nil, fmt.Errorf("invalid relay address: %w", err)
	}
	return &Client{baseURL: u, http: http.DefaultClient}, nil
}

// Latest fetches the saved bytes of a scene.
func (c *Client) Latest(ctx context.Context, sceneID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("scenes", sceneID, "latest").String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from get: %w", err)
	}
	return raw, nil
}

// Create uploads a scene document under sceneID.
func (c *Client) Create(ctx context.Context, sceneID string, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("scenes", sceneID).String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrSceneExists
	}
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}

func (c *Client) syncURL(sceneID string) string {
	u := c.baseURL.JoinPath("scenes", sceneID, "sync")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// ConnectAndSync runs one sync session until the context is cancelled or the
// connection drops.
func (c *Client) ConnectAndSync(ctx context.Context, sceneID string, peer Peer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.syncURL(sceneID), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	if err := Sync(ctx, conn, peer); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	return nil
}

// SyncContinuously reconnects after every dropped session until the context
// is cancelled. newPeer is called per session since sync state does not
// survive a reconnect.
func (c *Client) SyncContinuously(ctx context.Context, sceneID string, newPeer func() Peer) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		if err := c.ConnectAndSync(ctx, sceneID, newPeer()); err != nil {
			slog.Error("failed to sync", "err", err)
		} else {
			slog.Info("finished sync")
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			slog.Info("stopping scheduled sync")
			return
		}
	}
}
