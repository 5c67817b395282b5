package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/net/websocket"
)

// Client is a subscriber connected to a running broadcaster.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the broadcaster at rawURL (ws:// or wss://). When origin is empty it is
// derived from the target host.
func Dial(ctx context.Context, rawURL, origin string) (*Client, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if target.Scheme != "ws" && target.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme must be ws or wss, got %q", shared.ErrInvalidArgument, target.Scheme)
	}

	if origin == "" {
		scheme := "http"
		if target.Scheme == "wss" {
			scheme = "https"
		}
		origin = scheme + "://" + target.Host
	}

	config, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	return &Client{conn: conn}, nil
}

// Receive blocks until the next event arrives.
func (c *Client) Receive() (Event, error) {
	var event Event
	if err := websocket.JSON.Receive(c.conn, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	return event, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
