// Package wsclient is a reusable gorilla/websocket subscription helper a
// concrete venue adapter can embed to satisfy
// Adapter.SubscribePositionsAndOrders. It owns the connection, reconnect,
// and ping loops; the embedding adapter supplies a Decoder that turns raw
// frames into venue.Event values.
//
// No concrete venue wires this in this repository (internal/venue/fake
// is fully in-memory), but the contract is exercised by its own tests so a
// real adapter can adopt it without guesswork.
package wsclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Decoder turns one raw WebSocket frame into zero or more events. A nil
// slice with a nil error means "not an event frame" (e.g. a pong, an ack).
type Decoder func(raw []byte) ([]venue.Event, error)

// Config controls reconnect/ping cadence.
type Config struct {
	URL               string
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
}

func DefaultConfig(wsURL string) Config {
	return Config{
		URL:               wsURL,
		HandshakeTimeout:  30 * time.Second,
		PingInterval:      20 * time.Second,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
	}
}

// Client maintains a single WebSocket connection with automatic reconnect,
// decoding frames into venue.Event and fanning them out on a channel.
type Client struct {
	log     zerolog.Logger
	venue   venue.Name
	cfg     Config
	decode  Decoder

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(log zerolog.Logger, v venue.Name, cfg Config, decode Decoder) *Client {
	return &Client{log: log, venue: v, cfg: cfg, decode: decode}
}

// Subscribe connects (reconnecting with exponential backoff on drop) and
// returns a channel of decoded events, closed when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context) (<-chan venue.Event, error) {
	out := make(chan venue.Event, 64)
	go c.run(ctx, out)
	return out, nil
}

func (c *Client) run(ctx context.Context, out chan<- venue.Event) {
	defer close(out)
	delay := c.cfg.ReconnectMinDelay

	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.connectAndPump(ctx, out); err != nil {
			c.log.Warn().Str("venue", string(c.venue)).Err(err).Dur("retry_in", delay).Msg("websocket connection dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.cfg.ReconnectMaxDelay {
			delay = c.cfg.ReconnectMaxDelay
		}
	}
}

func (c *Client) connectAndPump(ctx context.Context, out chan<- venue.Event) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.cfg.HandshakeTimeout
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	c.log.Info().Str("venue", string(c.venue)).Str("url", c.cfg.URL).Msg("websocket connected")

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		events, err := c.decode(raw)
		if err != nil {
			c.log.Warn().Str("venue", string(c.venue)).Err(err).Msg("websocket frame decode failed, skipping")
			continue
		}
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
