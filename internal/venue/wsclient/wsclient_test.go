package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

var upgrader = websocket.Upgrader{}

func echoDecoder(raw []byte) ([]venue.Event, error) {
	if string(raw) == "bad" {
		return nil, errors.New("unrecognized frame")
	}
	return []venue.Event{{Kind: venue.OrderUpdateEvent, Venue: venue.Hyperliquid}}, nil
}

func TestSubscribe_DecodesFramesPushedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("tick")))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultConfig(wsURLFor(srv.URL))
	c := New(zerolog.Nop(), venue.Hyperliquid, cfg, echoDecoder)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, venue.OrderUpdateEvent, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no event received before deadline")
	}
}

func TestSubscribe_DecodeErrorSkipsFrameWithoutClosingConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("bad")))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("good")))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultConfig(wsURLFor(srv.URL))
	c := New(zerolog.Nop(), venue.Hyperliquid, cfg, echoDecoder)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, venue.OrderUpdateEvent, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("decode error on first frame must not block the second frame's delivery")
	}
}

func TestSubscribe_ReconnectsAfterServerDropsConnection(t *testing.T) {
	first := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		if first {
			first = false
			conn.Close() // simulate a dropped connection on the first attempt
			return
		}
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("tick")))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultConfig(wsURLFor(srv.URL))
	cfg.ReconnectMinDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 20 * time.Millisecond
	c := New(zerolog.Nop(), venue.Hyperliquid, cfg, echoDecoder)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, venue.OrderUpdateEvent, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("client never reconnected after the first connection was dropped")
	}
}

func wsURLFor(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}
