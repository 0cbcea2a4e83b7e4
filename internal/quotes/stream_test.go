package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStream_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	stream, err := NewStream(ctx, wsURL(server), []string{"AAPL"}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	if stream.closed.Load() {
		t.Error("stream should not be closed")
	}
}

func TestStream_SubscribeAndPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Read subscribe request
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		if sub.Action != "subscribe" {
			t.Errorf("expected subscribe action, got %q", sub.Action)
		}

		// Push one tick per subscribed symbol
		for _, sym := range sub.Symbols {
			if err := conn.WriteJSON(tick{Symbol: sym, Price: 123.45}); err != nil {
				return
			}
		}

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	stream, err := NewStream(ctx, wsURL(server), []string{"AAPL"}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	// Wait for the tick to arrive
	deadline := time.Now().Add(5 * time.Second)
	for {
		if price, ok := stream.Price(ctx, "AAPL"); ok {
			if price != 123.45 {
				t.Errorf("Price(AAPL) = %v; want 123.45", price)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for quote")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Unknown symbol has no quote
	if _, ok := stream.Price(ctx, "MSFT"); ok {
		t.Error("expected no quote for unsubscribed symbol")
	}
}

func TestStream_StaleQuoteNotServed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(tick{Symbol: "AAPL", Price: 100.0})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultStreamConfig()
	cfg.StaleAfter = 50 * time.Millisecond

	ctx := context.Background()
	stream, err := NewStream(ctx, wsURL(server), []string{"AAPL"}, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := stream.Price(ctx, "AAPL"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for quote")
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := stream.Price(ctx, "AAPL"); ok {
		t.Error("expected stale quote to be withheld")
	}
}

func TestStream_IgnoresBadMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(tick{Symbol: "AAPL", Price: -5})
		conn.WriteJSON(tick{Symbol: "AAPL", Price: 99.0})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	stream, err := NewStream(ctx, wsURL(server), []string{"AAPL"}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if price, ok := stream.Price(ctx, "AAPL"); ok {
			if price != 99.0 {
				t.Errorf("Price(AAPL) = %v; want 99", price)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for quote")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
