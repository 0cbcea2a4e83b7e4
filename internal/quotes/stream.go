package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StreamConfig configures WebSocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// StaleAfter bounds how old a cached quote may be before it stops
	// being served. Zero disables staleness checks.
	StaleAfter time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		StaleAfter:        15 * time.Minute,
	}
}

// tick is the wire format of one quote message.
type tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// subscribeMsg is sent after (re)connect to select symbols.
type subscribeMsg struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

type cachedQuote struct {
	price float64
	at    time.Time
}

// Stream maintains a live price cache fed by a WebSocket quote feed.
// It reconnects with exponential backoff and resubscribes to the
// configured symbols after every reconnect.
type Stream struct {
	endpoint string
	config   StreamConfig
	log      zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	symbols   map[string]struct{}
	symbolsMu sync.RWMutex

	cache   map[string]cachedQuote
	cacheMu sync.RWMutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewStream creates a stream, connects to the endpoint and subscribes to
// the given symbols.
func NewStream(ctx context.Context, endpoint string, symbols []string, config *StreamConfig, log zerolog.Logger) (*Stream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &Stream{
		endpoint: endpoint,
		config:   cfg,
		log:      log,
		symbols:  make(map[string]struct{}),
		cache:    make(map[string]cachedQuote),
		done:     make(chan struct{}),
	}
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Compile-time interface check.
var _ Provider = (*Stream)(nil)

// Price returns the last streamed quote for symbol, unless stale.
func (s *Stream) Price(_ context.Context, symbol string) (float64, bool) {
	s.cacheMu.RLock()
	q, ok := s.cache[symbol]
	s.cacheMu.RUnlock()

	if !ok || q.price <= 0 {
		return 0, false
	}
	if s.config.StaleAfter > 0 && time.Since(q.at) > s.config.StaleAfter {
		return 0, false
	}
	return q.price, true
}

// Subscribe adds symbols to the live subscription.
func (s *Stream) Subscribe(symbols ...string) error {
	s.symbolsMu.Lock()
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
	}
	s.symbolsMu.Unlock()
	return s.subscribe()
}

// connect establishes the WebSocket connection.
func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// subscribe sends the current symbol set to the feed.
func (s *Stream) subscribe() error {
	s.symbolsMu.RLock()
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.symbolsMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(subscribeMsg{Action: "subscribe", Symbols: symbols}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads quote messages and updates the cache.
func (s *Stream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			// Connection error - reconnect with exponential backoff
			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (s *Stream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("quote stream reconnect failed")
		return
	}

	if err := s.subscribe(); err != nil {
		s.log.Warn().Err(err).Msg("quote stream resubscribe failed")
		return
	}

	s.log.Info().Msg("quote stream reconnected")
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

// handleMessage parses one feed message and updates the cache.
func (s *Stream) handleMessage(message []byte) {
	var t tick
	if err := json.Unmarshal(message, &t); err != nil {
		s.log.Debug().Err(err).Msg("unparseable quote message")
		return
	}
	if t.Symbol == "" || t.Price <= 0 {
		return
	}

	s.cacheMu.Lock()
	s.cache[t.Symbol] = cachedQuote{price: t.Price, at: time.Now()}
	s.cacheMu.Unlock()
}
