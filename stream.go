package qontak

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// StreamEnvelope is the wire format of the snapshot stream.
type StreamEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StreamHeartbeat is how often the server pings stream subscribers.
const StreamHeartbeat = 25 * time.Second

// ============================================================================
// Server side
// ============================================================================

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("stream accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := conn.CloseRead(r.Context())

	// Latest snapshot wins; a slow reader skips intermediate states.
	updates := make(chan State, 1)
	unsub := s.console.Store.On(EventStateChanged, func(_ string, payload any) {
		st, ok := payload.(State)
		if !ok {
			return
		}
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsub()

	if err := s.writeSnapshot(ctx, conn, s.console.Store.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(StreamHeartbeat)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case st := <-updates:
			if err := s.writeSnapshot(ctx, conn, st); err != nil {
				s.log.Debug().Err(err).Msg("stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				s.log.Debug().Err(err).Msg("stream heartbeat failed")
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(ctx context.Context, conn *websocket.Conn, st State) error {
	payload, err := json.Marshal(s.view(st))
	if err != nil {
		return err
	}
	data, err := json.Marshal(StreamEnvelope{Type: "snapshot", Payload: payload})
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// ============================================================================
// Client side
// ============================================================================

// StreamConfig configures a StreamClient.
type StreamConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HTTPClient           *http.Client
	Logger               zerolog.Logger
}

func (c *StreamConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// StreamState is the connection state of a StreamClient.
type StreamState string

const (
	StreamDisconnected StreamState = "disconnected"
	StreamConnecting   StreamState = "connecting"
	StreamConnected    StreamState = "connected"
	StreamReconnecting StreamState = "reconnecting"
)

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *StreamConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts < 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// StreamClient follows a console's /api/stream and reconnects with
// exponential backoff when the connection drops.
type StreamClient struct {
	url    string
	config *StreamConfig
	recon  *reconnector

	mu         sync.Mutex
	state      StreamState
	onSnapshot []func(View)
	onState    []func(StreamState)
}

// NewStreamClient creates a client for the console served at consoleURL
// (http:// or https://). A nil config uses the defaults with reconnects on.
func NewStreamClient(consoleURL string, config *StreamConfig) *StreamClient {
	if config == nil {
		config = &StreamConfig{AutoReconnect: true, Logger: zerolog.Nop()}
	}
	config.defaults()

	u := strings.TrimRight(consoleURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)

	return &StreamClient{
		url:    u + "/api/stream",
		config: config,
		recon:  newReconnector(config),
		state:  StreamDisconnected,
	}
}

// OnSnapshot registers a handler for every snapshot received.
func (c *StreamClient) OnSnapshot(h func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSnapshot = append(c.onSnapshot, h)
}

// OnStateChange registers a handler for connection state transitions.
func (c *StreamClient) OnStateChange(h func(StreamState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, h)
}

// State returns the current connection state.
func (c *StreamClient) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StreamClient) setState(s StreamState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handlers := append([]func(StreamState){}, c.onState...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(s)
	}
}

// Run follows the stream until ctx is done or reconnect attempts run out.
func (c *StreamClient) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StreamDisconnected)
			return ctx.Err()
		}
		if !c.config.AutoReconnect || !c.recon.shouldReconnect() {
			c.setState(StreamDisconnected)
			return err
		}

		delay := c.recon.nextDelay()
		c.setState(StreamReconnecting)
		c.config.Logger.Warn().Err(err).Int("attempt", c.recon.attempt).Dur("delay", delay).Msg("stream lost, reconnecting")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			c.setState(StreamDisconnected)
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *StreamClient) session(ctx context.Context) error {
	c.setState(StreamConnecting)
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPClient: c.config.HTTPClient})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(8 << 20)

	c.recon.markConnected()
	c.setState(StreamConnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}

		var env StreamEnvelope
		if json.Unmarshal(data, &env) != nil || env.Type != "snapshot" {
			continue
		}
		var v View
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			c.config.Logger.Debug().Err(err).Msg("bad snapshot payload")
			continue
		}

		c.mu.Lock()
		handlers := append([]func(View){}, c.onSnapshot...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(v)
		}
	}
}
