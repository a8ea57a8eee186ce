package qontak

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Result is a gateway answer tagged with where its data came from. Cause
// holds the API failure that triggered a fallback.
type Result[T any] struct {
	Data  T
	Mode  Mode
	Cause error
}

// Fallback reports whether the data was synthesised locally.
func (r Result[T]) Fallback() bool { return r.Mode == ModeFallback }

// Backend is what the Store needs from the outside world.
type Backend interface {
	FetchRooms(ctx context.Context) (Result[[]Room], error)
	FetchMessages(ctx context.Context, roomID string) (Result[[]Message], error)
	SendMessage(ctx context.Context, roomID, body string) (Result[*Message], error)
	StartNewChat(ctx context.Context, req NewChatRequest) (Result[*ChatStarted], error)
}

// Gateway wraps a Client with the demo-mode fallback policy. Every call
// returns its mode explicitly instead of flipping shared state.
type Gateway struct {
	client    *Client
	demo      DemoSource
	agentName string
	now       func() time.Time
	log       zerolog.Logger
}

type GatewayOption func(*Gateway)

// WithAgentName sets the sender name used on locally synthesised messages.
func WithAgentName(name string) GatewayOption {
	return func(g *Gateway) {
		if name != "" {
			g.agentName = name
		}
	}
}

// WithGatewayLogger sets the logger used for fallback notices.
func WithGatewayLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a gateway over client. A nil demo source means DemoData.
func NewGateway(client *Client, demo DemoSource, opts ...GatewayOption) *Gateway {
	if demo == nil {
		demo = DemoData{}
	}
	g := &Gateway{
		client:    client,
		demo:      demo,
		agentName: "Agent",
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// canceled reports errors caused by the caller giving up; those are never
// turned into demo data.
func canceled(err error) bool {
	if IsConnectivity(err) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (g *Gateway) noteFallback(op string, err error) {
	ev := g.log.Warn().Err(err).Str("op", op)
	if IsConnectivity(err) {
		ev.Msg("qontak API unreachable, falling back to demo mode")
		return
	}
	ev.Msg("qontak API error, using demo data")
}

// FetchRooms returns the live room list, or the demo rooms on any API failure.
func (g *Gateway) FetchRooms(ctx context.Context) (Result[[]Room], error) {
	rooms, err := g.client.ListRooms(ctx)
	if err == nil {
		return Result[[]Room]{Data: rooms, Mode: ModeLive}, nil
	}
	if canceled(err) {
		return Result[[]Room]{}, err
	}
	g.noteFallback("rooms", err)
	return Result[[]Room]{Data: g.demo.Rooms(g.now()), Mode: ModeFallback, Cause: err}, nil
}

// FetchMessages returns a room's live history, or the demo thread for it.
func (g *Gateway) FetchMessages(ctx context.Context, roomID string) (Result[[]Message], error) {
	msgs, err := g.client.ListMessages(ctx, roomID)
	if err == nil {
		return Result[[]Message]{Data: msgs, Mode: ModeLive}, nil
	}
	if canceled(err) {
		return Result[[]Message]{}, err
	}
	g.noteFallback("messages", err)
	return Result[[]Message]{Data: g.demo.Messages(roomID, g.now()), Mode: ModeFallback, Cause: err}, nil
}

// SendMessage sends body to roomID. On failure it answers with a locally
// built confirmation so the optimistic entry still settles.
func (g *Gateway) SendMessage(ctx context.Context, roomID, body string) (Result[*Message], error) {
	msg, err := g.client.SendText(ctx, roomID, body)
	if err == nil {
		return Result[*Message]{Data: msg, Mode: ModeLive}, nil
	}
	if canceled(err) {
		return Result[*Message]{}, err
	}
	g.noteFallback("send", err)
	return Result[*Message]{
		Data: &Message{
			ID:         LocalIDPrefix + uuid.NewString(),
			RoomID:     roomID,
			Body:       body,
			Type:       TypeText,
			SenderName: g.agentName,
			SenderType: SenderAgent,
			CreatedAt:  stamp(g.now()),
			Status:     StatusSent,
		},
		Mode:  ModeFallback,
		Cause: err,
	}, nil
}

// StartNewChat creates a conversation. Only connectivity failures fall back
// to a locally minted room id; server rejections are returned as errors.
func (g *Gateway) StartNewChat(ctx context.Context, req NewChatRequest) (Result[*ChatStarted], error) {
	started, err := g.client.StartChat(ctx, req)
	if err == nil {
		return Result[*ChatStarted]{Data: started, Mode: ModeLive}, nil
	}
	if !IsConnectivity(err) {
		return Result[*ChatStarted]{Cause: err}, err
	}
	g.noteFallback("start_chat", err)
	return Result[*ChatStarted]{
		Data:  &ChatStarted{RoomID: NewLocalRoomID(), Body: req.Message},
		Mode:  ModeFallback,
		Cause: err,
	}, nil
}

// NewLocalRoomID mints an id for a room created while in demo mode.
func NewLocalRoomID() string {
	return LocalRoomIDPrefix + uuid.NewString()
}
