// Package qontak is an agent console for WhatsApp conversations held through
// the Qontak chat CMS.
//
// It polls the Qontak open API for rooms and messages, applies optimistic
// sends, and falls back to a simulated dataset when the API is unreachable
// so the console stays usable in demo mode.
//
// Example:
//
//	client := qontak.NewClient(token)
//	gw := qontak.NewGateway(client, qontak.DemoData{})
//	store := qontak.NewStore(gw)
//
//	store.RefreshRooms(ctx, true)
//	store.SelectRoom(ctx, "room_1")
//	store.SendMessage(ctx, "Halo!")
package qontak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ============================================================================
// Client
// ============================================================================

const (
	DefaultBaseURL = "https://chat.qontak.com/api/open/v1"
	DefaultTimeout = 30 * time.Second
)

// Client performs raw calls against the Qontak open API. It never retries
// and never substitutes demo data; see Gateway for that.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new Qontak client authenticated with a bearer token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Internal request helper
// ============================================================================

// doRequest sends one request and returns the raw "data" member of the
// response envelope.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request %s: %w", path, ctx.Err())
		}
		return nil, &ConnectivityError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("API Error: %d", resp.StatusCode)
		}
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return env.Data, nil
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var result T
	if len(data) == 0 || string(data) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return result, nil
}

// ============================================================================
// Endpoints
// ============================================================================

// ListRooms fetches every room visible to the token.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/rooms", nil)
	if err != nil {
		return nil, err
	}
	rooms, err := decodeData[[]Room](data)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []Room{}
	}
	return rooms, nil
}

// ListMessages fetches the message history of one room.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]Message, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeData[[]Message](data)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// SendText sends a text message into an existing room. A nil message with
// a nil error means the API accepted the send without echoing it back.
func (c *Client) SendText(ctx context.Context, roomID, body string) (*Message, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/messages/whatsapp/direct", &sendRequest{
		RoomID:      roomID,
		MessageType: TypeText,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	return decodeData[*Message](data)
}

// StartChat opens a conversation with a phone number by sending it a first
// message.
func (c *Client) StartChat(ctx context.Context, req NewChatRequest) (*ChatStarted, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/messages/whatsapp/direct", &directRequest{
		ToNumber:    req.Phone,
		ToName:      req.Name,
		MessageType: TypeText,
		Body:        req.Message,
	})
	if err != nil {
		return nil, err
	}
	started, err := decodeData[*ChatStarted](data)
	if err != nil {
		return nil, err
	}
	if started == nil {
		started = &ChatStarted{}
	}
	return started, nil
}
