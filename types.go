package qontak

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError is returned when the Qontak API answers with a non-2xx status.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ConnectivityError is returned when a request never reached the API
// (DNS, refused connection, TLS, timeout, blocked origin).
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("qontak unreachable on %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// ErrInvalidInput is returned for incomplete new-chat requests.
var ErrInvalidInput = errors.New("invalid input")

// ErrBusy is returned when a new chat is submitted while another one is
// still in flight.
var ErrBusy = errors.New("new chat already in progress")

// envelope is the {"data": ...} wrapper every endpoint responds with.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// ============================================================================
// Rooms & Messages
// ============================================================================

// Room is one conversation thread with a single customer contact.
type Room struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
	LastMessage   string `json:"last_message"`
	LastMessageAt string `json:"last_message_at"`
	UnreadCount   int    `json:"unread_count"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	ChannelType   string `json:"channel_type"`
	CustomerID    string `json:"customer_id"`
}

// Content types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeFile  = "file"
)

// Sender roles.
const (
	SenderAgent    = "agent"
	SenderCustomer = "customer"
	SenderSystem   = "system"
)

// Delivery statuses (agent messages only).
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Id prefixes for entities not issued by the server.
const (
	TempIDPrefix      = "temp_"
	LocalIDPrefix     = "local_"
	LocalRoomIDPrefix = "room_local_"
)

// Message belongs to exactly one room, referenced by RoomID.
type Message struct {
	ID         string `json:"id"`
	RoomID     string `json:"room_id"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	SenderName string `json:"sender_name"`
	SenderType string `json:"sender_type"`
	CreatedAt  string `json:"created_at"`
	Status     string `json:"status,omitempty"`
}

// Provisional reports whether the message is an optimistic entry still
// awaiting server confirmation.
func (m Message) Provisional() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// ============================================================================
// Request payloads
// ============================================================================

type sendRequest struct {
	RoomID      string `json:"room_id"`
	MessageType string `json:"message_type"`
	Body        string `json:"body"`
}

type directRequest struct {
	ToNumber    string `json:"to_number"`
	ToName      string `json:"to_name"`
	MessageType string `json:"message_type"`
	Body        string `json:"body"`
}

// NewChatRequest starts a conversation with a phone number.
type NewChatRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ChatStarted is the data returned when a new conversation is created.
type ChatStarted struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body,omitempty"`
}

// ============================================================================
// Modes
// ============================================================================

// Mode tags where a gateway result came from.
type Mode string

const (
	// ModeLive means the data came from the Qontak API.
	ModeLive Mode = "live"
	// ModeFallback means the API failed and the data was synthesised locally.
	ModeFallback Mode = "fallback"
)
