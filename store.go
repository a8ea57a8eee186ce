package qontak

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ============================================================================
// State
// ============================================================================

// LoadErrorMessage is shown when the first room load fails and no demo data
// is available either.
const LoadErrorMessage = "Gagal memuat CMS. Silakan periksa koneksi atau API Token Anda."

// State is an immutable snapshot of the console. Slices and maps inside a
// snapshot are shared with later snapshots and must not be modified.
type State struct {
	Rooms             []Room               `json:"rooms"`
	ActiveRoomID      string               `json:"active_room_id"`
	Messages          map[string][]Message `json:"messages"`
	Loading           bool                 `json:"loading"`
	Error             string               `json:"error"`
	NewChatOpen       bool                 `json:"new_chat_open"`
	NewChatSubmitting bool                 `json:"new_chat_submitting"`
	DemoMode          bool                 `json:"demo_mode"`
}

// ActiveRoom returns the selected room, if it is in the room list.
func (s State) ActiveRoom() (Room, bool) {
	if s.ActiveRoomID == "" {
		return Room{}, false
	}
	for _, r := range s.Rooms {
		if r.ID == s.ActiveRoomID {
			return r, true
		}
	}
	return Room{}, false
}

// ActiveMessages returns the message list of the selected room.
func (s State) ActiveMessages() []Message {
	if s.ActiveRoomID == "" {
		return nil
	}
	return s.Messages[s.ActiveRoomID]
}

func (s *State) clone() *State {
	next := *s
	next.Messages = make(map[string][]Message, len(s.Messages))
	for k, v := range s.Messages {
		next.Messages[k] = v
	}
	return &next
}

func (s *State) setMode(m Mode) {
	s.DemoMode = m == ModeFallback
}

// appendMessage never writes into the backing array of list, which may be
// shared with an older snapshot.
func appendMessage(list []Message, m Message) []Message {
	out := make([]Message, len(list), len(list)+1)
	copy(out, list)
	return append(out, m)
}

// ============================================================================
// Event Emitter
// ============================================================================

// Store events. EventRoomSelected carries the new active room id, "" when
// the selection is cleared.
const (
	EventStateChanged     = "state.changed"
	EventRoomSelected     = "room.selected"
	EventMessageLocal     = "message.local"
	EventMessageConfirmed = "message.confirmed"
	EventModeChanged      = "mode.changed"
)

// EventHandler handles store events.
type EventHandler func(event string, payload any)

type listener struct {
	id int
	h  EventHandler
}

type emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[string][]listener
}

// On registers handler for event and returns a function that removes it.
func (e *emitter) On(event string, handler EventHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]listener)
	}
	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener{id: id, h: handler})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		ls := e.listeners[event]
		for i, l := range ls {
			if l.id == id {
				e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(event string, payload any) {
	e.mu.RLock()
	ls := e.listeners[event]
	e.mu.RUnlock()
	for _, l := range ls {
		func() {
			defer func() { recover() }() // swallow panics in user callbacks
			l.h(event, payload)
		}()
	}
}

// ============================================================================
// Store
// ============================================================================

// Store reconciles polled API data, optimistic sends and demo data into a
// single State. All mutations go through update, which publishes a fresh
// snapshot under the store lock.
type Store struct {
	emitter
	backend   Backend
	log       zerolog.Logger
	now       func() time.Time
	agentName string

	mu    sync.Mutex
	state *State

	// Request generations: a response is applied only if no newer response
	// for the same key has been applied already.
	roomsIssued  uint64
	roomsApplied uint64
	msgIssued    map[string]uint64
	msgApplied   map[string]uint64
}

type StoreOption func(*Store)

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithSenderName sets the display name on optimistic and demo messages.
func WithSenderName(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.agentName = name
		}
	}
}

// NewStore creates an empty store in the loading state.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend:   backend,
		log:       zerolog.Nop(),
		now:       time.Now,
		agentName: "Agent",
		state: &State{
			Rooms:    []Room{},
			Messages: map[string][]Message{},
			Loading:  true,
		},
		msgIssued:  make(map[string]uint64),
		msgApplied: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// update applies fn to a copy of the state and publishes it if fn returns
// true. fn runs under the store lock and must not block.
func (s *Store) update(fn func(st *State) bool) State {
	s.mu.Lock()
	prev := s.state
	next := prev.clone()
	if !fn(next) {
		s.mu.Unlock()
		return *prev
	}
	s.state = next
	snap := *next
	s.mu.Unlock()

	if prev.DemoMode != snap.DemoMode {
		s.emit(EventModeChanged, snap.DemoMode)
	}
	if prev.ActiveRoomID != snap.ActiveRoomID {
		s.emit(EventRoomSelected, snap.ActiveRoomID)
	}
	s.emit(EventStateChanged, snap)
	return snap
}

func (s *Store) issueRooms() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomsIssued++
	return s.roomsIssued
}

func (s *Store) issueMessages(roomID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgIssued[roomID]++
	return s.msgIssued[roomID]
}

// freshRooms must be called with s.mu held (i.e. inside update).
func (s *Store) freshRooms(seq uint64) bool {
	if seq < s.roomsApplied {
		return false
	}
	s.roomsApplied = seq
	return true
}

// freshMessages must be called with s.mu held (i.e. inside update).
func (s *Store) freshMessages(roomID string, seq uint64) bool {
	if seq < s.msgApplied[roomID] {
		return false
	}
	s.msgApplied[roomID] = seq
	return true
}

// ── Rooms ────────────────────────────────────────────────

// RefreshRooms reloads the room list. An initial refresh falls back to demo
// rooms and surfaces LoadErrorMessage when there are none; a background
// refresh that fails keeps the previous list untouched.
func (s *Store) RefreshRooms(ctx context.Context, initial bool) State {
	if initial {
		s.update(func(st *State) bool {
			st.Loading = true
			return true
		})
	}

	seq := s.issueRooms()
	res, err := s.backend.FetchRooms(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "rooms").Bool("initial", initial).Msg("room refresh failed")
		if !initial {
			return s.Snapshot()
		}
		return s.update(func(st *State) bool {
			st.Loading = false
			if len(st.Rooms) == 0 {
				st.Error = LoadErrorMessage
			}
			return true
		})
	}

	if res.Fallback() && !initial {
		s.log.Warn().Err(res.Cause).Str("op", "rooms").Msg("background room refresh failed, keeping rooms")
		return s.update(func(st *State) bool {
			if st.DemoMode || seq < s.roomsApplied {
				return false
			}
			st.setMode(ModeFallback)
			return true
		})
	}

	return s.update(func(st *State) bool {
		if !s.freshRooms(seq) {
			s.log.Debug().Uint64("seq", seq).Msg("discarding stale room list")
			return false
		}
		st.setMode(res.Mode)
		st.Rooms = res.Data
		st.Loading = false
		st.Error = ""
		if res.Fallback() && len(res.Data) == 0 {
			st.Error = LoadErrorMessage
		}
		return true
	})
}

// ── Messages ─────────────────────────────────────────────

// RefreshActiveMessages reloads the selected room's messages. Failures are
// logged and the cached list is kept.
func (s *Store) RefreshActiveMessages(ctx context.Context) State {
	roomID := s.Snapshot().ActiveRoomID
	if roomID == "" {
		return s.Snapshot()
	}

	seq := s.issueMessages(roomID)
	res, err := s.backend.FetchMessages(ctx, roomID)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "messages").Str("room_id", roomID).Msg("polling error for messages")
		return s.Snapshot()
	}
	if res.Fallback() {
		s.log.Warn().Err(res.Cause).Str("op", "messages").Str("room_id", roomID).Msg("polling error for messages")
		return s.update(func(st *State) bool {
			if st.DemoMode || seq < s.msgApplied[roomID] {
				return false
			}
			st.setMode(ModeFallback)
			return true
		})
	}

	return s.storeMessages(roomID, seq, res)
}

func (s *Store) storeMessages(roomID string, seq uint64, res Result[[]Message]) State {
	return s.update(func(st *State) bool {
		if !s.freshMessages(roomID, seq) {
			s.log.Debug().Str("room_id", roomID).Uint64("seq", seq).Msg("discarding stale messages")
			return false
		}
		st.setMode(res.Mode)
		msgs := res.Data
		if msgs == nil {
			msgs = []Message{}
		}
		st.Messages[roomID] = msgs
		return true
	})
}

// SelectRoom makes roomID active right away, then loads its messages (demo
// messages if the API fails).
func (s *Store) SelectRoom(ctx context.Context, roomID string) State {
	if roomID == "" {
		return s.ClearActiveRoom()
	}
	s.update(func(st *State) bool {
		st.ActiveRoomID = roomID
		return true
	})

	seq := s.issueMessages(roomID)
	res, err := s.backend.FetchMessages(ctx, roomID)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "select").Str("room_id", roomID).Msg("loading room messages failed")
		return s.Snapshot()
	}
	return s.storeMessages(roomID, seq, res)
}

// ClearActiveRoom deselects the current room.
func (s *Store) ClearActiveRoom() State {
	return s.update(func(st *State) bool {
		if st.ActiveRoomID == "" {
			return false
		}
		st.ActiveRoomID = ""
		return true
	})
}

// SendMessage appends text to the active room as a provisional message,
// then swaps it for the confirmed one in place. A failed send leaves the
// provisional entry as it is.
func (s *Store) SendMessage(ctx context.Context, text string) State {
	if strings.TrimSpace(text) == "" {
		return s.Snapshot()
	}

	var pending Message
	snap := s.update(func(st *State) bool {
		if st.ActiveRoomID == "" {
			return false
		}
		pending = Message{
			ID:         TempIDPrefix + uuid.NewString(),
			RoomID:     st.ActiveRoomID,
			Body:       text,
			Type:       TypeText,
			SenderName: s.agentName,
			SenderType: SenderAgent,
			CreatedAt:  stamp(s.now()),
			Status:     StatusSent,
		}
		st.Messages[pending.RoomID] = appendMessage(st.Messages[pending.RoomID], pending)
		return true
	})
	if pending.ID == "" {
		return snap
	}
	s.emit(EventMessageLocal, pending)

	res, err := s.backend.SendMessage(ctx, pending.RoomID, text)
	if err != nil {
		s.log.Error().Err(err).Str("op", "send").Str("room_id", pending.RoomID).Msg("failed to send message")
		return s.Snapshot()
	}

	confirmed := res.Data
	snap = s.update(func(st *State) bool {
		st.setMode(res.Mode)
		if confirmed == nil {
			return true
		}
		list := st.Messages[pending.RoomID]
		for i := range list {
			if list[i].ID == pending.ID {
				next := make([]Message, len(list))
				copy(next, list)
				next[i] = *confirmed
				st.Messages[pending.RoomID] = next
				break
			}
		}
		return true
	})
	if confirmed != nil {
		s.emit(EventMessageConfirmed, map[string]any{"tempId": pending.ID, "message": *confirmed})
	}
	return snap
}

// ── New chat dialog ──────────────────────────────────────

// OpenNewChat opens the new-chat dialog.
func (s *Store) OpenNewChat() State {
	return s.update(func(st *State) bool {
		if st.NewChatOpen {
			return false
		}
		st.NewChatOpen = true
		return true
	})
}

// CloseNewChat closes the dialog unless a submission is in flight.
func (s *Store) CloseNewChat() State {
	return s.update(func(st *State) bool {
		if !st.NewChatOpen || st.NewChatSubmitting {
			return false
		}
		st.NewChatOpen = false
		return true
	})
}

// StartNewChat creates a conversation with a phone number. In demo mode the
// room is synthesised locally and prepended; otherwise rooms are refreshed
// and the new room selected. Backend errors are logged, not returned; an
// incomplete request yields ErrInvalidInput and a submission made while
// another is in flight yields ErrBusy. Otherwise the dialog always ends
// closed.
func (s *Store) StartNewChat(ctx context.Context, req NewChatRequest) (State, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return s.Snapshot(), err
	}

	demoBefore, busy := false, false
	s.update(func(st *State) bool {
		if st.NewChatSubmitting {
			busy = true
			return false
		}
		demoBefore = st.DemoMode
		st.NewChatOpen = true
		st.NewChatSubmitting = true
		return true
	})
	if busy {
		return s.Snapshot(), ErrBusy
	}

	s.submitNewChat(ctx, req, demoBefore)

	return s.update(func(st *State) bool {
		st.NewChatOpen = false
		st.NewChatSubmitting = false
		return true
	}), nil
}

func (s *Store) submitNewChat(ctx context.Context, req NewChatRequest, demoBefore bool) {
	res, err := s.backend.StartNewChat(ctx, req)
	demo := res.Fallback() || (err != nil && demoBefore && !canceled(err))
	if err != nil && !demo {
		s.log.Error().Err(err).Str("op", "start_chat").Str("phone", req.Phone).Msg("error starting new chat")
		return
	}

	if demo {
		roomID := ""
		if res.Data != nil {
			roomID = res.Data.RoomID
		}
		if roomID == "" {
			roomID = NewLocalRoomID()
		}
		s.addLocalRoom(roomID, req)
		return
	}

	s.RefreshRooms(ctx, false)
	if res.Data != nil && res.Data.RoomID != "" {
		s.SelectRoom(ctx, res.Data.RoomID)
	} else {
		s.RefreshRooms(ctx, false)
	}
}

func (s *Store) addLocalRoom(roomID string, req NewChatRequest) {
	now := stamp(s.now())
	room := Room{
		ID:            roomID,
		Name:          req.Name,
		PhoneNumber:   req.Phone,
		LastMessage:   req.Message,
		LastMessageAt: now,
		UnreadCount:   0,
		ChannelType:   "whatsapp",
		CustomerID:    "cust_" + uuid.NewString(),
	}
	first := Message{
		ID:         "msg_" + uuid.NewString(),
		RoomID:     roomID,
		Body:       req.Message,
		Type:       TypeText,
		SenderName: s.agentName,
		SenderType: SenderAgent,
		CreatedAt:  now,
		Status:     StatusSent,
	}

	s.update(func(st *State) bool {
		rooms := make([]Room, 0, len(st.Rooms)+1)
		rooms = append(rooms, room)
		for _, r := range st.Rooms {
			if r.ID != roomID {
				rooms = append(rooms, r)
			}
		}
		st.Rooms = rooms
		st.ActiveRoomID = roomID
		st.Messages[roomID] = []Message{first}
		st.setMode(ModeFallback)
		return true
	})
}
