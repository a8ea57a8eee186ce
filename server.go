package qontak

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// View is what the presentation layer receives: the session flag plus the
// conversation snapshot.
type View struct {
	LoggedIn bool   `json:"logged_in"`
	Agent    string `json:"agent,omitempty"`
	State    State  `json:"state"`
}

// Server exposes a Console over HTTP: JSON snapshots, the user operations,
// and a WebSocket snapshot stream at /api/stream.
type Server struct {
	console *Console
	log     zerolog.Logger
	router  chi.Router
}

// NewServer builds the HTTP handler for console.
func NewServer(console *Console, log zerolog.Logger) *Server {
	s := &Server{console: console, log: log}

	r := chi.NewRouter()
	r.Get("/api/state", s.handleState)
	r.Post("/api/login", s.handleLogin)
	r.Get("/api/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/api/logout", s.handleLogout)
		r.Post("/api/retry", s.handleRetry)
		r.Post("/api/rooms/{roomID}/select", s.handleSelect)
		r.Delete("/api/active", s.handleClearActive)
		r.Post("/api/messages", s.handleSend)
		r.Get("/api/rooms/{roomID}/messages/search", s.handleSearch)
		r.Post("/api/new-chat/open", s.handleNewChatOpen)
		r.Post("/api/new-chat/close", s.handleNewChatClose)
		r.Post("/api/new-chat", s.handleNewChat)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) view(st State) View {
	return View{LoggedIn: s.console.LoggedIn(), Agent: s.console.Agent(), State: st}
}

// opContext detaches gateway calls from the HTTP request: a client that
// hangs up must not cancel requests already sent to the API.
func opContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Int("status", status).Msg("writing response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.console.LoggedIn() {
			s.writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.console.Store.Snapshot()
	if q := r.URL.Query().Get("q"); q != "" {
		st.Rooms = FilterRooms(st.Rooms, q)
	}
	s.writeJSON(w, http.StatusOK, s.view(st))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	st := s.console.Login(opContext(r), body.Email)
	s.writeJSON(w, http.StatusOK, s.view(st))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.console.Logout()
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.Snapshot()))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view(s.console.Retry(opContext(r))))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.SelectRoom(opContext(r), roomID)))
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.ClearActiveRoom()))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.console.Store.Snapshot().ActiveRoomID == "" {
		s.writeError(w, http.StatusConflict, "no active room")
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.SendMessage(opContext(r), body.Text)))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	msgs := SearchMessages(s.console.Store.Snapshot().Messages[roomID], r.URL.Query().Get("q"))
	if msgs == nil {
		msgs = []Message{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (s *Server) handleNewChatOpen(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.OpenNewChat()))
}

func (s *Server) handleNewChatClose(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view(s.console.Store.CloseNewChat()))
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var req NewChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st, err := s.console.Store.StartNewChat(opContext(r), req)
	switch {
	case errors.Is(err, ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(st))
}
