package qontak

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestReconnector_Backoff(t *testing.T) {
	r := newReconnector(&StreamConfig{
		ReconnectBaseDelay:   100 * time.Millisecond,
		ReconnectMaxDelay:    time.Second,
		MaxReconnectAttempts: 3,
	})

	var prev time.Duration
	for i := 0; i < 3; i++ {
		if !r.shouldReconnect() {
			t.Fatalf("attempt %d refused", i)
		}
		d := r.nextDelay()
		if d > time.Second {
			t.Errorf("delay %s exceeds max", d)
		}
		if i > 0 && d < prev/2 {
			t.Errorf("delay %s shrank from %s", d, prev)
		}
		prev = d
	}
	if r.shouldReconnect() {
		t.Error("should stop after max attempts")
	}

	unlimited := newReconnector(&StreamConfig{MaxReconnectAttempts: -1, ReconnectBaseDelay: time.Millisecond, ReconnectMaxDelay: time.Millisecond})
	for i := 0; i < 100; i++ {
		unlimited.nextDelay()
	}
	if !unlimited.shouldReconnect() {
		t.Error("negative max means unlimited")
	}
}

func TestNewStreamClient_URL(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:8080": "ws://127.0.0.1:8080/api/stream",
		"https://console.test/": "wss://console.test/api/stream",
		"http://host/prefix":    "ws://host/prefix/api/stream",
	}
	for in, want := range tests {
		if got := NewStreamClient(in, nil).url; got != want {
			t.Errorf("NewStreamClient(%q).url = %q, want %q", in, got, want)
		}
	}
}

func TestStream_SnapshotsFollowState(t *testing.T) {
	b := &fakeBackend{rooms: demoRooms}
	srv, _ := newTestServer(t, b)

	views := make(chan View, 64)
	states := make(chan StreamState, 16)
	client := NewStreamClient(srv.URL, &StreamConfig{Logger: zerolog.Nop()})
	client.OnSnapshot(func(v View) {
		select {
		case views <- v:
		default:
		}
	})
	client.OnStateChange(func(s StreamState) {
		select {
		case states <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	next := func(what string, match func(View) bool) View {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case v := <-views:
				if match(v) {
					return v
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s", what)
			}
		}
	}

	first := next("initial snapshot", func(View) bool { return true })
	if first.LoggedIn {
		t.Error("initial snapshot should be logged out")
	}

	if status, _ := call(t, srv, http.MethodPost, "/api/login", `{"email":"a@b.c"}`); status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	v := next("demo rooms", func(v View) bool { return v.LoggedIn && len(v.State.Rooms) == 3 })
	if !v.State.DemoMode {
		t.Error("expected demo mode in streamed state")
	}

	call(t, srv, http.MethodPost, "/api/rooms/room_2/select", "")
	next("selection", func(v View) bool { return v.State.ActiveRoomID == "room_2" })

	if client.State() != StreamConnected {
		t.Errorf("client state = %s", client.State())
	}

	cancel()
	select {
	case err := <-runErr:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if client.State() != StreamDisconnected {
		t.Errorf("client state after cancel = %s", client.State())
	}
}

func TestStreamClient_NoReconnect(t *testing.T) {
	client := NewStreamClient(deadURL(t), &StreamConfig{AutoReconnect: false, Logger: zerolog.Nop()})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Run(ctx); err == nil || ctx.Err() != nil {
		t.Fatalf("expected dial error before timeout, got %v", err)
	}
	if client.State() != StreamDisconnected {
		t.Errorf("state = %s", client.State())
	}
}
