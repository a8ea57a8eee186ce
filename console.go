package qontak

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Console ties the store and the poller to the agent session. Login is a
// placeholder: any email is accepted.
type Console struct {
	Store  *Store
	Poller *Poller
	log    zerolog.Logger

	mu       sync.Mutex
	loggedIn bool
	agent    string
	pollCtx  context.Context
	cancel   context.CancelFunc
}

// NewConsole creates a logged-out console.
func NewConsole(store *Store, poller *Poller, log zerolog.Logger) *Console {
	return &Console{Store: store, Poller: poller, log: log}
}

// LoggedIn reports whether an agent session is active.
func (c *Console) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Agent returns the email the session was opened with.
func (c *Console) Agent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

// Login opens a session, performs the initial room load and starts polling.
// Logging in twice is a no-op.
func (c *Console) Login(ctx context.Context, email string) State {
	c.mu.Lock()
	if c.loggedIn {
		c.mu.Unlock()
		return c.Store.Snapshot()
	}
	c.loggedIn = true
	c.agent = strings.TrimSpace(email)
	c.pollCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	pollCtx := c.pollCtx
	c.mu.Unlock()

	c.log.Info().Str("agent", c.agent).Msg("agent logged in")
	snap := c.Store.RefreshRooms(ctx, true)
	c.Poller.Start(pollCtx)
	return snap
}

// Logout stops polling. Cached conversation state stays in memory until the
// process exits.
func (c *Console) Logout() {
	c.mu.Lock()
	if !c.loggedIn {
		c.mu.Unlock()
		return
	}
	c.loggedIn = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.Poller.Stop()
	c.log.Info().Msg("agent logged out")
}

// Retry repeats the initial room load, as offered by the error screen.
func (c *Console) Retry(ctx context.Context) State {
	return c.Store.RefreshRooms(ctx, true)
}
