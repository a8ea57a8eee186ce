package qontak

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the fixed period between poll cycles.
const DefaultPollInterval = 5 * time.Second

// Poller drives background refreshes of the room list and of the active
// room's messages on a single fixed-period timer.
type Poller struct {
	store    *Store
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	resetCh chan struct{}
	unsub   func()
}

type PollerOption func(*Poller)

func WithPollerLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// NewPoller creates a stopped poller. A non-positive interval means
// DefaultPollInterval.
func NewPoller(store *Store, interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		store:    store,
		interval: interval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Running reports whether the timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start arms the timer. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.resetCh = make(chan struct{}, 1)

	resetCh := p.resetCh
	p.unsub = p.store.On(EventRoomSelected, func(string, any) {
		select {
		case resetCh <- struct{}{}:
		default:
		}
	})

	go p.loop(ctx, p.stopCh, p.done, resetCh)
	p.log.Debug().Dur("interval", p.interval).Msg("poller started")
}

// Stop tears the timer down and waits for an in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.done
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.mu.Unlock()

	<-done
	p.log.Debug().Msg("poller stopped")
}

func (p *Poller) loop(ctx context.Context, stopCh, done chan struct{}, resetCh chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-resetCh:
			rearm()
		case <-timer.C:
			p.Tick(ctx)
			timer.Reset(p.interval)
		}
	}
}

// Tick runs one poll cycle: a background room refresh and, when a room is
// selected, a refresh of its messages.
func (p *Poller) Tick(ctx context.Context) {
	p.store.RefreshRooms(ctx, false)
	if p.store.Snapshot().ActiveRoomID != "" {
		p.store.RefreshActiveMessages(ctx)
	}
}
