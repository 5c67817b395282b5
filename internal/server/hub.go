package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

const defaultBuffer = 8

// HubOpts contains configuration options for creating a [Hub].
type HubOpts struct {
	Source   services.NowPlayingSource
	Interval time.Duration // Poll period per subscription
	Timeout  time.Duration // Bound on each upstream query
	Buffer   int           // Per-subscriber event buffer, defaults to 8
	Reports  chan<- tasks.TickReport
	Logger   *log.Logger
}

// Subscription is a registered receiver of broadcast events.
//
// Events is closed once the subscription is removed from the hub.
type Subscription struct {
	ID     string
	Events <-chan Event

	events chan Event
	cancel context.CancelFunc
}

// Hub owns the shared "currently playing" snapshot and fans events out to every subscriber.
//
// Every subscription drives its own [tasks.Poller]; all pollers publish into the same snapshot.
// The snapshot is mutated and the resulting event delivered under one lock, so a subscriber
// registering concurrently with a tick sees either the old or the new state, never both.
type Hub struct {
	opts   HubOpts
	logger *log.Logger

	mu       sync.Mutex
	snapshot *models.Song
	subs     map[string]*Subscription
	closed   bool

	loops sync.WaitGroup
}

// NewHub creates a [Hub] polling opts.Source.
func NewHub(opts HubOpts) (*Hub, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Hub{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "hub"),
		subs:   make(map[string]*Subscription),
	}, nil
}

// Subscribe registers a subscriber, replays the snapshot to it when one exists and starts its poll loop.
func (h *Hub) Subscribe() (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, h.opts.Buffer)
	sub := &Subscription{
		ID:     shared.GenerateID(),
		Events: events,
		events: events,
		cancel: cancel,
	}

	logger := shared.WithLogger(h.opts.Logger, "subscriber", sub.ID)
	poller, err := tasks.NewPoller(tasks.PollerOpts{
		Source:    h.opts.Source,
		Publisher: h,
		Interval:  h.opts.Interval,
		Timeout:   h.opts.Timeout,
		Reports:   h.opts.Reports,
		Logger:    shared.WithLogger(logger, "component", "poller"),
	})
	if err != nil {
		cancel()
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		cancel()
		return nil, fmt.Errorf("%w: hub closed", shared.ErrServiceUnavailable)
	}

	if h.snapshot != nil {
		events <- NowPlayingEvent(h.snapshot)
	}
	h.subs[sub.ID] = sub

	h.loops.Add(1)
	go func() {
		defer h.loops.Done()
		poller.Run(ctx)
	}()

	logger.Info("subscribed", "subscribers", len(h.subs), "replayed", h.snapshot != nil)
	return sub, nil
}

// Unsubscribe stops the subscription's poll loop and removes it. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	h.remove(sub)
	h.logger.Info("unsubscribed", "subscriber", sub.ID, "subscribers", len(h.subs))
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscription) {
	sub.cancel()
	delete(h.subs, sub.ID)
	close(sub.events)
}

// Publish implements [tasks.Publisher].
//
// Results from a cancelled loop are dropped. Otherwise the change policy runs against the
// snapshot and, when it calls for an event, the event is delivered to every subscriber.
func (h *Hub) Publish(ctx context.Context, song *models.Song) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ctx.Err() != nil || h.closed {
		return false
	}

	decision := tasks.Decide(h.snapshot, song)
	h.snapshot = decision.Next
	if !decision.Emit {
		return false
	}

	if decision.Song != nil {
		h.logger.Info("track changed", "title", decision.Song.Title, "subscribers", len(h.subs))
	} else {
		h.logger.Info("playback stopped", "subscribers", len(h.subs))
	}
	h.broadcast(NowPlayingEvent(decision.Song))
	return true
}

// broadcast must be called with h.mu held. A subscriber whose buffer is full misses the event.
func (h *Hub) broadcast(event Event) {
	for id, sub := range h.subs {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("subscriber buffer full, event dropped", "subscriber", id)
		}
	}
}

// Snapshot returns the last known playing song, or nil.
func (h *Hub) Snapshot() *models.Song {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// Subscribers returns the number of registered subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscription and waits for all poll loops to exit.
// Subsequent calls to [Hub.Subscribe] fail.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, sub := range h.subs {
		h.remove(sub)
	}
	h.mu.Unlock()

	h.loops.Wait()
	h.logger.Info("hub closed")
}
