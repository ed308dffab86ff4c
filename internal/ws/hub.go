// SPDX-License-Identifier: MIT

package ws

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/metrics"
)

// Hub tracks the sockets connected to this instance and fans events from
// the Redis bus out to them through a bounded worker pool.
type Hub struct {
	bus     *channel.Bus
	workers int
	logger  zerolog.Logger

	jobs chan channel.Envelope

	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
	users map[int64]map[*Client]struct{}
}

// NewHub creates a hub with the given broadcast worker count.
func NewHub(bus *channel.Bus, workers int, logger zerolog.Logger) *Hub {
	if workers < 1 {
		workers = 1
	}
	return &Hub{
		bus:     bus,
		workers: workers,
		logger:  logger,
		jobs:    make(chan channel.Envelope, 512),
		rooms:   make(map[int64]map[*Client]struct{}),
		users:   make(map[int64]map[*Client]struct{}),
	}
}

// Run subscribes to the fanout channels and processes events until ctx is
// cancelled. It blocks.
func (h *Hub) Run(ctx context.Context) error {
	in, err := h.bus.Subscribe(ctx, "parley:room:*", "parley:user:*")
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < h.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case env, ok := <-h.jobs:
					if !ok {
						return nil
					}
					h.deliver(env)
				}
			}
		})
	}

	g.Go(func() error {
		defer close(h.jobs)
		for {
			select {
			case <-ctx.Done():
				return nil
			case env, ok := <-in:
				if !ok {
					return nil
				}
				select {
				case h.jobs <- env:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	h.logger.Info().
		Str("event", "hub.started").
		Int("workers", h.workers).
		Msg("broadcast hub running")
	return g.Wait()
}

// Broadcast publishes an event on a room's fanout channel.
func (h *Hub) Broadcast(ctx context.Context, roomID int64, out Outbound) error {
	out.RoomID = roomID
	return h.bus.Publish(ctx, channel.RoomChannel(roomID), out)
}

// Notify publishes an event on a user's fanout channel.
func (h *Hub) Notify(ctx context.Context, userID int64, out Outbound) error {
	return h.bus.Publish(ctx, channel.UserChannel(userID), out)
}

func (h *Hub) deliver(env channel.Envelope) {
	start := time.Now()
	defer func() { metrics.ObserveBroadcast(time.Since(start).Seconds()) }()

	id, isRoom, ok := parseChannel(env.Channel)
	if !ok {
		h.logger.Warn().Str("channel", env.Channel).Msg("unparseable fanout channel")
		return
	}

	h.mu.RLock()
	var targets map[*Client]struct{}
	if isRoom {
		targets = h.rooms[id]
	} else {
		targets = h.users[id]
	}
	clients := make([]*Client, 0, len(targets))
	for c := range targets {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(env.Payload)
	}
}

// parseChannel splits "parley:room:42" or "parley:user:7" into its id.
func parseChannel(name string) (id int64, isRoom bool, ok bool) {
	rest, found := strings.CutPrefix(name, "parley:room:")
	if found {
		id, err := strconv.ParseInt(rest, 10, 64)
		return id, true, err == nil
	}
	rest, found = strings.CutPrefix(name, "parley:user:")
	if found {
		id, err := strconv.ParseInt(rest, 10, 64)
		return id, false, err == nil
	}
	return 0, false, false
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if c.roomID != 0 {
		if h.rooms[c.roomID] == nil {
			h.rooms[c.roomID] = make(map[*Client]struct{})
		}
		h.rooms[c.roomID][c] = struct{}{}
	}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnected()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if set, ok := h.users[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			removed = true
			if len(set) == 0 {
				delete(h.users, c.userID)
			}
		}
	}
	if c.roomID != 0 {
		if set, ok := h.rooms[c.roomID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.rooms, c.roomID)
			}
		}
	}
	h.mu.Unlock()

	if removed {
		metrics.WSDisconnected()
		close(c.done)
	}
}

// connectedLocally reports whether the user has any socket on this
// instance. Presence transitions key off it.
func (h *Hub) connectedLocally(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}
