/*
Package realtime serves live subscriptions over websockets.

A Client is one websocket connection of an authenticated user. It may hold many
subscriptions, each watching a single document or a query. The Hub receives committed
document changes from the store and marks the affected subscriptions of the owning
user's clients dirty; each client then re-reads them and pushes fresh snapshots.
*/
package realtime

import (
	"context"
	"sync"

	"schoolmaps/internal/app/docstore"
	"schoolmaps/internal/pkg/logx"

	"github.com/rs/zerolog"
)

const changeBuffer = 1024

// Hub routes document changes to the clients of the document owner.
type Hub struct {
	// clients of each user id. Only the Run loop touches it.
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	changes    chan docstore.Change

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	logger zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changes:    make(chan docstore.Change, changeBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logx.Component("hub"),
	}
}

// Run is the hub event loop. It returns when ctx is cancelled or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.uid]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.uid] = set
			}
			set[c] = struct{}{}
			h.logger.Debug().Str("user_id", c.uid).Int("connections", len(set)).Msg("client registered")

		case c := <-h.unregister:
			if set, ok := h.clients[c.uid]; ok {
				delete(set, c)
				if len(set) == 0 {
					delete(h.clients, c.uid)
				}
			}
			h.logger.Debug().Str("user_id", c.uid).Msg("client unregistered")

		case change := <-h.changes:
			for c := range h.clients[change.OwnerID] {
				c.markCollectionDirty(change.Collection)
			}

		case <-ctx.Done():
			h.logger.Info().Msg("hub stopped by context")
			return

		case <-h.stop:
			h.logger.Info().Msg("hub stopped")
			return
		}
	}
}

// Stop terminates Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds c to the routing table.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes c from the routing table.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish implements docstore.Publisher. It blocks only while the change buffer is full.
func (h *Hub) Publish(changes ...docstore.Change) {
	for _, change := range changes {
		select {
		case h.changes <- change:
		case <-h.done:
			return
		}
	}
}
