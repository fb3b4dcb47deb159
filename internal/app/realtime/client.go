package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"schoolmaps/internal/app/docstore"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/validate"
	"schoolmaps/internal/pkg/wire"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 16384

	// MaxSubscriptions caps the live subscriptions of one connection.
	MaxSubscriptions = 64

	// evaluation timeout of a single subscription read.
	evalTimeout = 10 * time.Second
)

// Reader is the read side of the document store used to evaluate subscriptions.
type Reader interface {
	Get(ctx context.Context, uid, collection, id string) (wire.Document, bool, error)
	Query(ctx context.Context, uid string, q wire.Query) ([]wire.Document, error)
}

type subscription struct {
	target wire.Target
	// gen changes whenever the id is re-subscribed, so stale results are dropped.
	gen uint64
}

// Client is one authenticated websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	reader Reader
	rec    metrics.Recorder
	uid    string

	send chan []byte

	mu               sync.Mutex
	subs             map[string]subscription
	nextGen          uint64
	dirtySubs        map[string]struct{}
	dirtyCollections map[string]struct{}

	// wake is poked whenever something became dirty.
	wake chan struct{}

	closeOnce sync.Once
	done      chan struct{}

	logger zerolog.Logger
}

// NewClient constructs a Client for the user uid. conn may be nil in tests.
func NewClient(hub *Hub, conn *websocket.Conn, reader Reader, rec metrics.Recorder, uid string) *Client {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Client{
		hub:              hub,
		conn:             conn,
		reader:           reader,
		rec:              rec,
		uid:              uid,
		send:             make(chan []byte, 256),
		subs:             make(map[string]subscription),
		dirtySubs:        make(map[string]struct{}),
		dirtyCollections: make(map[string]struct{}),
		wake:             make(chan struct{}, 1),
		done:             make(chan struct{}),
		logger:           logx.Component("ws_client").With().Str("user_id", uid).Logger(),
	}
}

// Serve registers the client and runs its loops until the connection closes.
func (c *Client) Serve(ctx context.Context) {
	c.hub.Register(c)

	go c.WritePump()
	go c.SyncLoop(ctx)

	c.ReadPump()
}

// ReadPump reads subscription requests until the connection fails.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect releases everything owned by the connection.
func (c *Client) cleanupOnDisconnect() {
	c.hub.Unregister(c)
	c.close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
	c.logger.Info().Msg("Client disconnected")
}

// close stops the sync and write loops and drops every subscription.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		n := len(c.subs)
		c.subs = make(map[string]subscription)
		c.mu.Unlock()

		for i := 0; i < n; i++ {
			c.rec.SubscriptionClosed()
		}
	})
}

func (c *Client) processInboundMessage(messageBytes []byte) {
	var msg wire.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch msg.Type {
	case wire.TypeSubscribe:
		var p wire.SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.SendError("", errs.NewError(errs.ErrInvalidJSONFormat))
			return
		}
		c.subscribe(p)

	case wire.TypeUnsubscribe:
		var p wire.UnsubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.SendError("", errs.NewError(errs.ErrInvalidJSONFormat))
			return
		}
		c.unsubscribe(p.ID)

	default:
		c.logger.Warn().Str("msg_type", msg.Type).Msg("Client sent unsupported message type")
	}
}

// subscribe registers p and schedules its first snapshot.
func (c *Client) subscribe(p wire.SubscribePayload) {
	if p.Target.Query != nil {
		p.Target.Query.Collection = p.Target.Collection
	}
	if field, err := validate.Struct(p); err != nil {
		c.SendError(p.ID, errs.NewError(errs.ErrValidationFailed, field))
		return
	}
	if _, err := docstore.Authorize(p.Target.Collection, c.uid); err != nil {
		c.SendError(p.ID, err)
		return
	}

	c.mu.Lock()
	_, replaced := c.subs[p.ID]
	if !replaced && len(c.subs) >= MaxSubscriptions {
		c.mu.Unlock()
		c.SendError(p.ID, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}
	c.nextGen++
	c.subs[p.ID] = subscription{target: p.Target, gen: c.nextGen}
	c.dirtySubs[p.ID] = struct{}{}
	c.mu.Unlock()

	if !replaced {
		c.rec.SubscriptionOpened()
	}
	c.poke()
}

func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	delete(c.dirtySubs, id)
	c.mu.Unlock()

	if ok {
		c.rec.SubscriptionClosed()
	}
}

// markCollectionDirty is called by the hub for every change of the client's user.
func (c *Client) markCollectionDirty(collection string) {
	c.mu.Lock()
	c.dirtyCollections[collection] = struct{}{}
	c.mu.Unlock()
	c.poke()
}

func (c *Client) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// SyncLoop re-evaluates dirty subscriptions until the client closes. It is the only
// goroutine producing snapshots, so the snapshots of one subscription stay ordered.
func (c *Client) SyncLoop(ctx context.Context) {
	for {
		select {
		case <-c.wake:
			c.syncOnce(ctx)
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

type pending struct {
	id  string
	sub subscription
}

// takeDirty drains the dirty sets and returns the subscriptions to evaluate.
func (c *Client) takeDirty() []pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []pending
	for id, sub := range c.subs {
		_, dirty := c.dirtySubs[id]
		if !dirty {
			_, dirty = c.dirtyCollections[sub.target.Collection]
		}
		if dirty {
			out = append(out, pending{id: id, sub: sub})
		}
	}
	clear(c.dirtySubs)
	clear(c.dirtyCollections)
	return out
}

// current reports whether p is still the live version of its subscription.
func (c *Client) current(p pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[p.id]
	return ok && sub.gen == p.sub.gen
}

func (c *Client) syncOnce(ctx context.Context) {
	for _, p := range c.takeDirty() {
		snapshot, err := c.evaluate(ctx, p.id, p.sub.target)
		if !c.current(p) {
			continue
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("sub_id", p.id).Msg("Subscription evaluation failed")
			c.unsubscribe(p.id)
			c.SendError(p.id, err)
			continue
		}
		msg, err := wire.NewMessage(wire.TypeSnapshot, snapshot)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to build SNAPSHOT message")
			continue
		}
		if err := c.sendMessage(msg); err != nil {
			c.logger.Error().Err(err).Str("sub_id", p.id).Msg("Failed to queue SNAPSHOT message")
		}
	}
}

func (c *Client) evaluate(ctx context.Context, id string, target wire.Target) (wire.SnapshotPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	snapshot := wire.SnapshotPayload{ID: id}

	if target.Kind == wire.TargetDoc {
		doc, exists, err := c.reader.Get(ctx, c.uid, target.Collection, target.ID)
		if err != nil {
			return snapshot, err
		}
		snapshot.Exists = exists
		if exists {
			snapshot.Doc = &doc
		}
		return snapshot, nil
	}

	q := *target.Query
	q.Collection = target.Collection
	docs, err := c.reader.Query(ctx, c.uid, q)
	if err != nil {
		return snapshot, err
	}
	snapshot.Exists = true
	snapshot.Docs = docs
	return snapshot, nil
}

// WritePump writes queued messages and periodic pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeQueuedMessage(message) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// writeQueuedMessage returns false if the WritePump loop should terminate.
func (c *Client) writeQueuedMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// sendMessage marshals data and queues it for the write pump.
func (c *Client) sendMessage(data any) error {
	messageBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case c.send <- messageBytes:
		return nil
	case <-c.done:
		return errors.New("client closed")
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return fmt.Errorf("client send queue full")
	}
}

// SendError queues an ERROR message for subscription id.
func (c *Client) SendError(id string, err error) {
	customErr := errs.From(err)

	msg, msgErr := wire.NewMessage(wire.TypeError, wire.ErrorPayload{
		ID:      id,
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if msgErr != nil {
		c.logger.Error().Err(msgErr).Msg("Failed to build ERROR message")
		return
	}

	if err := c.sendMessage(msg); err != nil {
		c.logger.Error().Err(err).Msg("Failed to queue error message")
	}
}
