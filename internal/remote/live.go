package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/wire"
)

const (
	dialTimeout = 10 * time.Second
	writeWait   = 10 * time.Second
)

// ErrConnectionLost ends every subscription of a dropped connection.
var ErrConnectionLost = errors.New("remote: live connection lost")

// Live multiplexes subscriptions over one websocket per bearer token. A new token
// (sign-in as someone else) gets a new connection; a dropped connection fails its
// subscriptions with ErrConnectionLost and is redialled on the next subscribe.
// Subscribing never blocks: the dial and the SUBSCRIBE frame happen in the background.
type Live struct {
	c      *Client
	dialer *websocket.Dialer
	logger zerolog.Logger
	ctx    context.Context
	stop   context.CancelFunc
	nextID atomic.Uint64

	dialMu sync.Mutex

	mu     sync.Mutex
	conn   *liveConn
	closed bool
}

type liveSub struct {
	onSnapshot func(wire.SnapshotPayload)
	onErr      func(error)
}

type liveConn struct {
	ws    *websocket.Conn
	token string

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]liveSub
	dead bool
}

// liveHandle tracks one subscription between subscribe and the background open.
type liveHandle struct {
	mu        sync.Mutex
	cancelled bool
	conn      *liveConn
}

func (h *liveHandle) cancel() *liveConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
	return h.conn
}

// attach reports false when the subscription was cancelled before it was opened.
func (h *liveHandle) attach(conn *liveConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return false
	}
	h.conn = conn
	return true
}

func (h *liveHandle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func NewLive(c *Client) *Live {
	ctx, stop := context.WithCancel(context.Background())
	return &Live{
		c:      c,
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
		logger: logx.Component("live"),
		ctx:    ctx,
		stop:   stop,
	}
}

// wsURL turns the API base into the websocket endpoint for token.
func (l *Live) wsURL(token string) (string, error) {
	u, err := url.Parse(l.c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// connection returns the open connection for the current token, dialling if needed.
// Dials are serialised by dialMu; l.mu is never held across the network.
func (l *Live) connection() (*liveConn, error) {
	token := l.c.Token()
	if token == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	l.dialMu.Lock()
	defer l.dialMu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrConnectionLost
	}
	if l.conn != nil && l.conn.token == token && !l.conn.isDead() {
		conn := l.conn
		l.mu.Unlock()
		return conn, nil
	}
	old := l.conn
	l.conn = nil
	l.mu.Unlock()

	if old != nil {
		old.shutdown()
	}

	target, err := l.wsURL(token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(l.ctx, dialTimeout)
	defer cancel()
	ws, _, err := l.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial live endpoint: %w", err)
	}

	conn := &liveConn{ws: ws, token: token, subs: map[string]liveSub{}}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = ws.Close()
		return nil, ErrConnectionLost
	}
	l.conn = conn
	l.mu.Unlock()

	go l.readLoop(conn)

	l.logger.Debug().Msg("live connection established")
	return conn, nil
}

// subscribe opens a subscription on target and returns at once. Failures, including
// a failed dial, are reported through onErr unless the subscription was cancelled.
func (l *Live) subscribe(target wire.Target, onSnapshot func(wire.SnapshotPayload), onErr func(error)) func() {
	id := "s" + strconv.FormatUint(l.nextID.Add(1), 10)
	h := &liveHandle{}

	go l.open(id, h, target, liveSub{onSnapshot: onSnapshot, onErr: onErr})

	var once sync.Once
	return func() {
		once.Do(func() {
			conn := h.cancel()
			if conn != nil && conn.remove(id) {
				l.unsubscribe(conn, id)
			}
		})
	}
}

func (l *Live) open(id string, h *liveHandle, target wire.Target, sub liveSub) {
	conn, err := l.connection()
	if err != nil {
		if !h.isCancelled() {
			sub.onErr(err)
		}
		return
	}

	conn.mu.Lock()
	conn.subs[id] = sub
	conn.mu.Unlock()

	if !h.attach(conn) {
		conn.remove(id)
		return
	}

	if err := conn.write(wire.TypeSubscribe, wire.SubscribePayload{ID: id, Target: target}); err != nil {
		if conn.remove(id) {
			sub.onErr(err)
		}
		return
	}

	// Cancelled while SUBSCRIBE was in flight: the server may have seen the
	// UNSUBSCRIBE first.
	if h.isCancelled() {
		l.unsubscribe(conn, id)
	}
}

func (l *Live) unsubscribe(conn *liveConn, id string) {
	if err := conn.write(wire.TypeUnsubscribe, wire.UnsubscribePayload{ID: id}); err != nil {
		l.logger.Debug().Err(err).Str("sub", id).Msg("unsubscribe not sent")
	}
}

func (l *Live) readLoop(conn *liveConn) {
	for {
		var msg wire.Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if !conn.isDead() {
				l.logger.Warn().Err(err).Msg("live connection dropped")
			}
			conn.fail(ErrConnectionLost)
			return
		}

		switch msg.Type {
		case wire.TypeSnapshot:
			var p wire.SnapshotPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				l.logger.Warn().Err(err).Msg("bad snapshot payload")
				continue
			}
			if sub, ok := conn.get(p.ID); ok {
				sub.onSnapshot(p)
			}

		case wire.TypeError:
			var p wire.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				l.logger.Warn().Err(err).Msg("bad error payload")
				continue
			}
			if p.ID == "" {
				l.logger.Warn().Int("code", p.Code).Str("message", p.Message).Msg("live connection error")
				continue
			}
			sub, ok := conn.get(p.ID)
			if ok && conn.remove(p.ID) {
				sub.onErr(&errs.CustomError{Code: p.Code, Message: p.Message})
			}
		}
	}
}

// Close drops the connection. Open subscriptions are released without callbacks;
// ones still waiting for a dial report an error through onErr unless cancelled.
func (l *Live) Close() {
	l.stop()

	l.mu.Lock()
	l.closed = true
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		conn.shutdown()
	}
}

func (c *liveConn) write(t string, payload any) error {
	msg, err := wire.NewMessage(t, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *liveConn) get(id string) (liveSub, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	return sub, ok
}

// remove reports whether id was still open.
func (c *liveConn) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return false
	}
	delete(c.subs, id)
	return true
}

func (c *liveConn) isDead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// fail ends every open subscription with err.
func (c *liveConn) fail(err error) {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]liveSub{}
	wasDead := c.dead
	c.dead = true
	c.mu.Unlock()

	_ = c.ws.Close()
	if wasDead {
		return
	}
	for _, sub := range subs {
		sub.onErr(err)
	}
}

// shutdown closes the connection without failing its subscriptions.
func (c *liveConn) shutdown() {
	c.mu.Lock()
	c.dead = true
	c.subs = map[string]liveSub{}
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = c.ws.Close()
}
