package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/real-rm/golog"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/router"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
	"golang.org/x/time/rate"
)

// Connection is one authenticated socket. It satisfies presence.Conn.
type Connection struct {
	conn   *websocket.Conn
	id     string
	user   *storage.User
	events *rate.Limiter

	// send is a buffered channel for outbound frames
	send chan []byte

	// closing stops SafeSend once teardown has started.
	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	// closeCode and closeReason are written before done is closed.
	closeCode   int
	closeReason string
}

func newConnection(conn *websocket.Conn, id string, user *storage.User, events *rate.Limiter) *Connection {
	return &Connection{
		conn:   conn,
		id:     id,
		user:   user,
		events: events,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// UserID returns the owner's user id.
func (c *Connection) UserID() string { return c.user.ID }

// User returns the user document loaded at connect time.
func (c *Connection) User() *storage.User { return c.user }

// SafeSend queues data without blocking. It returns false when the
// connection is closing or the buffer is full.
func (c *Connection) SafeSend(data []byte) bool {
	if c.closing.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// CloseWithCode flushes queued frames, writes a close frame and tears the
// socket down. Only the first call has an effect.
func (c *Connection) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		c.closing.Store(true)
		close(c.done)
	})
}

// sendPayload encodes payload for this connection only.
func (c *Connection) sendPayload(payload message.Payload, logger *golog.Logger) {
	data, err := util.MarshalNormalized(payload)
	if err != nil {
		util.LogError(logger, "websocket", "encode payload", err, "connection_id", c.id)
		return
	}
	// No else needed: optional operation (a full buffer drops the frame)
	if !c.SafeSend(data) {
		logger.Warn("Dropping frame, send buffer full or closing",
			"user_id", c.UserID(),
			"connection_id", c.id,
			"type", payload.Type())
	}
}

// readPump processes inbound events one at a time until the socket fails or
// the error streak exceeds the limit.
func (c *Connection) readPump(ctx context.Context, h *Handler) {
	c.conn.SetReadLimit(h.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	errs := streak{limit: h.maxErrors}
	for {
		_, raw, err := c.conn.ReadMessage()
		// No else needed: error handling with return (exits loop)
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				h.logger.Warn("WebSocket message size limit exceeded",
					"user_id", c.UserID(),
					"connection_id", c.id,
					"limit", h.maxMessageSize)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
				util.LogError(h.logger, "websocket", "read frame", err,
					"user_id", c.UserID(),
					"connection_id", c.id)
			default:
				h.logger.Debug("WebSocket connection closing",
					"user_id", c.UserID(),
					"connection_id", c.id)
			}
			return
		}

		failed := c.handleFrame(ctx, h, raw)
		// No else needed: early return pattern (guard clause)
		if errs.record(failed) {
			metrics.ErrorClosures.Inc()
			h.logger.Warn("Too many consecutive errors, closing connection",
				"user_id", c.UserID(),
				"connection_id", c.id,
				"errors", errs.n)
			c.CloseWithCode(websocket.CloseInternalServerErr, "too many errors")
			return
		}
		if !failed {
			continue
		}
		select {
		case <-time.After(h.errorBackoff):
		case <-c.done:
			return
		}
	}
}

// streak counts consecutive failed events.
type streak struct {
	n     int
	limit int
}

// record adds one outcome and reports whether the streak is over the limit.
func (s *streak) record(failed bool) bool {
	if !failed {
		s.n = 0
		return false
	}
	s.n++
	return s.n > s.limit
}

// handleFrame decodes and routes one frame. It reports whether the outcome
// counts toward the error streak: malformed frames and unexpected handler
// failures do, client errors such as validation and rate limits do not.
func (c *Connection) handleFrame(ctx context.Context, h *Handler, raw []byte) bool {
	var ev message.Event
	// No else needed: early return pattern (guard clause)
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.logger.Warn("Failed to parse event",
			"user_id", c.UserID(),
			"connection_id", c.id,
			"error", err)
		metrics.HandlerErrors.WithLabelValues("invalid", "parse").Inc()
		c.sendPayload(router.ErrorPayload(chaterrors.ErrInvalidMessageFormat("malformed JSON", err)), h.logger)
		return true
	}

	// No else needed: early return pattern (guard clause)
	if c.events != nil && !c.events.Allow() {
		r := c.events.Reserve()
		retryAfter := int(r.Delay().Milliseconds())
		r.Cancel()
		metrics.HandlerErrors.WithLabelValues("throttled", string(chaterrors.CategoryRateLimit)).Inc()
		c.sendPayload(router.ErrorPayload(chaterrors.ErrTooManyRequests(retryAfter)), h.logger)
		return false
	}

	// No else needed: optional operation (the router treats ping as a no-op)
	if ev.Type.Canonical() == message.TypePing {
		c.sendPayload(message.Pong(), h.logger)
	}

	reqCtx := util.NewContextWithTraceID(ctx)
	err := h.router.Route(reqCtx, c.user, &ev)
	// No else needed: early return pattern (guard clause)
	if err == nil {
		return false
	}
	c.sendPayload(router.ErrorPayload(err), h.logger)
	return !chaterrors.IsClientError(err)
}

// writePump is the only writer of the socket. It drains the send buffer,
// pings the peer and, once CloseWithCode is called, flushes what is queued
// before the close frame.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			// No else needed: error handling with return (exits function)
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.CloseWithCode(0, "")
				return
			}
		case <-ticker.C:
			// No else needed: error handling with return (exits function)
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.CloseWithCode(0, "")
				return
			}
		case <-c.done:
			c.flush()
			// No else needed: optional operation (a broken socket gets no close frame)
			if c.closeCode != 0 {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason))
			}
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// flush writes the frames queued before teardown started.
func (c *Connection) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
