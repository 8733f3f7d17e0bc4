// Package websocket is the connection entry point. It authenticates the
// handshake, upgrades it, registers the connection for delivery and feeds
// inbound events to the router one at a time.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/auth"
	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/presence"
	"github.com/real-rm/linkup/internal/ratelimit"
	"github.com/real-rm/linkup/internal/router"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

var (
	// upgrader configures the WebSocket upgrade. TLS is terminated by the
	// reverse proxy in front of the service.
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// pongWait is the time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// pingPeriod is the interval for sending ping messages (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// writeWait is the time allowed to write a message to the peer
	writeWait = 10 * time.Second

	sendBufferSize = constants.SendBufferSize
)

// TokenValidator checks handshake credentials.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// UserLoader reads the user document of an authenticated subject.
type UserLoader interface {
	GetUser(ctx context.Context, userID string) (*storage.User, error)
}

// EventRouter handles inbound events and presence changes.
type EventRouter interface {
	Route(ctx context.Context, user *storage.User, ev *message.Event) error
	SetPresence(ctx context.Context, userID string, online bool) error
}

// Registry is the delivery map connections join and leave.
type Registry interface {
	Connect(conn presence.Conn) bool
	Disconnect(conn presence.Conn) bool
	SendToUser(ctx context.Context, userID string, payload message.Payload) int
	Shutdown(ctx context.Context) error
}

// StaffSweeper answers support messages left pending by a departing staff user.
type StaffSweeper interface {
	AdminOffline(ctx context.Context, adminID string) (int, error)
}

// BackgroundRunner runs work that must outlive the connection.
type BackgroundRunner interface {
	Go(ctx context.Context, component string, fn func(ctx context.Context))
}

// Deps are the collaborators of a Handler. Sweeper and Runner are optional.
type Deps struct {
	Validator TokenValidator
	Users     UserLoader
	Router    EventRouter
	Registry  Registry
	Sweeper   StaffSweeper
	Runner    BackgroundRunner
}

// Options tune per-connection limits. Zero values take the defaults.
type Options struct {
	MaxMessageSize int64
	MaxConnections int
	EventRate      float64
	EventBurst     int
}

// Handler manages WebSocket upgrades and the lifetime of each connection.
type Handler struct {
	validator TokenValidator
	users     UserLoader
	router    EventRouter
	registry  Registry
	sweeper   StaffSweeper
	runner    BackgroundRunner
	logger    *golog.Logger

	connLimiter    *ratelimit.ConnectionLimiter
	eventLimiter   *ratelimit.EventLimiter
	maxMessageSize int64
	maxErrors      int
	errorBackoff   time.Duration

	mu             sync.RWMutex
	allowedOrigins map[string]bool

	// active counts connections whose teardown has not finished.
	active sync.WaitGroup
}

// NewHandler creates a WebSocket handler.
func NewHandler(deps Deps, opts Options, logger *golog.Logger) *Handler {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = constants.DefaultMaxMessageSize
	}
	return &Handler{
		validator:      deps.Validator,
		users:          deps.Users,
		router:         deps.Router,
		registry:       deps.Registry,
		sweeper:        deps.Sweeper,
		runner:         deps.Runner,
		logger:         logger.WithGroup("websocket"),
		connLimiter:    ratelimit.NewConnectionLimiter(opts.MaxConnections),
		eventLimiter:   ratelimit.NewEventLimiter(opts.EventRate, opts.EventBurst),
		maxMessageSize: opts.MaxMessageSize,
		maxErrors:      constants.MaxConsecutiveErrors,
		errorBackoff:   constants.ErrorBackoff,
		allowedOrigins: make(map[string]bool),
	}
}

// SetAllowedOrigins configures the allowed origins for WebSocket connections
// If no origins are set, all origins are allowed (development mode)
func (h *Handler) SetAllowedOrigins(origins []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.allowedOrigins = make(map[string]bool)
	for _, origin := range origins {
		h.allowedOrigins[origin] = true
	}

	h.logger.Info("Configured allowed origins",
		"count", len(origins),
		"origins", origins)
}

// IsOpenOrigin returns true when no allowed origins are configured.
func (h *Handler) IsOpenOrigin() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allowedOrigins) == 0
}

// checkOrigin validates the origin of a WebSocket upgrade request
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	h.mu.RLock()
	defer h.mu.RUnlock()

	// No else needed: early return pattern (guard clause)
	if len(h.allowedOrigins) == 0 || h.allowedOrigins[origin] {
		return true
	}

	h.logger.Warn("Origin not allowed", "origin", origin)
	return false
}

// HandleWebSocket authenticates and upgrades one request. The token comes
// from the Authorization header, the token query parameter or pathToken, in
// that order. A bad token is answered with 401 before the upgrade; a token
// whose user cannot be loaded is closed with 1008 right after it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, pathToken string) {
	token, err := util.ResolveToken(r.Header.Get(constants.HeaderAuthorization), r.URL.Query().Get("token"), pathToken)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		msg := "Missing authentication token"
		if errors.Is(err, util.ErrInvalidAuthHeader) {
			msg = constants.ErrMsgInvalidAuthHeader
		}
		http.Error(w, msg, http.StatusUnauthorized)
		return
	}

	claims, err := h.validator.ValidateToken(token)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		h.logger.Warn("JWT validation failed", "error", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	// No else needed: early return pattern (guard clause)
	if !h.connLimiter.Allow(claims.UserID) {
		h.logger.Warn("Connection limit exceeded", "user_id", claims.UserID)
		limitErr := chaterrors.ErrConnectionLimitExceeded(5000)
		h.registry.SendToUser(r.Context(), claims.UserID, router.ErrorPayload(limitErr))
		w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(limitErr.RetryAfter/constants.MillisecondsPerSecond))
		http.Error(w, limitErr.Message, http.StatusTooManyRequests)
		return
	}

	localUpgrader := upgrader
	localUpgrader.CheckOrigin = h.checkOrigin
	conn, err := localUpgrader.Upgrade(w, r, nil)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		h.connLimiter.Release(claims.UserID)
		util.LogError(h.logger, "websocket", "upgrade connection", err, "user_id", claims.UserID)
		return
	}

	user, err := h.loadUser(claims.UserID)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		h.connLimiter.Release(claims.UserID)
		code, reason := websocket.CloseInternalServerErr, "user lookup failed"
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			code, reason = websocket.ClosePolicyViolation, "unknown user"
		}
		h.logger.Warn("Rejecting connection", "user_id", claims.UserID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	c := newConnection(conn, uuid.NewString(), user, h.eventLimiter.Acquire(user.ID))
	h.start(c)
}

func (h *Handler) loadUser(userID string) (*storage.User, error) {
	ctx, cancel := util.NewTimeoutContext(constants.DefaultContextTimeout)
	defer cancel()
	return h.users.GetUser(ctx, userID)
}

// start registers c, announces the user when this is their first connection
// and runs the pumps. Teardown happens when the read pump exits.
func (h *Handler) start(c *Connection) {
	h.active.Add(1)
	first := h.registry.Connect(c)

	h.logger.Info("WebSocket connection established",
		"user_id", c.UserID(),
		"connection_id", c.ID(),
		"first", first)

	// No else needed: optional operation (only the first connection flips presence)
	if first {
		h.setPresence(context.Background(), c.UserID(), true)
	}

	util.SafeGo(h.logger, "writePump", c.writePump)
	util.SafeGo(h.logger, "readPump", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer h.teardown(c)
		c.readPump(ctx, h)
	})
}

// teardown unregisters c. The user's last connection marks them offline, and
// a staff user's departure triggers the support catch-up sweep.
func (h *Handler) teardown(c *Connection) {
	defer h.active.Done()

	c.CloseWithCode(websocket.CloseNormalClosure, "")
	h.eventLimiter.Release(c.UserID())
	h.connLimiter.Release(c.UserID())
	last := h.registry.Disconnect(c)

	h.logger.Info("WebSocket connection closed",
		"user_id", c.UserID(),
		"connection_id", c.ID(),
		"last", last)

	// No else needed: early return pattern (guard clause)
	if !last {
		return
	}
	h.setPresence(context.Background(), c.UserID(), false)

	// No else needed: optional operation (only staff departures trigger a sweep)
	if c.User().IsStaff() && h.sweeper != nil && h.runner != nil {
		adminID := c.UserID()
		h.runner.Go(context.Background(), "support_sweep", func(ctx context.Context) {
			n, err := h.sweeper.AdminOffline(ctx, adminID)
			if err != nil {
				util.LogError(h.logger, "websocket", "run support catch-up", err, "admin_id", adminID)
				return
			}
			h.logger.Debug("Support catch-up queued", "admin_id", adminID, "jobs", n)
		})
	}
}

func (h *Handler) setPresence(parent context.Context, userID string, online bool) {
	ctx, cancel := util.NewDetachedContext(parent, constants.StatusNotifyTimeout)
	defer cancel()
	// No else needed: optional operation (presence failures do not affect the connection)
	if err := h.router.SetPresence(ctx, userID, online); err != nil {
		util.LogError(h.logger, "websocket", "update presence", err, "user_id", userID, "online", online)
	}
}

// Shutdown closes every connection with 1001 and waits for their teardown
// until ctx expires.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.logger.Info("Shutting down WebSocket handler, closing all connections")
	if err := h.registry.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info("All WebSocket connections closed gracefully")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Shutdown deadline exceeded, forcing closure")
		return ctx.Err()
	}
}
