// Package presence tracks which users are connected and delivers frames to them.
// A user may hold many connections; every delivery fans out to all of them.
package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/util"
	"golang.org/x/sync/errgroup"
)

// Conn is one live client connection as seen by the registry.
type Conn interface {
	ID() string
	UserID() string
	// SafeSend queues a frame without blocking. It returns false when the
	// connection is closing or its buffer is full.
	SafeSend(data []byte) bool
	// CloseWithCode sends a close frame and tears the connection down.
	CloseWithCode(code int, reason string)
}

// MemberResolver lists the users of a room.
type MemberResolver interface {
	Members(ctx context.Context, roomID string) ([]string, error)
}

// StaffDirectory lists staff user ids.
type StaffDirectory interface {
	ListStaff(ctx context.Context) ([]string, error)
}

type shard struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn
	// evicted holds connections dropped by the registry whose owner has not
	// called Disconnect yet; pending counts them per user so the last
	// Disconnect of a user is reported exactly once.
	evicted map[string]string
	pending map[string]int
}

// Registry is the per-process presence map, sharded by user id.
type Registry struct {
	shards  [constants.RegistryShards]*shard
	members MemberResolver
	staff   StaffDirectory
	logger  *golog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(members MemberResolver, staff StaffDirectory, logger *golog.Logger) *Registry {
	r := &Registry{
		members: members,
		staff:   staff,
		logger:  logger.WithGroup("presence"),
	}
	for i := range r.shards {
		r.shards[i] = &shard{
			users:   make(map[string]map[string]Conn),
			evicted: make(map[string]string),
			pending: make(map[string]int),
		}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	return r.shards[xxhash.Sum64String(userID)%uint64(len(r.shards))]
}

// Connect adds conn to its user's set and reports whether it is the user's first.
func (r *Registry) Connect(conn Conn) (first bool) {
	userID := conn.UserID()
	s := r.shardFor(userID)

	s.mu.Lock()
	set, ok := s.users[userID]
	if !ok {
		set = make(map[string]Conn)
		s.users[userID] = set
	}
	first = len(set) == 0 && s.pending[userID] == 0
	set[conn.ID()] = conn
	s.mu.Unlock()

	metrics.WebSocketConnections.Inc()
	// No else needed: optional operation (gauge tracks users, not connections)
	if first {
		metrics.OnlineUsers.Inc()
	}
	return first
}

// Disconnect removes conn and reports whether the user has no connection left.
// Calling it twice for the same connection is a no-op.
func (r *Registry) Disconnect(conn Conn) (last bool) {
	userID := conn.UserID()
	s := r.shardFor(userID)

	s.mu.Lock()
	set := s.users[userID]
	switch {
	case set != nil && set[conn.ID()] != nil:
		delete(set, conn.ID())
	case s.evicted[conn.ID()] != "":
		delete(s.evicted, conn.ID())
		if s.pending[userID]--; s.pending[userID] <= 0 {
			delete(s.pending, userID)
		}
	default:
		s.mu.Unlock()
		return false
	}
	if len(set) == 0 {
		delete(s.users, userID)
	}
	last = len(s.users[userID]) == 0 && s.pending[userID] == 0
	s.mu.Unlock()

	metrics.WebSocketConnections.Dec()
	// No else needed: optional operation (gauge tracks users, not connections)
	if last {
		metrics.OnlineUsers.Dec()
	}
	return last
}

// evict drops conn from its user's live set; its owner still calls Disconnect.
func (r *Registry) evict(conn Conn) bool {
	userID := conn.UserID()
	s := r.shardFor(userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.users[userID]
	if set == nil || set[conn.ID()] == nil {
		return false
	}
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(s.users, userID)
	}
	s.evicted[conn.ID()] = userID
	s.pending[userID]++
	return true
}

func (r *Registry) snapshot(userID string) []Conn {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.users[userID]
	conns := make([]Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// SendToUser delivers payload to every live connection of the user and
// returns how many accepted it. A connection that fails is evicted and closed;
// the others are unaffected.
func (r *Registry) SendToUser(ctx context.Context, userID string, payload message.Payload) int {
	data, err := util.MarshalNormalized(payload)
	if err != nil {
		util.LogError(r.logger, "presence", "encode payload", err, "user_id", userID, "type", payload.Type())
		return 0
	}
	return r.deliver(userID, data)
}

func (r *Registry) deliver(userID string, data []byte) int {
	delivered := 0
	for _, conn := range r.snapshot(userID) {
		if conn.SafeSend(data) {
			delivered++
			metrics.FramesSent.Inc()
			continue
		}
		// No else needed: optional operation (only the first failure closes the connection)
		if r.evict(conn) {
			metrics.DeliveryFailures.Inc()
			r.logger.Warn("Dropping connection after failed send",
				"user_id", userID,
				"connection_id", conn.ID())
			conn.CloseWithCode(websocket.CloseGoingAway, "send buffer full")
		}
	}
	return delivered
}

// BroadcastToUsers sends one encoded frame to each distinct user in ids.
func (r *Registry) BroadcastToUsers(ctx context.Context, ids []string, payload message.Payload) int {
	data, err := util.MarshalNormalized(payload)
	if err != nil {
		util.LogError(r.logger, "presence", "encode payload", err, "type", payload.Type())
		return 0
	}
	seen := make(map[string]struct{}, len(ids))
	delivered := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		delivered += r.deliver(id, data)
	}
	return delivered
}

// BroadcastToRoom sends payload to every member of the room, the sender included.
func (r *Registry) BroadcastToRoom(ctx context.Context, roomID string, payload message.Payload) int {
	if r.members == nil {
		return 0
	}
	ids, err := r.members.Members(ctx, roomID)
	if err != nil {
		util.LogError(r.logger, "presence", "resolve room members", err, "room_id", roomID)
		return 0
	}
	return r.BroadcastToUsers(ctx, ids, payload)
}

// BroadcastToAdmins sends payload to every staff user.
func (r *Registry) BroadcastToAdmins(ctx context.Context, payload message.Payload) int {
	if r.staff == nil {
		return 0
	}
	ids, err := r.staff.ListStaff(ctx)
	if err != nil {
		util.LogError(r.logger, "presence", "list staff", err)
		return 0
	}
	return r.BroadcastToUsers(ctx, ids, payload)
}

// ForceDisconnect notifies and closes every connection of the user and
// clears the entry. It returns the number of connections closed.
func (r *Registry) ForceDisconnect(userID string) int {
	s := r.shardFor(userID)

	s.mu.Lock()
	set := s.users[userID]
	delete(s.users, userID)
	conns := make([]Conn, 0, len(set))
	for id, c := range set {
		conns = append(conns, c)
		s.evicted[id] = userID
		s.pending[userID]++
	}
	s.mu.Unlock()

	data, err := util.MarshalNormalized(message.ForceLogout(constants.ForceLogoutText))
	for _, c := range conns {
		// No else needed: optional operation (close regardless of notice delivery)
		if err == nil {
			c.SafeSend(data)
		}
		c.CloseWithCode(websocket.CloseNormalClosure, "logged out by administrator")
	}
	// No else needed: optional operation (audit log)
	if len(conns) > 0 {
		r.logger.Info("Force disconnected user", "user_id", userID, "connections", len(conns))
	}
	return len(conns)
}

// IsConnected reports whether the user has at least one live connection.
func (r *Registry) IsConnected(userID string) bool {
	return r.ConnectionCount(userID) > 0
}

// ConnectionCount returns the number of live connections of the user.
func (r *Registry) ConnectionCount(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID])
}

// OnlineUserIDs returns the connected user ids, sorted.
func (r *Registry) OnlineUserIDs() []string {
	ids := make([]string, 0)
	for _, s := range r.shards {
		s.mu.RLock()
		for id, set := range s.users {
			if len(set) > 0 {
				ids = append(ids, id)
			}
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Counts returns a copy of user id to live connection count.
func (r *Registry) Counts() map[string]int {
	out := make(map[string]int)
	for _, s := range r.shards {
		s.mu.RLock()
		for id, set := range s.users {
			if len(set) > 0 {
				out[id] = len(set)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Shutdown closes every connection with 1001 going away, in parallel, until
// ctx expires. Entries stay until each connection's owner calls Disconnect.
func (r *Registry) Shutdown(ctx context.Context) error {
	var conns []Conn
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.users {
			for _, c := range set {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()
	}

	r.logger.Info("Closing connections", "count", len(conns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.RegistryShards)
	for _, c := range conns {
		g.Go(func() error {
			// No else needed: early return pattern (guard clause)
			if err := gctx.Err(); err != nil {
				return err
			}
			c.CloseWithCode(websocket.CloseGoingAway, "Server shutting down")
			return nil
		})
	}
	return g.Wait()
}
