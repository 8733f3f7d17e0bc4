package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/real-rm/linkup/internal/constants"
)

// MemoryStore is an in-process Store used by tests and local runs without MongoDB.
// Returned documents are copies; mutating them does not change the store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	rooms    map[string]*Room
	members  map[string][]Membership
	messages []*Message
	threads  map[string]*SupportThread
	usage    []*AIUsage
	reports  []*Report
	logs     []*SystemLog
	config   *SystemConfig
	friends  []FriendRequest
	failures map[string]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		rooms:    make(map[string]*Room),
		members:  make(map[string][]Membership),
		threads:  make(map[string]*SupportThread),
		failures: make(map[string]error),
	}
}

// FailOn makes the named operation return err until cleared with a nil err.
func (m *MemoryStore) FailOn(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, operation)
		return
	}
	m.failures[operation] = err
}

func (m *MemoryStore) failure(operation string) error {
	return m.failures[operation]
}

// PutUser stores or replaces a user.
func (m *MemoryStore) PutUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

// PutRoom stores or replaces a room.
func (m *MemoryStore) PutRoom(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rooms[r.ID] = &cp
}

// PutConfig replaces the runtime settings document. nil removes it.
func (m *MemoryStore) PutConfig(cfg *SystemConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg == nil {
		m.config = nil
		return
	}
	cp := *cfg
	m.config = &cp
}

// AddFriendship records an accepted friend request between a and b.
func (m *MemoryStore) AddFriendship(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends = append(m.friends, FriendRequest{FromID: a, ToID: b, Status: "accepted"})
}

// Messages returns copies of every stored message in insertion order.
func (m *MemoryStore) Messages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = copyMessage(msg)
	}
	return out
}

// UsageRecords returns copies of every AI usage record.
func (m *MemoryStore) UsageRecords() []AIUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AIUsage, len(m.usage))
	for i, u := range m.usage {
		out[i] = *u
	}
	return out
}

// Reports returns copies of every report.
func (m *MemoryStore) Reports() []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Report, len(m.reports))
	for i, r := range m.reports {
		out[i] = *r
	}
	return out
}

// SystemLogs returns copies of every system log entry.
func (m *MemoryStore) SystemLogs() []SystemLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SystemLog, len(m.logs))
	for i, l := range m.logs {
		out[i] = *l
	}
	return out
}

func copyMessage(msg *Message) *Message {
	cp := *msg
	if msg.Reactions != nil {
		cp.Reactions = make(map[string][]string, len(msg.Reactions))
		for k, v := range msg.Reactions {
			cp.Reactions[k] = append([]string(nil), v...)
		}
	}
	cp.DeletedByUsers = append([]string{}, msg.DeletedByUsers...)
	return &cp
}

func (m *MemoryStore) findMessage(id string) *Message {
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("get_user"); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidID
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUsers(_ context.Context, userIDs []string) (map[string]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*User, len(userIDs))
	for _, id := range userIDs {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryStore) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsOnline = online
	ts := at
	u.LastSeen = &ts
	return nil
}

func (m *MemoryStore) ListStaff(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("list_staff"); err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for id, u := range m.users {
		if u.IsStaff() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) AcceptedFriends(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0)
	for _, fr := range m.friends {
		if fr.Status != "accepted" {
			continue
		}
		switch userID {
		case fr.FromID:
			ids = append(ids, fr.ToID)
		case fr.ToID:
			ids = append(ids, fr.FromID)
		}
	}
	return ids, nil
}

func (m *MemoryStore) GetRoom(_ context.Context, roomID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if roomID == "" {
		return nil, ErrInvalidID
	}
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) TouchRoom(_ context.Context, roomID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		ts := at
		r.UpdatedAt = &ts
	}
	return nil
}

func (m *MemoryStore) RoomMembers(_ context.Context, roomID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("room_members"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.members[roomID]))
	for _, mem := range m.members[roomID] {
		ids = append(ids, mem.UserID)
	}
	return ids, nil
}

func (m *MemoryStore) EnsureMember(_ context.Context, roomID, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomID == "" || userID == "" {
		return ErrInvalidID
	}
	for _, mem := range m.members[roomID] {
		if mem.UserID == userID {
			return nil
		}
	}
	m.members[roomID] = append(m.members[roomID], Membership{
		RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryStore) InsertMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("insert_message"); err != nil {
		return err
	}
	if msg == nil || msg.ID == "" {
		return ErrInvalidID
	}
	if msg.DeletedByUsers == nil {
		msg.DeletedByUsers = []string{}
	}
	m.messages = append(m.messages, copyMessage(msg))
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, messageID string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if messageID == "" {
		return nil, ErrInvalidID
	}
	msg := m.findMessage(messageID)
	if msg == nil {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

func (m *MemoryStore) mutate(messageID string, fn func(*Message)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findMessage(messageID)
	if msg == nil {
		return ErrNotFound
	}
	fn(msg)
	return nil
}

func (m *MemoryStore) EditMessage(_ context.Context, messageID, content string, at time.Time) error {
	return m.mutate(messageID, func(msg *Message) {
		ts := at
		msg.Content = content
		msg.IsEdited = true
		msg.EditedAt = &ts
	})
}

func (m *MemoryStore) RecallMessage(_ context.Context, messageID, placeholder string) error {
	return m.mutate(messageID, func(msg *Message) {
		msg.Content = placeholder
		msg.IsRecalled = true
	})
}

func (m *MemoryStore) UpdateReplyPreviews(_ context.Context, parentID, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.ReplyToID == parentID && msg.ReplyToContent != content {
			msg.ReplyToContent = content
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) HideMessage(_ context.Context, messageID, userID string) error {
	return m.mutate(messageID, func(msg *Message) {
		for _, id := range msg.DeletedByUsers {
			if id == userID {
				return
			}
		}
		msg.DeletedByUsers = append(msg.DeletedByUsers, userID)
	})
}

func (m *MemoryStore) SetPinned(_ context.Context, messageID string, pinned bool) error {
	return m.mutate(messageID, func(msg *Message) { msg.IsPinned = pinned })
}

func (m *MemoryStore) SetReactions(_ context.Context, messageID string, reactions map[string][]string) error {
	return m.mutate(messageID, func(msg *Message) {
		msg.Reactions = make(map[string][]string, len(reactions))
		for k, v := range reactions {
			msg.Reactions[k] = append([]string(nil), v...)
		}
	})
}

func (m *MemoryStore) MarkSeen(_ context.Context, roomID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findMessage(messageID)
	if msg == nil || msg.RoomID != roomID {
		return ErrNotFound
	}
	msg.Status = constants.StatusSeen
	return nil
}

func (m *MemoryStore) MarkRoomSeen(_ context.Context, roomID, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.SenderID != readerID && msg.Status != constants.StatusSeen {
			msg.Status = constants.StatusSeen
			n++
		}
	}
	return n, nil
}

// newestFirst returns the room's messages sorted by descending timestamp.
// Equal timestamps keep reverse insertion order.
func (m *MemoryStore) newestFirst(roomID string) []*Message {
	out := make([]*Message, 0)
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].RoomID == roomID {
			out = append(out, m.messages[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (m *MemoryStore) RecentMessages(_ context.Context, q MessageQuery) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("recent_messages"); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = constants.ContextMessageCount
	}
	out := make([]*Message, 0, limit)
	for _, msg := range m.newestFirst(q.RoomID) {
		if q.ExcludeID != "" && msg.ID == q.ExcludeID {
			continue
		}
		if q.Participant != "" && msg.SenderID != q.Participant && msg.ReceiverID != q.Participant {
			continue
		}
		out = append(out, copyMessage(msg))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) LastHumanMessages(_ context.Context, roomID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]*Message, 0)
	for _, msg := range m.newestFirst(roomID) {
		if msg.IsBot || msg.SenderID == "" {
			continue
		}
		if _, ok := seen[msg.SenderID]; ok {
			continue
		}
		seen[msg.SenderID] = struct{}{}
		out = append(out, copyMessage(msg))
	}
	return out, nil
}

func (m *MemoryStore) HasReplyAfter(_ context.Context, roomID, userID string, t time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.RoomID != roomID || !msg.Timestamp.After(t) {
			continue
		}
		if msg.ReceiverID == userID || (msg.IsBot && msg.ReceiverID == "") {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) HasRecentStaffReply(_ context.Context, roomID, userID string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.RoomID != roomID || msg.ReceiverID != userID || msg.IsBot {
			continue
		}
		if msg.SenderID == "" || msg.SenderID == userID || msg.Timestamp.Before(since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (m *MemoryStore) GetThread(_ context.Context, userID string) (*SupportThread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	th, ok := m.threads[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *th
	return &cp, nil
}

func (m *MemoryStore) SetThreadStatus(_ context.Context, userID, username, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("set_thread_status"); err != nil {
		return err
	}
	if userID == "" {
		return ErrInvalidID
	}
	th, ok := m.threads[userID]
	if !ok {
		th = &SupportThread{UserID: userID}
		m.threads[userID] = th
	}
	th.Status = status
	th.UpdatedAt = at
	if username != "" {
		th.Username = username
	}
	return nil
}

func (m *MemoryStore) InsertUsage(_ context.Context, rec *AIUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.usage = append(m.usage, &cp)
	return nil
}

func (m *MemoryStore) CountUsage(_ context.Context, q UsageQuery) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("count_usage"); err != nil {
		return 0, err
	}
	n := 0
	for _, u := range m.usage {
		if u.Day != q.Day || u.Status != constants.UsageSuccess {
			continue
		}
		if q.UserID != "" && u.UserID != q.UserID {
			continue
		}
		if q.RoomID != "" && u.RoomID != q.RoomID {
			continue
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) InsertSystemLog(_ context.Context, entry *SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *MemoryStore) InsertReport(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r == nil || r.ID == "" {
		return ErrInvalidID
	}
	cp := *r
	m.reports = append(m.reports, &cp)
	return nil
}

func (m *MemoryStore) GetSystemConfig(_ context.Context) (*SystemConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("get_system_config"); err != nil {
		return nil, err
	}
	if m.config == nil {
		return nil, ErrNotFound
	}
	cp := *m.config
	return &cp, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)
