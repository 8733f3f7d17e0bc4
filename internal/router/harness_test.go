package router

import (
	"context"
	"sync"
	"testing"

	"github.com/real-rm/linkup/internal/assistant"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/presence"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/require"
)

// triggerLog records what the router hands to the assistant.
type triggerLog struct {
	mu       sync.Mutex
	triggers []assistant.Trigger
}

func (l *triggerLog) OnMessage(_ context.Context, t assistant.Trigger) (assistant.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggers = append(l.triggers, t)
	return assistant.Decision{}, nil
}

func (l *triggerLog) All() []assistant.Trigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]assistant.Trigger(nil), l.triggers...)
}

type harness struct {
	t        *testing.T
	store    *storage.MemoryStore
	registry *presence.Registry
	machine  *support.Machine
	triggers *triggerLog
	router   *MessageRouter
	conns    map[string]*testutil.RecordingConn
	users    map[string]*storage.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testutil.CreateTestLogger(t)
	store := storage.NewMemoryStore()
	resolver := membership.NewResolver(store, logger)
	registry := presence.NewRegistry(resolver, store, logger)
	policy := membership.NewPolicy(resolver, store, registry, registry)
	machine := support.NewMachine(store, registry, logger)
	triggers := &triggerLog{}

	r := NewMessageRouter(Deps{
		Store:     store,
		Policy:    policy,
		Notifier:  registry,
		Settings:  config.NewSettingsSource(store, config.DefaultSettings(), logger),
		Support:   machine,
		Assistant: triggers,
	}, logger)

	return &harness{
		t:        t,
		store:    store,
		registry: registry,
		machine:  machine,
		triggers: triggers,
		router:   r,
		conns:    make(map[string]*testutil.RecordingConn),
		users:    make(map[string]*storage.User),
	}
}

// connect stores u, joins it to rooms and opens a recording connection.
func (h *harness) connect(u *storage.User, rooms ...string) *testutil.RecordingConn {
	h.t.Helper()
	h.store.PutUser(u)
	for _, r := range rooms {
		require.NoError(h.t, h.store.EnsureMember(context.Background(), r, u.ID, constants.RoleMember))
	}
	c := testutil.NewRecordingConn("conn-"+u.ID, u.ID)
	h.registry.Connect(c)
	h.conns[u.ID] = c
	h.users[u.ID] = u
	return c
}

func (h *harness) route(userID string, ev message.Event) error {
	h.t.Helper()
	return h.router.Route(context.Background(), h.users[userID], &ev)
}

func (h *harness) send(userID, roomID, content string) *storage.Message {
	h.t.Helper()
	before := len(h.store.Messages())
	require.NoError(h.t, h.route(userID, message.Event{Type: message.TypeSendMessage, RoomID: roomID, Content: content}))
	msgs := h.store.Messages()
	require.Len(h.t, msgs, before+1)
	return msgs[len(msgs)-1]
}

func (h *harness) reset() {
	for _, c := range h.conns {
		c.Reset()
	}
}

func (h *harness) message(id string) *storage.Message {
	h.t.Helper()
	m, err := h.store.GetMessage(context.Background(), id)
	require.NoError(h.t, err)
	return m
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
