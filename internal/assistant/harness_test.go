package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/llm"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/presence"
	"github.com/real-rm/linkup/internal/ratelimit"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/support"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/require"
)

// harness wires the assistant to an in-memory store and a live registry.
type harness struct {
	t          *testing.T
	logger     *golog.Logger
	store      *storage.MemoryStore
	registry   *presence.Registry
	policy     *membership.Policy
	settings   *config.SettingsSource
	provider   *testutil.MockProvider
	machine    *support.Machine
	evaluator  *Evaluator
	orch       *Orchestrator
	runner     *Runner
	dispatcher *Dispatcher
	conns      map[string]*testutil.RecordingConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testutil.CreateTestLogger(t)
	store := storage.NewMemoryStore()
	resolver := membership.NewResolver(store, logger)
	registry := presence.NewRegistry(resolver, store, logger)
	policy := membership.NewPolicy(resolver, store, registry, registry)
	settings := config.NewSettingsSource(store, config.DefaultSettings(), logger)
	provider := &testutil.MockProvider{ProviderName: "gemini", Chunks: []string{"LinkUp is ", "a chat platform."}}
	machine := support.NewMachine(store, registry, logger)

	orch := NewOrchestrator(OrchestratorDeps{
		Generator: llm.NewChain([]llm.Provider{provider}, logger),
		Settings:  settings,
		Rooms:     store,
		Messages:  store,
		Usage:     store,
		Support:   machine,
		Audience:  policy,
	}, logger)
	runner := NewRunner(orch, 2, 16, logger)
	runner.Start()
	evaluator := NewEvaluator(settings, ratelimit.NewMemoryCooldown(), store, logger)

	h := &harness{
		t:          t,
		logger:     logger,
		store:      store,
		registry:   registry,
		policy:     policy,
		settings:   settings,
		provider:   provider,
		machine:    machine,
		evaluator:  evaluator,
		orch:       orch,
		runner:     runner,
		dispatcher: NewDispatcher(evaluator, store, runner, logger),
		conns:      make(map[string]*testutil.RecordingConn),
	}
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })
	return h
}

// connect registers a user and a live connection for them.
func (h *harness) connect(u *storage.User, rooms ...string) *testutil.RecordingConn {
	h.t.Helper()
	h.store.PutUser(u)
	for _, r := range rooms {
		require.NoError(h.t, h.store.EnsureMember(context.Background(), r, u.ID, constants.RoleMember))
	}
	c := testutil.NewRecordingConn("conn-"+u.ID, u.ID)
	h.registry.Connect(c)
	h.conns[u.ID] = c
	return c
}

// post persists a human message the way the router does before evaluation.
func (h *harness) post(id, roomID string, sender *storage.User, content, receiverID string) *storage.Message {
	h.t.Helper()
	msg := &storage.Message{
		ID:         id,
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Status:     constants.StatusSent,
	}
	require.NoError(h.t, h.store.InsertMessage(context.Background(), msg))
	return msg
}

// drain waits until every queued job has finished.
func (h *harness) drain() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.runner.Shutdown(ctx))
}

func (h *harness) botMessages(roomID string) []*storage.Message {
	var out []*storage.Message
	for _, m := range h.store.Messages() {
		if m.RoomID == roomID && m.IsBot {
			out = append(out, m)
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
