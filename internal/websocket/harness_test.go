package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/real-rm/linkup/internal/auth"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/presence"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testSecret = "linkup-websocket-test-secret-0123456789"

type presenceCall struct {
	userID string
	online bool
}

// fakeRouter records routed events and presence changes. routeErr, when
// set, decides the result of each Route call.
type fakeRouter struct {
	mu       sync.Mutex
	events   []message.EventType
	presence []presenceCall
	routeErr func(ev *message.Event) error
}

func (f *fakeRouter) Route(_ context.Context, _ *storage.User, ev *message.Event) error {
	f.mu.Lock()
	f.events = append(f.events, ev.Type)
	fn := f.routeErr
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ev)
}

func (f *fakeRouter) SetPresence(_ context.Context, userID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, presenceCall{userID: userID, online: online})
	return nil
}

func (f *fakeRouter) Events() []message.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message.EventType(nil), f.events...)
}

func (f *fakeRouter) Presence() []presenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenceCall(nil), f.presence...)
}

type fakeSweeper struct {
	mu     sync.Mutex
	admins []string
}

func (f *fakeSweeper) AdminOffline(_ context.Context, adminID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, adminID)
	return 0, nil
}

func (f *fakeSweeper) Admins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.admins...)
}

type goRunner struct{}

func (goRunner) Go(ctx context.Context, _ string, fn func(ctx context.Context)) {
	go fn(context.WithoutCancel(ctx))
}

type harness struct {
	t        *testing.T
	store    *storage.MemoryStore
	registry *presence.Registry
	router   *fakeRouter
	sweeper  *fakeSweeper
	handler  *Handler
	server   *httptest.Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	logger := testutil.CreateTestLogger(t)
	h := &harness{
		t:       t,
		store:   storage.NewMemoryStore(),
		router:  &fakeRouter{},
		sweeper: &fakeSweeper{},
	}
	h.registry = presence.NewRegistry(nil, nil, logger)
	h.handler = NewHandler(Deps{
		Validator: auth.NewJWTValidator(testSecret),
		Users:     h.store,
		Router:    h.router,
		Registry:  h.registry,
		Sweeper:   h.sweeper,
		Runner:    goRunner{},
	}, opts, logger)
	h.handler.errorBackoff = time.Millisecond

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathToken := ""
		// No else needed: optional operation (/ws/<token> form)
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			pathToken = strings.TrimPrefix(r.URL.Path, "/ws/")
		}
		h.handler.HandleWebSocket(w, r, pathToken)
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.handler.Shutdown(ctx)
		h.server.Close()
	})
	return h
}

func createTestToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (h *harness) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + path
}

// dial connects userID with a query token and waits until the registry has
// one more connection for them.
func (h *harness) dial(userID string) *websocket.Conn {
	h.t.Helper()
	before := h.registry.ConnectionCount(userID)
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("/ws?token="+createTestToken(h.t, userID)), nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })
	testutil.Eventually(h.t, 2*time.Second, func() bool {
		return h.registry.ConnectionCount(userID) == before+1
	}, "connection should be registered")
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readClose reads until the server closes and returns the close code.
func readClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce, "expected a close frame, got %v", err)
		return ce.Code
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}
