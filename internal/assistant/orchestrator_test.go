package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/real-rm/gohelper"
	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aiJob(u *storage.User) Job {
	return Job{RoomID: constants.RoomAI, Prompt: "hi", User: u, MessageID: "ai-1", AIContext: true}
}

func assertRejected(t *testing.T, h *harness, err error, code chaterrors.ErrorCode, userID string) {
	t.Helper()
	ce, ok := chaterrors.As(err)
	require.True(t, ok, "expected a ChatError, got %v", err)
	assert.Equal(t, code, ce.Code)
	assert.Zero(t, h.provider.Calls())

	frames := h.conns[userID].FramesOfType("message")
	require.Len(t, frames, 1)
	assert.Equal(t, true, frames[0]["is_error"])
	assert.Equal(t, "System", frames[0]["sender_name"])
	assert.Equal(t, ce.Message, frames[0]["content"])
}

func TestOrchestrator_SuccessInAIRoom(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	conn := h.connect(u)

	require.NoError(t, h.orch.Run(context.Background(), aiJob(u)))

	assert.Equal(t, []string{"typing", "start", "chunk", "chunk", "message", "end", "typing"}, conn.Types())
	msg := conn.FramesOfType("message")[0]
	assert.Equal(t, "LinkUp is a chat platform.", msg["content"])
	assert.Equal(t, "LinkUp Assistant", msg["sender_name"])
	assert.Equal(t, true, msg["is_bot"])
	assert.Nil(t, msg["sender_id"])
	assert.Equal(t, "u1", msg["receiver_id"])
	typing := conn.FramesOfType("typing")
	assert.Equal(t, true, typing[0]["status"])
	assert.Equal(t, false, typing[1]["status"])

	bots := h.botMessages(constants.RoomAI)
	require.Len(t, bots, 1)
	assert.Equal(t, "ai-1", bots[0].ID)
	assert.Equal(t, "u1", bots[0].ReceiverID)
	assert.Empty(t, bots[0].SenderID)

	usage := h.store.UsageRecords()
	require.Len(t, usage, 1)
	assert.Equal(t, constants.UsageSuccess, usage[0].Status)
	assert.Equal(t, "gemini-model", usage[0].Model)
	assert.Equal(t, gohelper.TimeToDateInt(time.Now().UTC()), usage[0].Day)

	req := h.provider.Requests()[0]
	assert.Contains(t, req.System, "LinkUp Assistant")
	assert.Equal(t, "hi", req.Messages[0].Content)
	assert.Equal(t, "u1", req.UserID)
}

func TestOrchestrator_AIDisabled(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	h.connect(u)
	h.store.PutConfig(&storage.SystemConfig{AIEnabled: boolPtr(false)})

	err := h.orch.Run(context.Background(), aiJob(u))
	assertRejected(t, h, err, chaterrors.ErrCodeAIDisabled, "u1")
}

func TestOrchestrator_UserRestricted(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	u.AIRestricted = true
	h.connect(u)

	err := h.orch.Run(context.Background(), aiJob(u))
	assertRejected(t, h, err, chaterrors.ErrCodeAIRestricted, "u1")
}

func TestOrchestrator_RoomRestricted(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	h.connect(u)
	h.store.PutRoom(&storage.Room{ID: constants.RoomAI, Type: constants.RoomTypeBot, AIRestricted: true})

	err := h.orch.Run(context.Background(), aiJob(u))
	assertRejected(t, h, err, chaterrors.ErrCodeAIRestricted, "u1")
}

func TestOrchestrator_UserQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.Member("u1")
	h.connect(u)
	h.store.PutConfig(&storage.SystemConfig{AILimitPerUser: intPtr(2)})
	day := gohelper.TimeToDateInt(time.Now().UTC())
	for i := 0; i < 2; i++ {
		require.NoError(t, h.store.InsertUsage(ctx, &storage.AIUsage{Day: day, UserID: "u1", RoomID: "elsewhere", Status: constants.UsageSuccess}))
	}
	// Failed generations do not count.
	require.NoError(t, h.store.InsertUsage(ctx, &storage.AIUsage{Day: day, UserID: "u1", RoomID: "ai", Status: constants.UsageError}))

	err := h.orch.Run(ctx, aiJob(u))
	assertRejected(t, h, err, chaterrors.ErrCodeQuotaExceeded, "u1")
	assert.Contains(t, h.conns["u1"].FramesOfType("message")[0]["content"], "(2/2)")
}

func TestOrchestrator_RoomQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.Member("u1")
	h.connect(u)
	h.store.PutConfig(&storage.SystemConfig{AILimitPerGroup: intPtr(1)})
	day := gohelper.TimeToDateInt(time.Now().UTC())
	require.NoError(t, h.store.InsertUsage(ctx, &storage.AIUsage{Day: day, UserID: "someone", RoomID: "ai", Status: constants.UsageSuccess}))

	err := h.orch.Run(ctx, aiJob(u))
	assertRejected(t, h, err, chaterrors.ErrCodeQuotaExceeded, "u1")
}

func TestOrchestrator_UnlimitedBypassesQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.PutConfig(&storage.SystemConfig{AILimitPerUser: intPtr(0), AILimitPerGroup: intPtr(0)})

	admin := testutil.Admin("a1")
	h.connect(admin)
	require.NoError(t, h.orch.Run(ctx, aiJob(admin)))

	vip := testutil.Member("u2")
	vip.Permissions = []string{constants.PermissionAIUnlimited}
	h.connect(vip)
	require.NoError(t, h.orch.Run(ctx, aiJob(vip)))

	assert.Equal(t, 2, h.provider.Calls())
}

func TestOrchestrator_WaitingThreadIsSilent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.Member("u1")
	conn := h.connect(u)
	require.NoError(t, h.machine.SetStatus(ctx, "u1", "u1", constants.SupportWaiting))
	conn.Reset()

	job := Job{RoomID: constants.RoomHelp, Prompt: "hello?", User: u, MessageID: "ai-1", AIContext: true}
	require.NoError(t, h.orch.Run(ctx, job))
	assert.Empty(t, conn.Frames())
	assert.Zero(t, h.provider.Calls())
}

func TestOrchestrator_CatchUpAnswersWaitingThread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := testutil.Member("u1")
	conn := h.connect(u)
	require.NoError(t, h.machine.SetStatus(ctx, "u1", "u1", constants.SupportWaiting))
	conn.Reset()

	job := Job{RoomID: constants.RoomHelp, Prompt: "hello?", User: u, MessageID: "ai-1", AIContext: true, CatchUp: true}
	require.NoError(t, h.orch.Run(ctx, job))

	assert.Equal(t, 1, h.provider.Calls())
	assert.Equal(t, "support_status_update", conn.Types()[0], "the hand-back is announced before the reply")
	assert.Equal(t, constants.SupportAIProcessing, conn.FramesOfType("support_status_update")[0]["status"])
	require.Len(t, h.botMessages(constants.RoomHelp), 1)

	status, err := h.machine.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, constants.SupportAIProcessing, status)
}

func TestOrchestrator_GenerationFailure(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	conn := h.connect(u)
	h.provider.StreamError = errors.New("quota exhausted upstream")

	err := h.orch.Run(context.Background(), aiJob(u))
	ce, ok := chaterrors.As(err)
	require.True(t, ok)
	assert.Equal(t, chaterrors.ErrCodeLLMUnavailable, ce.Code)

	assert.Equal(t, []string{"typing", "start", "typing", "message"}, conn.Types())
	final := conn.FramesOfType("message")[0]
	assert.Equal(t, true, final["is_error"])
	assert.Equal(t, "AI service is temporarily unavailable", final["content"])

	assert.Empty(t, h.botMessages(constants.RoomAI))
	usage := h.store.UsageRecords()
	require.Len(t, usage, 1)
	assert.Equal(t, constants.UsageError, usage[0].Status)
	assert.Contains(t, usage[0].ErrorMsg, "quota exhausted upstream")

	logs := h.store.SystemLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "ai_error", logs[0].Type)
	assert.Equal(t, "u1", logs[0].UserID)
	assert.Equal(t, constants.RoomAI, logs[0].RoomID)
}

func TestOrchestrator_SuggestionMode(t *testing.T) {
	h := newHarness(t)
	requester := testutil.Member("u1")
	c1 := h.connect(requester, "general")
	c2 := h.connect(testutil.Member("u2"), "general")

	job := Job{RoomID: "general", Prompt: "suggest a reply", User: requester, MessageID: "ai-1", AIContext: true, SuggestionMode: true}
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Empty(t, c1.Frames(), "the requester receives no suggestion frames")
	assert.Contains(t, c2.Types(), "ai_suggestion")
	assert.Contains(t, c2.Types(), "ai_suggestion_chunk")
	assert.Contains(t, c2.Types(), "ai_suggestion_end")
	assert.Empty(t, h.botMessages("general"), "suggestions are not persisted")
	assert.Len(t, h.store.UsageRecords(), 1)
}

func TestOrchestrator_HelpCopiesOnlineStaff(t *testing.T) {
	h := newHarness(t)
	u := testutil.Member("u1")
	userConn := h.connect(u)
	adminConn := h.connect(testutil.Admin("a1"))

	job := Job{RoomID: constants.RoomHelp, Prompt: "hi", User: u, MessageID: "ai-1", AIContext: true}
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Equal(t, userConn.Types(), adminConn.Types())
	msg := adminConn.FramesOfType("message")[0]
	assert.Equal(t, "LinkUp Support", msg["sender_name"])
	assert.Equal(t, "u1", msg["receiver_id"])
	assert.Contains(t, h.provider.Requests()[0].System, "Help & Support")
}
