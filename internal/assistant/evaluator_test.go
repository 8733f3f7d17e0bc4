package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type failingCooldown struct{}

func (failingCooldown) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingCooldown) Release(context.Context, string) error { return nil }

func TestEvaluate_Rules(t *testing.T) {
	member := testutil.Member("u1")
	admin := testutil.Admin("a1")
	aiRoom := &storage.Room{ID: "bots", Type: constants.RoomTypeBot, IsAIRoom: true}
	general := &storage.Room{ID: "general", Type: constants.RoomTypePublic}

	tests := []struct {
		name    string
		config  *storage.SystemConfig
		trigger Trigger
		respond bool
		reason  string
	}{
		{
			name:    "plain message in public room",
			trigger: Trigger{RoomID: "general", Room: general, Sender: member, Content: "hello all"},
			reason:  "not_triggered",
		},
		{
			name:    "explicit call in public room",
			trigger: Trigger{RoomID: "general", Room: general, Sender: member, Content: "@ai what is LinkUp?"},
			respond: true,
			reason:  "triggered",
		},
		{
			name:    "auto reply in ai room",
			trigger: Trigger{RoomID: "ai", Sender: member, Content: "hi"},
			respond: true,
			reason:  "triggered",
		},
		{
			name:    "auto reply in is_ai_room room",
			trigger: Trigger{RoomID: "bots", Room: aiRoom, Sender: member, Content: "hi"},
			respond: true,
			reason:  "triggered",
		},
		{
			name:    "auto reply switched off",
			config:  &storage.SystemConfig{AIAutoReply: boolPtr(false)},
			trigger: Trigger{RoomID: "ai", Sender: member, Content: "hi"},
			reason:  "not_triggered",
		},
		{
			name:    "explicit call with auto reply off",
			config:  &storage.SystemConfig{AIAutoReply: boolPtr(false)},
			trigger: Trigger{RoomID: "ai", Sender: member, Content: "/ai hi"},
			respond: true,
			reason:  "triggered",
		},
		{
			name:    "disabled globally, auto reply",
			config:  &storage.SystemConfig{AIEnabled: boolPtr(false)},
			trigger: Trigger{RoomID: "ai", Sender: member, Content: "hi"},
			reason:  "ai_disabled",
		},
		{
			name:    "disabled globally, explicit call outside general",
			config:  &storage.SystemConfig{AIEnabled: boolPtr(false)},
			trigger: Trigger{RoomID: "team", Sender: member, Content: "@ai hi"},
			respond: true,
			reason:  "ai_disabled",
		},
		{
			name:    "disabled globally, explicit call in general",
			config:  &storage.SystemConfig{AIEnabled: boolPtr(false)},
			trigger: Trigger{RoomID: "general", Room: general, Sender: member, Content: "@ai hi"},
			reason:  "ai_disabled",
		},
		{
			name:    "help while a human owns the thread",
			trigger: Trigger{RoomID: "help", Sender: member, Content: "@ai hello", SupportStatus: constants.SupportWaiting},
			reason:  "support_waiting",
		},
		{
			name:    "help with the assistant processing",
			trigger: Trigger{RoomID: "help", Sender: member, Content: "how do I create a group?", SupportStatus: constants.SupportAIProcessing},
			respond: true,
			reason:  "triggered",
		},
		{
			name:    "staff message in help",
			trigger: Trigger{RoomID: "help", Sender: admin, Content: "I can help with that"},
			reason:  "staff_sender",
		},
		{
			name:    "staff explicit call in help",
			trigger: Trigger{RoomID: "help", Sender: admin, Content: "@ai draft a reply"},
			respond: true,
			reason:  "triggered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.PutConfig(tt.config)

			d := h.evaluator.Evaluate(context.Background(), tt.trigger)
			assert.Equal(t, tt.respond, d.Respond)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestEvaluate_RecentStaffReplyKeepsAssistantQuiet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := testutil.Member("u1")
	admin := testutil.Admin("a1")
	h.store.PutUser(member)
	h.store.PutUser(admin)
	h.post("m1", "help", admin, "Hi, I'm looking into it", member.ID)

	d := h.evaluator.Evaluate(ctx, Trigger{RoomID: "help", Sender: member, Content: "thanks", SupportStatus: constants.SupportAIProcessing})
	assert.False(t, d.Respond)
	assert.Equal(t, "staff_active", d.Reason)

	d = h.evaluator.Evaluate(ctx, Trigger{RoomID: "help", Sender: member, Content: "@ai thanks", SupportStatus: constants.SupportAIProcessing})
	assert.True(t, d.Respond, "an explicit call overrides recent staff activity")

	other := testutil.Member("u2")
	d = h.evaluator.Evaluate(ctx, Trigger{RoomID: "help", Sender: other, Content: "hello", SupportStatus: constants.SupportAIProcessing})
	assert.True(t, d.Respond, "staff replies to another user do not count")
}

func TestEvaluate_CooldownClaimsOncePerWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := testutil.Member("u1")
	tr := Trigger{RoomID: "general", Sender: member, Content: "@ai one"}

	first := h.evaluator.Evaluate(ctx, tr)
	second := h.evaluator.Evaluate(ctx, tr)
	assert.True(t, first.Respond)
	assert.False(t, second.Respond)
	assert.Equal(t, "cooldown", second.Reason)

	other := h.evaluator.Evaluate(ctx, Trigger{RoomID: "random", Sender: member, Content: "@ai two"})
	assert.True(t, other.Respond, "cooldown is per room")

	for i := 0; i < 3; i++ {
		d := h.evaluator.Evaluate(ctx, Trigger{RoomID: "ai", Sender: member, Content: "@ai again"})
		assert.True(t, d.Respond, "AI-dedicated rooms have no cooldown")
	}
}

func TestEvaluate_ZeroCooldownAlwaysClaims(t *testing.T) {
	h := newHarness(t)
	h.store.PutConfig(&storage.SystemConfig{AICooldownSeconds: intPtr(0)})
	tr := Trigger{RoomID: "general", Sender: testutil.Member("u1"), Content: "@ai hi"}

	assert.True(t, h.evaluator.Evaluate(context.Background(), tr).Respond)
	assert.True(t, h.evaluator.Evaluate(context.Background(), tr).Respond)
}

func TestEvaluate_CooldownErrorSuppresses(t *testing.T) {
	h := newHarness(t)
	eval := NewEvaluator(h.settings, failingCooldown{}, h.store, h.logger)

	d := eval.Evaluate(context.Background(), Trigger{RoomID: "general", Sender: testutil.Member("u1"), Content: "@ai hi"})
	assert.False(t, d.Respond)
	assert.Equal(t, "cooldown", d.Reason)
}
