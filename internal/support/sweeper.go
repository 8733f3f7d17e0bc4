package support

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/config"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
	"golang.org/x/sync/errgroup"
)

// sweepConcurrency bounds the per-user reply checks of one sweep.
const sweepConcurrency = 4

// CatchUp is an unanswered support conversation handed to the assistant.
type CatchUp struct {
	User   *storage.User
	Prompt string
	// History holds the user's latest support messages, oldest first.
	History []*storage.Message
}

// Submitter queues catch-up replies.
type Submitter interface {
	SubmitCatchUp(ctx context.Context, c CatchUp) error
}

// StaffPresence lists staff users still connected.
type StaffPresence interface {
	OnlineStaff(ctx context.Context, skip string) ([]string, error)
}

// SettingsReader returns the effective runtime settings.
type SettingsReader interface {
	Current(ctx context.Context) config.Settings
}

// Sweeper answers pending support messages once the last staff user leaves.
type Sweeper struct {
	messages storage.MessageStore
	users    storage.UserStore
	staff    StaffPresence
	settings SettingsReader
	submit   Submitter
	logger   *golog.Logger
}

// NewSweeper wires the catch-up sweep.
func NewSweeper(messages storage.MessageStore, users storage.UserStore, staff StaffPresence,
	settings SettingsReader, submit Submitter, logger *golog.Logger) *Sweeper {
	return &Sweeper{
		messages: messages,
		users:    users,
		staff:    staff,
		settings: settings,
		submit:   submit,
		logger:   logger.WithGroup("support"),
	}
}

// AdminOffline runs one sweep for the staff user who just went offline and
// returns the number of catch-up jobs queued.
func (s *Sweeper) AdminOffline(ctx context.Context, adminID string) (int, error) {
	// No else needed: early return pattern (guard clause)
	if !s.settings.Current(ctx).AIAutoReply {
		return 0, nil
	}
	others, err := s.staff.OnlineStaff(ctx, adminID)
	if err != nil {
		return 0, fmt.Errorf("failed to check online staff: %w", err)
	}
	// No else needed: early return pattern (guard clause)
	if len(others) > 0 {
		s.logger.Debug("Skipping catch-up, staff still online", "admin_id", adminID, "online", len(others))
		return 0, nil
	}

	lasts, err := s.messages.LastHumanMessages(ctx, constants.RoomHelp)
	if err != nil {
		return 0, fmt.Errorf("failed to load support messages: %w", err)
	}
	senders := make([]string, 0, len(lasts))
	for _, m := range lasts {
		senders = append(senders, m.SenderID)
	}
	users, err := s.users.GetUsers(ctx, senders)
	if err != nil {
		return 0, fmt.Errorf("failed to load support users: %w", err)
	}

	var queued atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, last := range lasts {
		user := users[last.SenderID]
		if user == nil || user.IsStaff() {
			continue
		}
		g.Go(func() error {
			answered, err := s.messages.HasReplyAfter(gctx, constants.RoomHelp, user.ID, last.Timestamp)
			if err != nil {
				util.LogError(s.logger, "support", "check support reply", err, "user_id", user.ID)
				return nil
			}
			// No else needed: early return pattern (guard clause)
			if answered {
				return nil
			}
			history, err := s.messages.RecentMessages(gctx, storage.MessageQuery{
				RoomID:      constants.RoomHelp,
				Participant: user.ID,
				Limit:       constants.ContextMessageCount,
			})
			if err != nil {
				util.LogError(s.logger, "support", "load support history", err, "user_id", user.ID)
				history = nil
			}
			reverse(history)
			if err := s.submit.SubmitCatchUp(gctx, CatchUp{User: user, Prompt: last.Content, History: history}); err != nil {
				util.LogError(s.logger, "support", "queue catch-up reply", err, "user_id", user.ID)
				return nil
			}
			queued.Add(1)
			metrics.CatchUpJobs.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(queued.Load()), err
	}

	n := int(queued.Load())
	s.logger.Info("Support catch-up sweep finished", "admin_id", adminID, "candidates", len(lasts), "queued", n)
	return n, nil
}

func reverse(msgs []*storage.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
