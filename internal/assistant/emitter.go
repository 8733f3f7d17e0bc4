package assistant

import (
	"context"

	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/util"
)

// Audience is the slice of the delivery policy the emitter needs.
type Audience interface {
	Members(ctx context.Context, roomID string) ([]string, error)
	OnlineStaff(ctx context.Context, skip string) ([]string, error)
	DeliverToUsers(ctx context.Context, ids []string, payload message.Payload) int
}

// Emitter sends the frames of one job to the audience its mode calls for.
type Emitter struct {
	out    Audience
	job    Job
	logger *golog.Logger
}

// NewEmitter binds an emitter to job.
func NewEmitter(out Audience, job Job, logger *golog.Logger) *Emitter {
	return &Emitter{out: out, job: job, logger: logger}
}

func isProgressFrame(t message.EventType) bool {
	return t == message.TypeTyping || t == message.TypeStart || t == message.TypeChunk
}

// Emit delivers payload and returns the number of connections reached.
func (e *Emitter) Emit(ctx context.Context, payload message.Payload) int {
	t := payload.Type()
	// No else needed: early return pattern (guard clause)
	if !e.job.AIContext && isProgressFrame(t) {
		return 0
	}

	switch {
	case e.job.SuggestionMode:
		members, err := e.out.Members(ctx, e.job.RoomID)
		if err != nil {
			util.LogError(e.logger, "assistant", "list suggestion audience", err, "room_id", e.job.RoomID)
			return 0
		}
		ids := make([]string, 0, len(members))
		for _, id := range members {
			if id != e.job.UserID() {
				ids = append(ids, id)
			}
		}
		relabelled := payload.Clone()
		if t == message.TypeMessage {
			relabelled["type"] = string(message.TypeAISuggestion)
		} else {
			relabelled["type"] = string(message.TypeAISuggestion) + "_" + string(t)
		}
		return e.out.DeliverToUsers(ctx, ids, relabelled)

	case e.job.AIContext:
		ids := []string{e.job.UserID()}
		if e.job.RoomID == constants.RoomHelp {
			staff, err := e.out.OnlineStaff(ctx, e.job.UserID())
			if err != nil {
				util.LogError(e.logger, "assistant", "list online staff", err)
			}
			ids = append(ids, staff...)
		}
		return e.out.DeliverToUsers(ctx, ids, payload)

	default:
		members, err := e.out.Members(ctx, e.job.RoomID)
		if err != nil {
			util.LogError(e.logger, "assistant", "list room members", err, "room_id", e.job.RoomID)
			return 0
		}
		return e.out.DeliverToUsers(ctx, members, payload)
	}
}
