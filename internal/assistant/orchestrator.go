package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/real-rm/gohelper"
	"github.com/real-rm/golog"
	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/llm"
	"github.com/real-rm/linkup/internal/membership"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/metrics"
	"github.com/real-rm/linkup/internal/storage"
	"github.com/real-rm/linkup/internal/util"
)

// errSilent ends a job without telling anyone.
var errSilent = errors.New("assistant stays silent")

// Generator produces one completion, streaming text through onChunk.
type Generator interface {
	Generate(ctx context.Context, req llm.Request, onChunk func(text string)) (*llm.Result, error)
}

// SupportState reads and reopens a user's help thread.
type SupportState interface {
	IsWaiting(ctx context.Context, userID string) (bool, error)
	Reopen(ctx context.Context, userID, username string) error
}

// Orchestrator runs jobs: policy checks, generation, persistence and delivery.
type Orchestrator struct {
	gen      Generator
	settings SettingsReader
	rooms    storage.RoomStore
	messages storage.MessageStore
	usage    storage.UsageStore
	support  SupportState
	out      Audience
	logger   *golog.Logger
	now      func() time.Time
	newID    func() string
}

// OrchestratorDeps groups the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Generator Generator
	Settings  SettingsReader
	Rooms     storage.RoomStore
	Messages  storage.MessageStore
	Usage     storage.UsageStore
	Support   SupportState
	Audience  Audience
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDeps, logger *golog.Logger) *Orchestrator {
	return &Orchestrator{
		gen:      deps.Generator,
		settings: deps.Settings,
		rooms:    deps.Rooms,
		messages: deps.Messages,
		usage:    deps.Usage,
		support:  deps.Support,
		out:      deps.Audience,
		logger:   logger.WithGroup("assistant"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Run executes job. Policy rejections are reported to the job's audience as
// a system message and returned; a silent skip returns nil.
func (o *Orchestrator) Run(ctx context.Context, job Job) error {
	emit := NewEmitter(o.out, job, o.logger)

	if err := o.check(ctx, job); err != nil {
		if errors.Is(err, errSilent) {
			metrics.AIJobs.WithLabelValues("skipped").Inc()
			o.logger.Debug("Assistant job skipped", "room_id", job.RoomID, "user_id", job.UserID())
			return nil
		}
		metrics.AIJobs.WithLabelValues("denied").Inc()
		emit.Emit(ctx, o.systemMessage(job, err))
		return err
	}

	// No else needed: optional operation (catch-up replies take the thread back)
	if job.CatchUp {
		if err := o.support.Reopen(ctx, job.UserID(), job.Username()); err != nil {
			util.LogError(o.logger, "assistant", "reopen support thread", err, "user_id", job.UserID())
		}
	}

	return o.generate(ctx, job, emit)
}

func (o *Orchestrator) check(ctx context.Context, job Job) error {
	s := o.settings.Current(ctx)
	// No else needed: early return pattern (guard clause)
	if !s.AIEnabled {
		return chaterrors.ErrAIDisabled()
	}
	if job.User == nil {
		return chaterrors.ErrMissingField("user")
	}
	if job.User.AIRestricted {
		return chaterrors.ErrAIUserRestricted()
	}

	room, err := o.rooms.GetRoom(ctx, job.RoomID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		util.LogError(o.logger, "assistant", "load room", err, "room_id", job.RoomID)
	}
	if room != nil && room.AIRestricted {
		return chaterrors.ErrAIRoomRestricted()
	}

	if job.RoomID == constants.RoomHelp && !job.SuggestionMode && !job.CatchUp {
		waiting, err := o.support.IsWaiting(ctx, job.UserID())
		if err != nil {
			util.LogError(o.logger, "assistant", "read support thread", err, "user_id", job.UserID())
		}
		if waiting {
			return errSilent
		}
	}

	// No else needed: early return pattern (guard clause)
	if job.User.HasUnlimitedAI() {
		return nil
	}
	day := gohelper.TimeToDateInt(o.now())
	used, err := o.usage.CountUsage(ctx, storage.UsageQuery{Day: day, UserID: job.UserID()})
	if err != nil {
		util.LogError(o.logger, "assistant", "count user usage", err, "user_id", job.UserID())
	} else if used >= s.AILimitPerUser {
		return chaterrors.ErrUserQuotaExceeded(used, s.AILimitPerUser)
	}
	used, err = o.usage.CountUsage(ctx, storage.UsageQuery{Day: day, RoomID: job.RoomID})
	if err != nil {
		util.LogError(o.logger, "assistant", "count room usage", err, "room_id", job.RoomID)
	} else if used >= s.AILimitPerGroup {
		return chaterrors.ErrRoomQuotaExceeded(used, s.AILimitPerGroup)
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, job Job, emit *Emitter) error {
	s := o.settings.Current(ctx)
	identity := job.Identity
	if identity == "" {
		identity = IdentityFor(job.RoomID)
	}

	emit.Emit(ctx, message.New(message.TypeTyping, "room_id", job.RoomID, "status", true))
	emit.Emit(ctx, message.New(message.TypeStart,
		"message_id", job.MessageID,
		"sender", identity,
		"sender_avatar", constants.AssistantAvatar,
		"room_id", job.RoomID,
	))

	req := llm.Request{
		System:   BuildSystemPrompt(job.RoomID, s.AISystemPrompt, job.User),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: BuildUserPrompt(job.Preamble, job.History, job.Prompt)}},
		UserID:   job.UserID(),
	}
	res, err := o.gen.Generate(ctx, req, func(text string) {
		emit.Emit(ctx, message.New(message.TypeChunk, "message_id", job.MessageID, "content", text, "room_id", job.RoomID))
	})
	if err != nil {
		o.fail(ctx, job, emit, err)
		return chaterrors.ErrLLMUnavailable(err)
	}

	at := o.now()
	o.recordUsage(ctx, &storage.AIUsage{
		MessageID: job.MessageID,
		Timestamp: at,
		Day:       gohelper.TimeToDateInt(at),
		UserID:    job.UserID(),
		RoomID:    job.RoomID,
		Status:    constants.UsageSuccess,
		Model:     res.Model,
	})

	reply := &storage.Message{
		ID:             job.MessageID,
		RoomID:         job.RoomID,
		SenderName:     identity,
		SenderAvatar:   constants.AssistantAvatar,
		Content:        res.Content,
		Timestamp:      at,
		IsBot:          true,
		Status:         constants.StatusSent,
		DeletedByUsers: []string{},
	}
	if membership.IsSelfIsolated(job.RoomID) {
		reply.ReceiverID = job.UserID()
	}
	if !job.SuggestionMode {
		if err := o.messages.InsertMessage(ctx, reply); err != nil {
			util.LogError(o.logger, "assistant", "persist reply", err, "message_id", job.MessageID)
		} else if err := o.rooms.TouchRoom(ctx, job.RoomID, at); err != nil {
			util.LogError(o.logger, "assistant", "touch room", err, "room_id", job.RoomID)
		}
	}

	emit.Emit(ctx, reply.ToPayload())
	emit.Emit(ctx, message.New(message.TypeEnd, "message_id", job.MessageID, "room_id", job.RoomID, "timestamp", at))
	emit.Emit(ctx, message.New(message.TypeTyping, "room_id", job.RoomID, "status", false))

	metrics.AIJobs.WithLabelValues("success").Inc()
	o.logger.Info("Assistant reply delivered",
		"room_id", job.RoomID,
		"user_id", job.UserID(),
		"message_id", job.MessageID,
		"provider", res.Provider,
		"model", res.Model,
		"length", util.RuneLength(res.Content),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job Job, emit *Emitter, cause error) {
	metrics.AIJobs.WithLabelValues("error").Inc()
	util.LogError(o.logger, "assistant", "generate reply", cause, "room_id", job.RoomID, "user_id", job.UserID())

	at := o.now()
	o.recordUsage(ctx, &storage.AIUsage{
		Timestamp: at,
		Day:       gohelper.TimeToDateInt(at),
		UserID:    job.UserID(),
		RoomID:    job.RoomID,
		Status:    constants.UsageError,
		ErrorMsg:  cause.Error(),
	})
	if err := o.usage.InsertSystemLog(ctx, &storage.SystemLog{
		Type:      constants.ErrorLogType,
		UserID:    job.UserID(),
		RoomID:    job.RoomID,
		Message:   cause.Error(),
		Timestamp: at,
	}); err != nil {
		util.LogError(o.logger, "assistant", "write system log", err)
	}

	emit.Emit(ctx, message.New(message.TypeTyping, "room_id", job.RoomID, "status", false))
	emit.Emit(ctx, o.systemMessage(job, chaterrors.ErrLLMUnavailable(cause)))
}

func (o *Orchestrator) recordUsage(ctx context.Context, rec *storage.AIUsage) {
	if err := o.usage.InsertUsage(ctx, rec); err != nil {
		util.LogError(o.logger, "assistant", "record usage", err, "status", rec.Status)
	}
}

// systemMessage renders err as a chat-style message from the system.
func (o *Orchestrator) systemMessage(job Job, err error) message.Payload {
	text := constants.GenericErrorText
	code := ""
	if ce, ok := chaterrors.As(err); ok {
		text = ce.Message
		code = string(ce.Code)
	}
	p := message.New(message.TypeMessage,
		"message_id", o.newID(),
		"room_id", job.RoomID,
		"sender_id", nil,
		"sender_name", constants.SystemSenderName,
		"content", text,
		"is_bot", true,
		"is_error", true,
		"timestamp", o.now(),
	)
	if code != "" {
		p["code"] = code
	}
	if membership.IsSelfIsolated(job.RoomID) {
		p["receiver_id"] = job.UserID()
	}
	return p
}
