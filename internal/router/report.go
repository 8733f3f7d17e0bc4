package router

import (
	"context"
	"errors"

	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/storage"
)

const unknownName = "Unknown"

// ReportType maps a client-supplied category onto the stored report types.
func ReportType(t string) string {
	switch t {
	case constants.ReportSpam, constants.ReportHarassment, constants.ReportInappropriate, constants.ReportOther:
		return t
	default:
		return constants.ReportOther
	}
}

// Snippet returns the first n runes of s.
func Snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// handleReport files a moderation report and alerts staff.
func (mr *MessageRouter) handleReport(ctx context.Context, user *storage.User, ev *message.Event) error {
	msg, err := mr.loadMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}

	reporterName := user.DisplayName()
	if reporter, err := mr.store.GetUser(ctx, user.ID); err == nil {
		reporterName = reporter.DisplayName()
	}
	reportedName := msg.SenderName
	if msg.SenderID != "" {
		reported, err := mr.store.GetUser(ctx, msg.SenderID)
		switch {
		case err == nil:
			reportedName = reported.DisplayName()
		case !errors.Is(err, storage.ErrNotFound):
			return chaterrors.ErrDatabaseError(err)
		}
	}
	if reportedName == "" {
		reportedName = unknownName
	}

	category := ev.ReportType
	if category == "" {
		category = ev.Reason
	}
	roomID := ev.RoomID
	if roomID == "" {
		roomID = msg.RoomID
	}
	report := &storage.Report{
		ID:             mr.newID(),
		ReporterID:     user.ID,
		ReporterName:   reporterName,
		ReportedID:     msg.SenderID,
		ReportedName:   reportedName,
		MessageID:      msg.ID,
		MessageSnippet: Snippet(msg.Content, constants.ReportSnippetLength),
		RoomID:         roomID,
		Type:           ReportType(category),
		Content:        ev.Reason,
		Timestamp:      mr.now(),
		Status:         constants.ReportPending,
	}
	if err := mr.store.InsertReport(ctx, report); err != nil {
		return chaterrors.ErrDatabaseError(err)
	}
	mr.logger.Info("Message reported", "report_id", report.ID, "message_id", msg.ID, "reporter_id", user.ID, "type", report.Type)

	mr.notify.BroadcastToAdmins(ctx, message.New(message.TypeNewReport,
		"report_id", report.ID,
		"message_id", msg.ID,
		"reported_name", reportedName,
	))
	mr.notify.SendToUser(ctx, user.ID, message.New(message.TypeReportSuccess,
		"message_id", msg.ID,
		"message", constants.ReportThanksText,
	))
	return nil
}
