package router

import (
	"strings"
	"testing"

	"github.com/real-rm/linkup/internal/constants"
	chaterrors "github.com/real-rm/linkup/internal/errors"
	"github.com/real-rm/linkup/internal/message"
	"github.com/real-rm/linkup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_FilesAndNotifies(t *testing.T) {
	h := newHarness(t)
	troll := testutil.Member("troll")
	troll.FullName = "Mister Troll"
	h.connect(troll, "general")
	cr := h.connect(testutil.Member("reporter"), "general")
	cs := h.connect(testutil.Admin("mod"))
	long := strings.Repeat("ä", 250)
	msg := h.send("troll", "general", long)
	h.reset()

	require.NoError(t, h.route("reporter", message.Event{
		Type: message.TypeReport, MessageID: msg.ID, RoomID: "general", Reason: "harassment",
	}))

	reports := h.store.Reports()
	require.Len(t, reports, 1)
	r := reports[0]
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "reporter", r.ReporterID)
	assert.Equal(t, "troll", r.ReportedID)
	assert.Equal(t, "Mister Troll", r.ReportedName)
	assert.Equal(t, msg.ID, r.MessageID)
	assert.Equal(t, strings.Repeat("ä", 200), r.MessageSnippet)
	assert.Equal(t, constants.ReportHarassment, r.Type)
	assert.Equal(t, "harassment", r.Content)
	assert.Equal(t, constants.ReportPending, r.Status)

	alerts := cs.FramesOfType("new_report")
	require.Len(t, alerts, 1)
	assert.Equal(t, r.ID, alerts[0]["report_id"])
	assert.Equal(t, "Mister Troll", alerts[0]["reported_name"])

	acks := cr.FramesOfType("report_success")
	require.Len(t, acks, 1)
	assert.Equal(t, msg.ID, acks[0]["message_id"])
	assert.Equal(t, constants.ReportThanksText, acks[0]["message"])
	assert.Empty(t, cr.FramesOfType("new_report"), "only staff are alerted")
}

func TestReport_UnknownTypeAndMissingMessage(t *testing.T) {
	h := newHarness(t)
	h.connect(testutil.Member("a"), "general")
	h.connect(testutil.Member("b"), "general")
	msg := h.send("a", "general", "buy cheap watches")

	require.NoError(t, h.route("b", message.Event{Type: message.TypeReport, MessageID: msg.ID, Reason: "it smells funny"}))
	r := h.store.Reports()[0]
	assert.Equal(t, constants.ReportOther, r.Type)
	assert.Equal(t, "it smells funny", r.Content)
	assert.Equal(t, "general", r.RoomID, "room falls back to the message's room")

	require.NoError(t, h.route("b", message.Event{Type: message.TypeReport, MessageID: msg.ID, ReportType: "spam", Reason: "ads"}))
	assert.Equal(t, constants.ReportSpam, h.store.Reports()[1].Type)

	err := h.route("b", message.Event{Type: message.TypeReport, MessageID: "ghost"})
	requireCode(t, err, chaterrors.ErrCodeNotFound)
	assert.Len(t, h.store.Reports(), 2)
}

func TestReportType(t *testing.T) {
	tests := map[string]string{
		"spam":          constants.ReportSpam,
		"harassment":    constants.ReportHarassment,
		"inappropriate": constants.ReportInappropriate,
		"other":         constants.ReportOther,
		"":              constants.ReportOther,
		"SPAM":          constants.ReportOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, ReportType(in), "input %q", in)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "héllo", Snippet("héllo", 10))
	assert.Equal(t, "hé", Snippet("héllo", 2))
	assert.Equal(t, "", Snippet("", 3))
}
