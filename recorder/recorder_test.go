package recorder

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/conversation"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := New(t.TempDir(), "test_session", zap.NewNop())
	require.NoError(t, err)
	return r
}

func readText(t *testing.T, r *Recorder) string {
	t.Helper()
	data, err := os.ReadFile(r.Artifacts().TextPath)
	require.NoError(t, err)
	return string(data)
}

func readSnapshot(t *testing.T, r *Recorder) sessionDocument {
	t.Helper()
	data, err := os.ReadFile(r.Artifacts().JSONPath)
	require.NoError(t, err)
	var doc sessionDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestRecorder_StartMarkerVisibleBeforeTurns(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	assert.Contains(t, readText(t, r), "=== Session started:")
}

func TestRecorder_DerivedSessionName(t *testing.T) {
	t.Parallel()

	r, err := New(t.TempDir(), "", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.SessionName(), "conversation_"))
	assert.Contains(t, r.Artifacts().TextPath, r.SessionName())
}

func TestRecorder_AppendPersistsTurnAndSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	u := conversation.NewUtterance("Claude", "the sea is vast", 42, 0.0042)
	require.NoError(t, r.Append(u))

	text := readText(t, r)
	assert.Contains(t, text, "Claude")
	assert.Contains(t, text, "the sea is vast")
	assert.Contains(t, text, "tokens: 42, cost: $0.0042")

	doc := readSnapshot(t, r)
	assert.Equal(t, "test_session", doc.SessionName)
	assert.Equal(t, 1, doc.MessageCount)
	require.Len(t, doc.Messages, 1)
	assert.Equal(t, u.ID, doc.Messages[0].ID)
	assert.Nil(t, doc.Summary)
	assert.Nil(t, doc.EndTime)
}

func TestRecorder_Summary(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)

	first := conversation.NewUtterance("Claude", "one", 10, 0.001)
	second := conversation.NewUtterance("Gemini", "two", 20, 0)
	third := conversation.NewUtterance("Claude", "three", 5, 0.0005)
	second.Timestamp = first.Timestamp.Add(30 * time.Second)
	third.Timestamp = first.Timestamp.Add(90 * time.Second)

	for _, u := range []conversation.Utterance{first, second, third} {
		require.NoError(t, r.Append(u))
	}

	s := r.Summary()
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, 35, s.TotalTokens)
	assert.InDelta(t, 0.0015, s.TotalCost, 1e-9)
	assert.InDelta(t, 1.5, s.DurationMinutes, 1e-9)
	claude := s.ByParticipant["Claude"]
	assert.Equal(t, 2, claude.Count)
	assert.Equal(t, 15, claude.Tokens)
	assert.InDelta(t, 0.0015, claude.Cost, 1e-9)
	assert.Equal(t, ParticipantStats{Count: 1, Tokens: 20, Cost: 0}, s.ByParticipant["Gemini"])
}

func TestRecorder_SummaryDurationZeroForShortSessions(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	assert.Zero(t, r.Summary().DurationMinutes)

	require.NoError(t, r.Append(conversation.NewUtterance("Claude", "solo", 1, 0)))
	assert.Zero(t, r.Summary().DurationMinutes)
}

func TestRecorder_FinalizeWritesEndMarkerAndSummary(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	require.NoError(t, r.Append(conversation.NewUtterance("Claude", "bye", 7, 0)))

	arts, err := r.Finalize(r.Summary())
	require.NoError(t, err)
	assert.Equal(t, r.Artifacts(), arts)

	text := readText(t, r)
	assert.Contains(t, text, "=== Session ended:")
	assert.Contains(t, text, "messages: 1, tokens: 7")

	doc := readSnapshot(t, r)
	require.NotNil(t, doc.Summary)
	assert.Equal(t, 7, doc.Summary.TotalTokens)
	assert.NotNil(t, doc.EndTime)
}

func TestRecorder_FinalizeIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	require.NoError(t, r.Append(conversation.NewUtterance("Gemini", "done", 3, 0)))

	arts, err := r.Finalize(r.Summary())
	require.NoError(t, err)
	textAfterFirst := readText(t, r)

	again, err := r.Finalize(r.Summary())
	require.NoError(t, err)
	assert.Equal(t, arts, again)
	assert.Equal(t, textAfterFirst, readText(t, r), "second finalize must not alter the log")
	assert.Equal(t, 1, strings.Count(textAfterFirst, "=== Session ended:"))
}

func TestRecorder_FinalizeEmptySession(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	_, err := r.Finalize(r.Summary())
	require.NoError(t, err)

	doc := readSnapshot(t, r)
	assert.Zero(t, doc.MessageCount)
	assert.NotNil(t, doc.Messages)
	assert.Empty(t, doc.Messages)
}

func TestRecorder_AppendAfterFinalizeRejected(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	_, err := r.Finalize(r.Summary())
	require.NoError(t, err)

	err = r.Append(conversation.NewUtterance("Claude", "late", 1, 0))
	assert.Error(t, err)
}

func TestRecorder_RecordSystem(t *testing.T) {
	t.Parallel()

	r := newTestRecorder(t)
	require.NoError(t, r.RecordSystem("topic: ocean life"))

	s := r.Summary()
	assert.Equal(t, 1, s.ByParticipant[SystemSpeaker].Count)
	assert.Zero(t, s.ByParticipant[SystemSpeaker].Tokens)
}
