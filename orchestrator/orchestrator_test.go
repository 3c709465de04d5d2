package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/budget"
	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/recorder"
	"github.com/BaSui01/colloquy/types"
)

// fixedTokenizer makes every non-empty text cost exactly n tokens, so a
// turn recorded as (topic, response) costs exactly 2n.
type fixedTokenizer struct{ n int }

func (f fixedTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return f.n, nil
}

func (f fixedTokenizer) Name() string { return "fixed" }

// stubGenerator scripts a backend. fn receives the 1-based global attempt
// number across all participants.
type stubGenerator struct {
	name     string
	attempts *atomic.Int64
	fn       func(attempt int64, messages []types.Message) (string, error)
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(_ context.Context, messages []types.Message, _ int) (string, error) {
	return s.fn(s.attempts.Add(1), messages)
}

type fixture struct {
	orch     *Orchestrator
	rec      *recorder.Recorder
	ledger   *budget.Ledger
	attempts *atomic.Int64
}

// newFixture builds a 100-token session where every turn costs exactly 40
// tokens (20 for the topic input, 20 for the response).
func newFixture(t *testing.T, roster []string, fn func(attempt int64, messages []types.Message) (string, error)) *fixture {
	t.Helper()

	attempts := &atomic.Int64{}
	gens := make([]Generator, len(roster))
	for i, name := range roster {
		gens[i] = &stubGenerator{name: name, attempts: attempts, fn: fn}
	}

	ledger := budget.NewLedger(budget.Config{TokenLimit: 100}, fixedTokenizer{n: 20}, zap.NewNop())
	rec, err := recorder.New(t.TempDir(), "orch_test", zap.NewNop())
	require.NoError(t, err)

	cfg := Config{
		Topic:          "test topic",
		InterTurnDelay: 0,
		FailureBackoff: time.Millisecond,
	}
	orch := New(cfg, gens, ledger,
		conversation.NewContextBuilder(10, roster),
		conversation.NewSchedulerWithSeed(7),
		rec, zap.NewNop())

	return &fixture{orch: orch, rec: rec, ledger: ledger, attempts: attempts}
}

func speakerTurns(s recorder.Summary, roster []string) int {
	total := 0
	for _, name := range roster {
		total += s.ByParticipant[name].Count
	}
	return total
}

func TestRun_TerminatesAfterExactlyThreeTurns(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B", "C"}
	fx := newFixture(t, roster, func(int64, []types.Message) (string, error) {
		return "a response", nil
	})

	arts, err := fx.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, fx.orch.Status())

	// 40 tokens per turn against a 100-token limit: the third turn trips
	// the limit and no fourth generation is ever attempted.
	assert.EqualValues(t, 3, fx.attempts.Load())
	assert.Equal(t, 120, fx.ledger.Summary().TotalTokens)
	assert.True(t, fx.ledger.IsExceeded())

	s := fx.rec.Summary()
	assert.Equal(t, 3, speakerTurns(s, roster))
	assert.Equal(t, 120, s.TotalTokens)

	data, readErr := os.ReadFile(arts.JSONPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "test topic")
}

func TestRun_NoImmediateSpeakerRepeat(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B", "C"}
	var speakers []string
	fx := newFixture(t, roster, func(int64, []types.Message) (string, error) {
		return "ok", nil
	})
	fx.orch.WithHooks(Hooks{
		OnUtterance: func(u conversation.Utterance, _ budget.Snapshot) {
			speakers = append(speakers, u.Speaker)
		},
	})

	_, err := fx.orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, speakers, 3)
	assert.NotEqual(t, speakers[0], speakers[1])
	assert.NotEqual(t, speakers[1], speakers[2])
}

func TestRun_GenerationErrorDiscardsTurnAndContinues(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B"}
	fx := newFixture(t, roster, func(attempt int64, _ []types.Message) (string, error) {
		if attempt == 2 {
			return "", types.NewGenerationError("B", errors.New("upstream hiccup"))
		}
		return "fine", nil
	})

	_, err := fx.orch.Run(context.Background())
	require.NoError(t, err)

	// The failed attempt produced no utterance and consumed no budget: the
	// session still records exactly 3 successful turns of 40 tokens.
	assert.EqualValues(t, 4, fx.attempts.Load())
	assert.Equal(t, 120, fx.ledger.Summary().TotalTokens)
	assert.Equal(t, 3, speakerTurns(fx.rec.Summary(), roster))
}

func TestRun_CancellationFinalizesCleanly(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B"}
	ctx, cancel := context.WithCancel(context.Background())

	fx := newFixture(t, roster, func(int64, []types.Message) (string, error) {
		return "chatty", nil
	})
	fx.orch.WithHooks(Hooks{
		OnUtterance: func(conversation.Utterance, budget.Snapshot) { cancel() },
	})

	arts, err := fx.orch.Run(ctx)
	require.NoError(t, err, "cancellation is a normal termination, not an error")
	assert.Equal(t, StateDone, fx.orch.Status())

	// The in-flight turn completed before cancellation was observed.
	assert.Equal(t, 1, speakerTurns(fx.rec.Summary(), roster))

	data, readErr := os.ReadFile(arts.TextPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "=== Session ended:")
}

func TestRun_TooFewParticipantsStillFinalizes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []string{"A"}, func(int64, []types.Message) (string, error) {
		return "never called", nil
	})

	arts, err := fx.orch.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrTooFewParticipants, types.GetErrorCode(err))
	assert.Equal(t, StateDone, fx.orch.Status())
	assert.Zero(t, fx.attempts.Load())

	data, readErr := os.ReadFile(arts.TextPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "=== Session ended:")
}

func TestRun_AdvisoryFiresOnceOnWarningCross(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B"}
	advisories := 0
	fx := newFixture(t, roster, func(int64, []types.Message) (string, error) {
		return "word", nil
	})
	fx.orch.WithHooks(Hooks{
		OnAdvisory: func(s budget.Snapshot) {
			advisories++
			assert.True(t, s.IsWarning)
		},
	})

	_, err := fx.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, advisories)
}

func TestRun_ContextHandedToBuilderContainsSystemPrompt(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B"}
	var firstContext []types.Message
	fx := newFixture(t, roster, func(attempt int64, messages []types.Message) (string, error) {
		if attempt == 1 {
			firstContext = messages
		}
		return "ok", nil
	})

	_, err := fx.orch.Run(context.Background())
	require.NoError(t, err)

	// System prompt plus the seeded topic announcement.
	require.Len(t, firstContext, 2)
	assert.Equal(t, types.RoleSystem, firstContext[0].Role)
	assert.Contains(t, firstContext[0].Content, "test topic")
	assert.Equal(t, "test topic", firstContext[1].Content)
}

func TestRun_SessionHeaderRecorded(t *testing.T) {
	t.Parallel()

	roster := []string{"A", "B"}
	fx := newFixture(t, roster, func(int64, []types.Message) (string, error) {
		return "ok", nil
	})

	arts, err := fx.orch.Run(context.Background())
	require.NoError(t, err)

	data, readErr := os.ReadFile(arts.JSONPath)
	require.NoError(t, readErr)

	var doc struct {
		Messages []conversation.Utterance `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	var systemLines []string
	for _, m := range doc.Messages {
		if m.Speaker == recorder.SystemSpeaker {
			systemLines = append(systemLines, m.Content)
		}
	}
	require.Len(t, systemLines, 3)
	assert.Equal(t, "topic: test topic", systemLines[0])
	assert.Equal(t, "token limit: 100", systemLines[1])
	assert.Equal(t, "participants: A, B", systemLines[2])
}
