package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/budget"
	"github.com/BaSui01/colloquy/conversation"
	"github.com/BaSui01/colloquy/recorder"
	"github.com/BaSui01/colloquy/types"
)

// Generator is the generation capability one participant exposes. Any
// backend satisfying it is interchangeable; the orchestrator never depends
// on backend-specific types.
//
// Implementations should honor ctx cancellation where they can, but the
// orchestrator does not rely on it: an in-flight call is always allowed to
// complete or fail before cancellation is observed.
type Generator interface {
	// Name returns the participant identity, fixed for the session.
	Name() string

	// Generate produces the participant's next reply for the given context.
	// maxTokens is a response-length hint.
	Generate(ctx context.Context, messages []types.Message, maxTokens int) (string, error)
}

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateTerminating  State = "terminating"
	StateDone         State = "done"
)

const (
	// DefaultMaxResponseTokens is the response-length hint handed to
	// backends when none is configured.
	DefaultMaxResponseTokens = 500

	// DefaultFailureBackoff is the pause after a recoverable turn failure.
	DefaultFailureBackoff = 2 * time.Second
)

// Config carries the session settings the orchestrator consumes. It is
// constructed once at session start; the core holds no ambient state.
type Config struct {
	Topic             string
	MaxResponseTokens int
	InterTurnDelay    time.Duration
	FailureBackoff    time.Duration
}

// Hooks are optional advisory callbacks toward a presentation layer. They
// run synchronously on the orchestration goroutine and must be fast.
type Hooks struct {
	// OnUtterance fires after each successfully recorded turn.
	OnUtterance func(conversation.Utterance, budget.Snapshot)

	// OnAdvisory fires once, when the budget warning threshold is first
	// crossed.
	OnAdvisory func(budget.Snapshot)
}

// Orchestrator owns one Session exclusively for its lifetime.
type Orchestrator struct {
	cfg        Config
	generators map[string]Generator
	names      []string
	ledger     *budget.Ledger
	builder    *conversation.ContextBuilder
	scheduler  *conversation.Scheduler
	rec        *recorder.Recorder
	state      *conversation.State
	hooks      Hooks
	logger     *zap.Logger

	mu     sync.Mutex
	status State
}

// New composes an orchestrator from its collaborators. Participant order
// follows the given slice; duplicate names keep the last generator.
func New(cfg Config, participants []Generator, ledger *budget.Ledger,
	builder *conversation.ContextBuilder, scheduler *conversation.Scheduler,
	rec *recorder.Recorder, logger *zap.Logger) *Orchestrator {

	if cfg.MaxResponseTokens <= 0 {
		cfg.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = DefaultFailureBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	generators := make(map[string]Generator, len(participants))
	names := make([]string, 0, len(participants))
	for _, g := range participants {
		if _, seen := generators[g.Name()]; !seen {
			names = append(names, g.Name())
		}
		generators[g.Name()] = g
	}

	return &Orchestrator{
		cfg:        cfg,
		generators: generators,
		names:      names,
		ledger:     ledger,
		builder:    builder,
		scheduler:  scheduler,
		rec:        rec,
		state:      conversation.NewState(cfg.Topic),
		logger:     logger,
		status:     StateIdle,
	}
}

// WithHooks attaches presentation callbacks. Must be called before Run.
func (o *Orchestrator) WithHooks(h Hooks) *Orchestrator {
	o.hooks = h
	return o
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) setStatus(s State) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Participants returns the roster in registration order.
func (o *Orchestrator) Participants() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Run drives the conversation until the budget is exceeded, the context is
// cancelled, or the durable sink fails. Finalize runs on every exit path,
// including the too-few-participants precondition failure, so the session
// record is always closed exactly once.
func (o *Orchestrator) Run(ctx context.Context) (recorder.Artifacts, error) {
	o.setStatus(StateInitializing)

	if len(o.names) < 2 {
		err := types.NewError(types.ErrTooFewParticipants,
			fmt.Sprintf("a conversation needs at least 2 participants, got %d", len(o.names)))
		o.logger.Error("cannot start session", zap.Error(err))
		return o.finalize(err)
	}

	if err := o.recordHeader(); err != nil {
		return o.finalize(err)
	}
	o.state.Append(conversation.NewTopicAnnouncement(o.cfg.Topic))

	o.logger.Info("session running",
		zap.String("session", o.rec.SessionName()),
		zap.String("topic", o.cfg.Topic),
		zap.Strings("participants", o.names))
	o.setStatus(StateRunning)

	var runErr error
	warned := false

	for {
		if ctx.Err() != nil {
			o.logger.Info("cancellation observed, terminating session")
			break
		}
		if o.ledger.IsExceeded() {
			o.logger.Info("token limit reached, terminating session",
				zap.Int("total_tokens", o.ledger.Summary().TotalTokens))
			break
		}

		speaker := o.scheduler.SelectNext(o.names)
		messages := o.builder.Build(o.state.History(), o.cfg.Topic)

		response, err := o.generators[speaker].Generate(ctx, messages, o.cfg.MaxResponseTokens)
		if err != nil {
			o.recoverTurn(ctx, speaker, err)
			continue
		}

		tokens, cost, err := o.ledger.Record(speaker, o.cfg.Topic, response)
		if err != nil {
			o.recoverTurn(ctx, speaker, err)
			continue
		}

		u := conversation.NewUtterance(speaker, response, tokens, cost)
		o.state.Append(u)
		if err := o.rec.Append(u); err != nil {
			// A failing durable sink would silently lose turns; stop here.
			o.logger.Error("durable write failed, terminating session", zap.Error(err))
			runErr = err
			break
		}

		snapshot := o.ledger.Summary()
		if o.hooks.OnUtterance != nil {
			o.hooks.OnUtterance(u, snapshot)
		}
		if snapshot.IsWarning && !warned {
			warned = true
			o.logger.Warn("budget warning threshold crossed",
				zap.Float64("usage_percent", snapshot.UsagePercent),
				zap.Int("remaining_tokens", snapshot.RemainingTokens))
			if o.hooks.OnAdvisory != nil {
				o.hooks.OnAdvisory(snapshot)
			}
		}

		o.sleep(ctx, o.cfg.InterTurnDelay)
	}

	return o.finalize(runErr)
}

// recordHeader writes the session configuration as bookkeeping entries,
// visible to anyone tailing the log before the first turn.
func (o *Orchestrator) recordHeader() error {
	header := []string{
		"topic: " + o.cfg.Topic,
		fmt.Sprintf("token limit: %d", o.ledger.Summary().TokenLimit),
		"participants: " + strings.Join(o.names, ", "),
	}
	for _, line := range header {
		if err := o.rec.RecordSystem(line); err != nil {
			return err
		}
	}
	return nil
}

// recoverTurn applies the continue-conversing policy: the failed turn
// produces no utterance, consumes no budget, and the loop resumes after a
// fixed backoff.
func (o *Orchestrator) recoverTurn(ctx context.Context, speaker string, err error) {
	o.logger.Warn("turn failed, continuing conversation",
		zap.String("participant", speaker),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err))
	o.sleep(ctx, o.cfg.FailureBackoff)
}

// finalize transitions Terminating -> Done around the single Finalize call.
func (o *Orchestrator) finalize(runErr error) (recorder.Artifacts, error) {
	o.setStatus(StateTerminating)
	arts, err := o.rec.Finalize(o.rec.Summary())
	o.setStatus(StateDone)
	if runErr != nil {
		return arts, runErr
	}
	return arts, err
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
