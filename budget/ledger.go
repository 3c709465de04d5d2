package budget

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/tokenizer"
	"github.com/BaSui01/colloquy/types"
)

// DefaultWarningThreshold is the soft-warning fraction of the token limit.
const DefaultWarningThreshold = 0.9

// Rate is the per-token price of one participant, in currency per token.
// A zero rate is valid for a free-tier participant.
type Rate struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// Config configures a Ledger. TokenLimit is fixed for the session lifetime.
type Config struct {
	TokenLimit       int             `json:"token_limit" yaml:"token_limit"`
	WarningThreshold float64         `json:"warning_threshold" yaml:"warning_threshold"`
	Rates            map[string]Rate `json:"rates" yaml:"rates"`
}

// ParticipantUsage is one participant's slice of a Snapshot.
type ParticipantUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// Snapshot is a read-only copy of the ledger state, suitable for display or
// persistence. It is detached from the live ledger.
type Snapshot struct {
	TokenLimit      int                         `json:"token_limit"`
	TotalTokens     int                         `json:"total_tokens"`
	TotalCost       float64                     `json:"total_cost_usd"`
	UsagePercent    float64                     `json:"usage_percent"`
	RemainingTokens int                         `json:"remaining_tokens"`
	IsWarning       bool                        `json:"is_warning"`
	IsExceeded      bool                        `json:"is_exceeded"`
	ByParticipant   map[string]ParticipantUsage `json:"usage_by_participant"`
}

// Ledger tracks token and cost usage for one session.
//
// The orchestration loop is the single writer; the mutex only protects
// concurrent readers such as a presentation layer polling Summary.
type Ledger struct {
	mu     sync.RWMutex
	tok    tokenizer.Tokenizer
	cfg    Config
	usage  map[string]*types.TokenUsage
	cost   map[string]float64
	total  int
	spent  float64
	logger *zap.Logger
}

// NewLedger creates a ledger over the given tokenizer.
func NewLedger(cfg Config, tok tokenizer.Tokenizer, logger *zap.Logger) *Ledger {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		tok:    tok,
		cfg:    cfg,
		usage:  make(map[string]*types.TokenUsage),
		cost:   make(map[string]float64),
		logger: logger,
	}
}

// Record tokenizes both texts, prices them with the participant's rate, and
// updates the per-participant and aggregate counters. It returns the turn's
// token count and cost. Tokenization failure leaves the ledger untouched.
func (l *Ledger) Record(participant, inputText, outputText string) (int, float64, error) {
	inputTokens, err := l.tok.CountTokens(inputText)
	if err != nil {
		return 0, 0, types.NewError(types.ErrTokenizer, "count input tokens").
			WithParticipant(participant).WithRetryable(true).WithCause(err)
	}
	outputTokens, err := l.tok.CountTokens(outputText)
	if err != nil {
		return 0, 0, types.NewError(types.ErrTokenizer, "count output tokens").
			WithParticipant(participant).WithRetryable(true).WithCause(err)
	}

	rate := l.cfg.Rates[participant]
	turnCost := float64(inputTokens)*rate.Input + float64(outputTokens)*rate.Output
	turnTokens := inputTokens + outputTokens

	l.mu.Lock()
	u, ok := l.usage[participant]
	if !ok {
		u = &types.TokenUsage{}
		l.usage[participant] = u
	}
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	l.cost[participant] += turnCost
	l.total += turnTokens
	l.spent += turnCost
	l.mu.Unlock()

	l.logger.Debug("usage recorded",
		zap.String("participant", participant),
		zap.Int("tokens", turnTokens),
		zap.Float64("cost", turnCost))

	return turnTokens, turnCost, nil
}

// IsExceeded reports whether the hard token cap has been reached.
func (l *Ledger) IsExceeded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total >= l.cfg.TokenLimit
}

// IsWarning reports whether usage has crossed the soft warning threshold.
// Always false when the limit is not positive.
func (l *Ledger) IsWarning() bool {
	return l.UsagePercent() >= l.cfg.WarningThreshold*100
}

// UsagePercent returns usage as a 0-100 percentage of the token limit, or 0
// when the limit is not positive.
func (l *Ledger) UsagePercent() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cfg.TokenLimit <= 0 {
		return 0
	}
	return float64(l.total) / float64(l.cfg.TokenLimit) * 100
}

// Remaining returns the number of tokens left before the cap, never negative.
func (l *Ledger) Remaining() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if remaining := l.cfg.TokenLimit - l.total; remaining > 0 {
		return remaining
	}
	return 0
}

// Summary returns a detached snapshot of the ledger.
func (l *Ledger) Summary() Snapshot {
	percent := l.UsagePercent()
	warning := percent >= l.cfg.WarningThreshold*100

	l.mu.RLock()
	defer l.mu.RUnlock()

	by := make(map[string]ParticipantUsage, len(l.usage))
	for name, u := range l.usage {
		by[name] = ParticipantUsage{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			TotalTokens:  u.Total(),
			Cost:         l.cost[name],
		}
	}

	remaining := l.cfg.TokenLimit - l.total
	if remaining < 0 {
		remaining = 0
	}

	return Snapshot{
		TokenLimit:      l.cfg.TokenLimit,
		TotalTokens:     l.total,
		TotalCost:       l.spent,
		UsagePercent:    percent,
		RemainingTokens: remaining,
		IsWarning:       warning,
		IsExceeded:      l.total >= l.cfg.TokenLimit,
		ByParticipant:   by,
	}
}
