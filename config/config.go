// Package config holds the resolved run configuration: session identity,
// budget policy, provider credentials, and logging. Precedence is
// defaults, then a YAML file, then environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/colloquy/budget"
	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

// Config is the complete, resolved configuration for a run. Callers pass
// values from here into the components; nothing reads configuration after
// construction.
type Config struct {
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Budget    BudgetConfig    `yaml:"budget" envconfig:"BUDGET"`
	Providers ProvidersConfig `yaml:"providers" envconfig:"PROVIDERS"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
}

// SessionConfig names the session and shapes the conversation itself.
type SessionConfig struct {
	// Name of the session; derives artifact file names. Empty means a
	// timestamped name is generated at start.
	Name string `yaml:"name" envconfig:"NAME"`
	// Topic seeds the conversation.
	Topic string `yaml:"topic" envconfig:"TOPIC"`
	// Directory for transcript artifacts.
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	// WindowSize caps how many recent utterances each participant sees.
	WindowSize int `yaml:"window_size" envconfig:"WINDOW_SIZE"`
	// MaxResponseTokens caps each generated reply.
	MaxResponseTokens int `yaml:"max_response_tokens" envconfig:"MAX_RESPONSE_TOKENS"`
	// InterTurnDelay paces the conversation between turns.
	InterTurnDelay time.Duration `yaml:"inter_turn_delay" envconfig:"INTER_TURN_DELAY"`
	// FailureBackoff is the pause after a recoverable turn failure.
	FailureBackoff time.Duration `yaml:"failure_backoff" envconfig:"FAILURE_BACKOFF"`
}

// BudgetConfig bounds the session by tokens and prices usage.
type BudgetConfig struct {
	// TokenLimit ends the session once cumulative tokens reach it.
	TokenLimit int `yaml:"token_limit" envconfig:"TOKEN_LIMIT"`
	// WarningThreshold in [0,1]; crossing it fires a one-time advisory.
	WarningThreshold float64 `yaml:"warning_threshold" envconfig:"WARNING_THRESHOLD"`
	// Encoding selects the tokenizer ("cl100k_base" or "estimate").
	Encoding string `yaml:"encoding" envconfig:"ENCODING"`
	// Rates maps participant name to per-token pricing. Unknown
	// participants cost zero.
	Rates map[string]budget.Rate `yaml:"rates" ignored:"true"`
}

// ProvidersConfig carries credentials and endpoints per backend.
type ProvidersConfig struct {
	OpenAI    providers.OpenAIConfig    `yaml:"openai" envconfig:"OPENAI"`
	Anthropic providers.AnthropicConfig `yaml:"anthropic" envconfig:"ANTHROPIC"`
	Gemini    providers.GeminiConfig    `yaml:"gemini" envconfig:"GEMINI"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" envconfig:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// Default per-token rates, expressed in USD per token. Unpriced
// participants (Gemini under a free tier) stay at zero.
func defaultRates() map[string]budget.Rate {
	return map[string]budget.Rate{
		"ChatGPT": {Input: 2.50 / 1e6, Output: 10.00 / 1e6},
		"Claude":  {Input: 3.00 / 1e6, Output: 15.00 / 1e6},
		"Gemini":  {Input: 0, Output: 0},
	}
}

// Default returns the baseline configuration every load starts from.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Topic:             "The nature of consciousness",
			OutputDir:         "sessions",
			WindowSize:        10,
			MaxResponseTokens: 500,
			InterTurnDelay:    2 * time.Second,
			FailureBackoff:    2 * time.Second,
		},
		Budget: BudgetConfig{
			TokenLimit:       50000,
			WarningThreshold: budget.DefaultWarningThreshold,
			Encoding:         "cl100k_base",
			Rates:            defaultRates(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports the first set of problems that make the configuration
// unusable. Provider credentials are not checked here; a run only needs
// two configured backends, which the caller decides.
func (c *Config) Validate() error {
	var errs []string
	if c.Budget.TokenLimit <= 0 {
		errs = append(errs, "budget.token_limit must be positive")
	}
	if c.Budget.WarningThreshold < 0 || c.Budget.WarningThreshold > 1 {
		errs = append(errs, "budget.warning_threshold must be within [0,1]")
	}
	if c.Session.WindowSize < 0 {
		errs = append(errs, "session.window_size must not be negative")
	}
	if c.Session.MaxResponseTokens <= 0 {
		errs = append(errs, "session.max_response_tokens must be positive")
	}
	if c.Session.OutputDir == "" {
		errs = append(errs, "session.output_dir must not be empty")
	}
	if len(errs) > 0 {
		return types.NewError(types.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// String renders a redacted one-line summary suitable for logs.
func (c *Config) String() string {
	return fmt.Sprintf("session=%q topic=%q token_limit=%d encoding=%s",
		c.Session.Name, c.Session.Topic, c.Budget.TokenLimit, c.Budget.Encoding)
}
