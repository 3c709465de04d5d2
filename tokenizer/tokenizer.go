package tokenizer

// Tokenizer is the token counting interface consumed by the budget ledger.
// Counting must be deterministic: the same text always yields the same count
// within one session.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)

	// Name returns the tokenizer's name, for logs and summaries.
	Name() string
}

// New returns the tokenizer for the given encoding name. The special name
// "estimate" selects the character-based estimator; anything else is treated
// as a tiktoken encoding (for example "cl100k_base" or "o200k_base").
func New(encoding string) Tokenizer {
	if encoding == "" || encoding == "estimate" {
		return NewEstimator()
	}
	return NewTiktoken(encoding)
}
