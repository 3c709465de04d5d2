// Package tokenizer provides deterministic token counting for budget
// accounting, with a tiktoken-backed implementation and a character-based
// estimator fallback that needs no encoding data.
package tokenizer
