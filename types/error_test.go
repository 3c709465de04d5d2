package types

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	t.Parallel()

	e := NewError(ErrTokenizer, "encoding unavailable")
	if got := e.Error(); got != "[TOKENIZER_ERROR] encoding unavailable" {
		t.Fatalf("unexpected error string: %q", got)
	}

	cause := errors.New("disk full")
	e = e.WithCause(cause)
	if got := e.Error(); !strings.Contains(got, "disk full") {
		t.Fatalf("expected cause in error string, got %q", got)
	}
	if !errors.Is(e, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestNewGenerationError(t *testing.T) {
	t.Parallel()

	cause := errors.New("upstream 500")
	e := NewGenerationError("Claude", cause)

	if e.Code != ErrGenerationFailed {
		t.Fatalf("unexpected code: %s", e.Code)
	}
	if e.Participant != "Claude" {
		t.Fatalf("unexpected participant: %s", e.Participant)
	}
	if !e.Retryable || !IsRetryable(e) {
		t.Fatal("generation errors must be retryable")
	}
	if !errors.Is(e, cause) {
		t.Fatal("expected wrapped cause")
	}
}

func TestGetErrorCode(t *testing.T) {
	t.Parallel()

	if got := GetErrorCode(NewError(ErrTooFewParticipants, "need 2")); got != ErrTooFewParticipants {
		t.Fatalf("unexpected code: %s", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code for plain error, got %s", got)
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
}

func TestTokenUsage(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 3, OutputTokens: 4}
	u.Add(TokenUsage{InputTokens: 1, OutputTokens: 2})

	if u.InputTokens != 4 || u.OutputTokens != 6 {
		t.Fatalf("unexpected usage: %+v", u)
	}
	if u.Total() != 10 {
		t.Fatalf("unexpected total: %d", u.Total())
	}
}
