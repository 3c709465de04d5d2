package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_AppendAndHistory(t *testing.T) {
	t.Parallel()

	s := NewState("philosophy")
	assert.Equal(t, "philosophy", s.Topic())
	assert.Zero(t, s.Len())
	assert.Empty(t, s.PreviousSpeaker())

	s.Append(NewTopicAnnouncement("philosophy"))
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.PreviousSpeaker(), "topic announcement is not a speaker")

	s.Append(NewUtterance("Claude", "hello", 12, 0.001))
	assert.Equal(t, "Claude", s.PreviousSpeaker())

	// History is a copy: mutating it must not affect the state.
	h := s.History()
	h[0].Content = "tampered"
	assert.Equal(t, "philosophy", s.History()[0].Content)
}

func TestNewUtterance(t *testing.T) {
	t.Parallel()

	u := NewUtterance("Gemini", "hi", 3, 0)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.Timestamp.IsZero())
	assert.NotEqual(t, u.ID, NewUtterance("Gemini", "hi", 3, 0).ID)
}
