package conversation

import (
	"time"

	"github.com/google/uuid"
)

// TopicLabel is the reserved speaker identity used for the topic
// announcement that seeds a conversation. ContextBuilder strips it like a
// participant name.
const TopicLabel = "Topic"

// Utterance is one recorded turn: the speaker's output plus its metadata.
// Immutable once recorded; the ordered sequence forms the history.
type Utterance struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost_usd"`
}

// NewUtterance creates an utterance stamped with the current time.
func NewUtterance(speaker, content string, tokens int, cost float64) Utterance {
	return Utterance{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now(),
		Tokens:    tokens,
		Cost:      cost,
	}
}

// NewTopicAnnouncement creates the utterance that seeds the history with the
// conversation topic.
func NewTopicAnnouncement(topic string) Utterance {
	return NewUtterance(TopicLabel, topic, 0, 0)
}

// State owns the ordered utterance sequence, the topic, and the
// previous-speaker identity. It is mutated exclusively by the orchestrator
// after a successful turn; appending is the only mutation.
type State struct {
	topic      string
	utterances []Utterance
	previous   string
}

// NewState creates an empty conversation state for the given topic.
func NewState(topic string) *State {
	return &State{topic: topic}
}

// Append appends one utterance and updates the previous-speaker identity.
// The topic announcement does not count as a speaker.
func (s *State) Append(u Utterance) {
	s.utterances = append(s.utterances, u)
	if u.Speaker != TopicLabel {
		s.previous = u.Speaker
	}
}

// History returns a copy of the utterance sequence.
func (s *State) History() []Utterance {
	out := make([]Utterance, len(s.utterances))
	copy(out, s.utterances)
	return out
}

// Len returns the number of recorded utterances.
func (s *State) Len() int {
	return len(s.utterances)
}

// Topic returns the conversation topic.
func (s *State) Topic() string {
	return s.topic
}

// PreviousSpeaker returns the identity of the last speaker, or "" before the
// first turn.
func (s *State) PreviousSpeaker() string {
	return s.previous
}
