package conversation

import (
	"fmt"
	"strings"

	"github.com/BaSui01/colloquy/types"
)

// DefaultWindowSize is the number of trailing utterances included in a
// generation context.
const DefaultWindowSize = 10

const systemPromptFormat = `You are having a conversation with other AIs.
Current topic: %s

Conversation rules:
1. Keep the conversation natural and interesting.
2. React appropriately to what the other AIs said.
3. Contribute new angles and questions.
4. Answer concisely.
5. Let your own character show in your replies.
6. Do not include the other AIs' names in your reply; respond directly.`

// ContextBuilder converts raw conversation history into a bounded,
// role-tagged context for a generation backend.
//
// Roles alternate strictly by position within the trimmed window, regardless
// of actual speaker identity. This reflects the two-party dialogue framing
// the backends expect. With three or more participants the alternation does
// not necessarily track "my own prior turn" vs "someone else's turn"; this
// is an accepted approximation.
type ContextBuilder struct {
	windowSize int
	known      map[string]struct{}
}

// NewContextBuilder creates a builder over the given participant identities.
// The identities (plus the topic-announcement label) bound which
// "Speaker: " prefixes are stripped from included utterances. A
// non-positive windowSize selects DefaultWindowSize.
func NewContextBuilder(windowSize int, participants []string) *ContextBuilder {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	known := make(map[string]struct{}, len(participants)+1)
	for _, p := range participants {
		known[p] = struct{}{}
	}
	known[TopicLabel] = struct{}{}
	return &ContextBuilder{windowSize: windowSize, known: known}
}

// Build returns the generation context: one system entry describing the
// topic and etiquette, followed by at most the last windowSize utterances.
// Older turns are silently dropped.
func (b *ContextBuilder) Build(history []Utterance, topic string) []types.Message {
	window := history
	if len(window) > b.windowSize {
		window = window[len(window)-b.windowSize:]
	}

	msgs := make([]types.Message, 0, len(window)+1)
	msgs = append(msgs, types.Message{
		Role:    types.RoleSystem,
		Content: fmt.Sprintf(systemPromptFormat, topic),
	})

	for i, u := range window {
		role := types.RoleAssistant
		if i%2 == 1 {
			role = types.RoleUser
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: b.stripSpeakerPrefix(u.Content),
		})
	}
	return msgs
}

// stripSpeakerPrefix removes a leading "Name: " from content, but only when
// Name is a known participant identity or the topic-announcement label.
// Backends occasionally echo speaker names despite the etiquette prompt.
func (b *ContextBuilder) stripSpeakerPrefix(content string) string {
	name, rest, ok := strings.Cut(content, ": ")
	if !ok {
		return content
	}
	if _, known := b.known[name]; !known {
		return content
	}
	return rest
}
