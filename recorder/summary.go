package recorder

import (
	"github.com/samber/lo"

	"github.com/BaSui01/colloquy/conversation"
)

// ParticipantStats aggregates one speaker's recorded turns.
type ParticipantStats struct {
	Count  int     `json:"count"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost_usd"`
}

// Summary is the end-of-session statistics record, exposed outward as plain
// structured data for any presentation layer.
type Summary struct {
	SessionName     string                      `json:"session_name"`
	MessageCount    int                         `json:"message_count"`
	TotalTokens     int                         `json:"total_tokens"`
	TotalCost       float64                     `json:"total_cost_usd"`
	DurationMinutes float64                     `json:"duration_minutes"`
	ByParticipant   map[string]ParticipantStats `json:"by_participant"`
}

// Summary computes statistics over everything recorded so far. Duration is
// the span between the first and last recorded timestamps, in minutes, and
// is 0 when fewer than two entries exist.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	entries := make([]conversation.Utterance, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	by := make(map[string]ParticipantStats)
	for speaker, turns := range lo.GroupBy(entries, func(u conversation.Utterance) string { return u.Speaker }) {
		by[speaker] = ParticipantStats{
			Count:  len(turns),
			Tokens: lo.SumBy(turns, func(u conversation.Utterance) int { return u.Tokens }),
			Cost:   lo.SumBy(turns, func(u conversation.Utterance) float64 { return u.Cost }),
		}
	}

	duration := 0.0
	if len(entries) >= 2 {
		duration = entries[len(entries)-1].Timestamp.Sub(entries[0].Timestamp).Minutes()
	}

	return Summary{
		SessionName:     r.sessionName,
		MessageCount:    len(entries),
		TotalTokens:     lo.SumBy(entries, func(u conversation.Utterance) int { return u.Tokens }),
		TotalCost:       lo.SumBy(entries, func(u conversation.Utterance) float64 { return u.Cost }),
		DurationMinutes: duration,
		ByParticipant:   by,
	}
}
