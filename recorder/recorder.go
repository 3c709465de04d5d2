package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/conversation"
)

// SystemSpeaker is the reserved identity for session bookkeeping entries
// (topic, limits, roster) recorded alongside participant utterances.
const SystemSpeaker = "System"

const (
	timestampLayout = "2006-01-02 15:04:05"
	entrySeparator  = "================================================================================"
	speakerRule     = "--------------------------------------------------"
)

// Artifacts identifies the durable files of one session.
type Artifacts struct {
	TextPath string `json:"text_path"`
	JSONPath string `json:"json_path"`
}

// sessionDocument is the consolidated JSON snapshot written after every
// append and at finalization.
type sessionDocument struct {
	SessionName  string                   `json:"session_name"`
	StartTime    time.Time                `json:"start_time"`
	EndTime      *time.Time               `json:"end_time,omitempty"`
	MessageCount int                      `json:"message_count"`
	Messages     []conversation.Utterance `json:"messages"`
	Summary      *Summary                 `json:"summary,omitempty"`
}

// Recorder appends each turn of a session to a durable log and computes the
// final summary statistics. The orchestration loop is the single writer; the
// mutex guards against a presentation layer calling Summary concurrently.
type Recorder struct {
	mu          sync.Mutex
	sessionName string
	startTime   time.Time
	artifacts   Artifacts
	textFile    *os.File
	entries     []conversation.Utterance
	finalized   bool
	logger      *zap.Logger
}

// New opens the durable sink for a new session and immediately writes the
// session-start marker, so external tailing sees the session before any
// turn exists. An empty sessionName derives one from the current time at
// second resolution.
func New(dir, sessionName string, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	if sessionName == "" {
		sessionName = "conversation_" + now.Format("20060102_150405")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	artifacts := Artifacts{
		TextPath: filepath.Join(dir, sessionName+".txt"),
		JSONPath: filepath.Join(dir, sessionName+".json"),
	}

	f, err := os.OpenFile(artifacts.TextPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	r := &Recorder{
		sessionName: sessionName,
		startTime:   now,
		artifacts:   artifacts,
		textFile:    f,
		logger:      logger,
	}

	marker := fmt.Sprintf("=== Session started: %s ===\n", now.Format(timestampLayout))
	if _, err := f.WriteString(marker); err != nil {
		f.Close()
		return nil, fmt.Errorf("write session-start marker: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sync session log: %w", err)
	}
	return r, nil
}

// SessionName returns the session's derived or configured name.
func (r *Recorder) SessionName() string {
	return r.sessionName
}

// Artifacts returns the paths of the session's durable files.
func (r *Recorder) Artifacts() Artifacts {
	return r.artifacts
}

// Append writes the utterance to the durable sink synchronously; when it
// returns, the turn has reached stable storage. It then rewrites the
// consolidated JSON snapshot of the full history.
func (r *Recorder) Append(u conversation.Utterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return fmt.Errorf("session %s already finalized", r.sessionName)
	}

	entry := fmt.Sprintf("\n[%s] %s\n%s\n%s\n\ntokens: %d, cost: $%.4f\n%s\n",
		u.Timestamp.Format(timestampLayout), u.Speaker, speakerRule,
		u.Content, u.Tokens, u.Cost, entrySeparator)

	if _, err := r.textFile.WriteString(entry); err != nil {
		return fmt.Errorf("append utterance: %w", err)
	}
	if err := r.textFile.Sync(); err != nil {
		return fmt.Errorf("sync session log: %w", err)
	}

	r.entries = append(r.entries, u)
	return r.writeSnapshot(nil, nil)
}

// RecordSystem appends a zero-cost bookkeeping entry under SystemSpeaker.
func (r *Recorder) RecordSystem(content string) error {
	return r.Append(conversation.NewUtterance(SystemSpeaker, content, 0, 0))
}

// Finalize writes the session-end marker including the summary, performs the
// final consolidated snapshot write, and returns the durable artifacts.
// A second call is a no-op returning the same artifacts; the persisted end
// marker is never duplicated.
func (r *Recorder) Finalize(s Summary) (Artifacts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		r.logger.Warn("finalize called twice", zap.String("session", r.sessionName))
		return r.artifacts, nil
	}

	now := time.Now()
	marker := fmt.Sprintf("\n=== Session ended: %s ===\nmessages: %d, tokens: %d, cost: $%.4f, duration: %.1f min\n",
		now.Format(timestampLayout), s.MessageCount, s.TotalTokens, s.TotalCost, s.DurationMinutes)

	if _, err := r.textFile.WriteString(marker); err != nil {
		return Artifacts{}, fmt.Errorf("write session-end marker: %w", err)
	}
	if err := r.textFile.Sync(); err != nil {
		return Artifacts{}, fmt.Errorf("sync session log: %w", err)
	}
	if err := r.textFile.Close(); err != nil {
		return Artifacts{}, fmt.Errorf("close session log: %w", err)
	}

	if err := r.writeSnapshot(&s, &now); err != nil {
		return Artifacts{}, err
	}

	r.finalized = true
	r.logger.Info("session finalized",
		zap.String("session", r.sessionName),
		zap.String("text", r.artifacts.TextPath),
		zap.String("json", r.artifacts.JSONPath))
	return r.artifacts, nil
}

// writeSnapshot rewrites the JSON artifact atomically (temp file + rename),
// so a crash mid-write never leaves a truncated snapshot behind.
// Caller holds the mutex.
func (r *Recorder) writeSnapshot(s *Summary, endTime *time.Time) error {
	doc := sessionDocument{
		SessionName:  r.sessionName,
		StartTime:    r.startTime,
		EndTime:      endTime,
		MessageCount: len(r.entries),
		Messages:     r.entries,
		Summary:      s,
	}
	if doc.Messages == nil {
		// An empty session is still a valid record.
		doc.Messages = []conversation.Utterance{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	tmp := r.artifacts.JSONPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.artifacts.JSONPath); err != nil {
		return fmt.Errorf("replace session snapshot: %w", err)
	}
	return nil
}
