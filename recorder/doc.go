// Package recorder persists a conversation session to durable artifacts:
// an append-only human-readable text log and a consolidated JSON snapshot
// that is rewritten on every append, so a full session can be reconstructed
// after a crash without replaying the incremental log.
package recorder
