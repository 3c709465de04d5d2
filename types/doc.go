// Package types defines the shared data model of colloquy: conversational
// roles and messages, token usage accounting, and the structured error type
// used across the orchestration core and the providers.
package types
