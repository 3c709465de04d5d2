// Package budget tracks token and monetary cost usage per participant and
// in aggregate, and enforces the session's hard token cap and soft warning
// threshold. The ledger is the sole hard stop condition of a conversation:
// everything else in the orchestrator is advisory.
//
// The limit is checked only after a turn completes (turns are not
// preemptible mid-generation), so the realized total may exceed the nominal
// limit by at most one turn's usage. This is an accepted, bounded overshoot.
package budget
