// Package orchestrator drives a conversation session: it composes the
// scheduler, context builder, budget ledger, and recorder, invokes the
// participants' generation backends, and handles per-turn failure,
// termination, and cooperative cancellation.
//
// A single goroutine drives the whole loop. The blocking points (the
// generation call, the inter-turn delay, the durable write) stall the loop
// entirely; no other turn proceeds concurrently, so a single-writer
// discipline holds for the ledger, the state, and the log sink.
package orchestrator
