// Package session owns the per-session publishing state: the reply-chain
// thread position, the append-only list of the user's own published event
// ids, and the followed-pubkey list.
//
// The original client kept this as ambient module state; here it is an
// explicit object created by the caller and handed to the orchestrator, so
// lifecycle and resets are visible and testable.
package session
