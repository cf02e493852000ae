// Package relay delivers signed events to relay endpoints over websockets
// and correlates the asynchronous accept/reject responses back to the
// publishing action.
//
// Connections are pooled and reused across publishes and subscriptions.
// Two delivery strategies exist: Direct fans out to every relay in the set
// concurrently and counts acceptances; Hop tries one randomly chosen relay
// at a time with fallback, trading latency for unlinkability between a
// user's successive posts.
//
// Per-relay transport failures are absorbed into the per-relay Outcome and
// never abort an aggregate operation; only zero total acceptance is an
// error, and that judgement belongs to the caller.
package relay
