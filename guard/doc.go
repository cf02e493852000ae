// Package guard enforces the client-local anti-abuse policy: a global
// submission cooldown, duplicate-content suppression, and per-target
// sliding-window rate limits.
//
// All state lives in a local key-value Store and is trivially resettable by
// wiping it; the guard offers no protection against an attacker who
// controls the client. Every mutation runs behind a single mutex so that
// interleaved submissions cannot race on the read-modify-write of the
// persisted lists.
package guard
