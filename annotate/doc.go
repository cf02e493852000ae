// Package annotate turns raw note text into protocol threading metadata:
// it scans for NIP-19 entity references and hashtags, assembles e/p/t tags
// with correct root-first ordering, rewrites in-text references into
// nostr: links, and collects the target keys the rate limiter throttles.
//
// Annotation is pure: it touches no network and no storage, and a single
// malformed reference is logged and skipped without failing the action.
package annotate
