// Package feed reads from the relay set: following and global timelines,
// full-text relay search, reply subscriptions for the user's own notes,
// and a kind-0 profile cache with anonymous fallbacks.
//
// Feeds are merged across every relay in the set and deduplicated by
// event id; a relay that fails to subscribe is skipped, never fatal.
package feed
