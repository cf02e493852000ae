// Package submit orchestrates one anonymous publish action end to end:
// cooldown gate, identity minting, profile propagation, content
// annotation, anti-abuse pre-flight, and content propagation.
//
// The ordering invariant is strict: the kind-0 profile must be accepted by
// at least one relay before the kind-1 content is sent, so that viewers
// encountering the note can resolve a non-anonymous identity. Zero profile
// acceptance aborts the whole action.
//
// Every terminal state is a discriminated Outcome; no path fails silently.
package submit
