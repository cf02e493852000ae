// Package protocol defines the relay-facing data model for anonymous
// publishing: event kinds, threading tags, unsigned event templates, and
// relay-set configuration.
//
// All cryptographic operations (key generation, event-id hashing, Schnorr
// signatures, NIP-19 decoding) are delegated to github.com/nbd-wtf/go-nostr.
// This package only decides what goes into an event before it is signed;
// once an event is signed it must never be mutated.
package protocol
