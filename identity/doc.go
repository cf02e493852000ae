// Package identity mints single-use keypairs and matching throwaway
// profiles for anonymous publishing.
//
// Every publish action gets a fresh keypair that is discarded immediately
// after the action settles; no key material is ever cached or persisted.
// Profile randomness (names, avatars, about text) flows through an
// injectable Source so tests can supply deterministic sequences.
package identity
