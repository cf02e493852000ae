package testutil

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

// SignedNote builds and signs a kind-1 event under a fresh key.
func SignedNote(t *testing.T, content string) nostr.Event {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	evt := nostr.Event{
		Kind:      nostr.KindTextNote,
		PubKey:    pk,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{},
		Content:   content,
	}
	require.NoError(t, evt.Sign(sk))
	return evt
}

// SignedProfile builds and signs a kind-0 event under a fresh key.
func SignedProfile(t *testing.T, content string) nostr.Event {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	evt := nostr.Event{
		Kind:      nostr.KindProfileMetadata,
		PubKey:    pk,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{},
		Content:   content,
	}
	require.NoError(t, evt.Sign(sk))
	return evt
}
