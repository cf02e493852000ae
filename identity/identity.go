package identity

import (
	"errors"
	"fmt"
	mathrand "math/rand"

	"github.com/nbd-wtf/go-nostr"
)

// ErrEntropyUnavailable indicates the underlying CSPRNG failed to produce
// key material. This is fatal and unrecoverable for the current action.
var ErrEntropyUnavailable = errors.New("identity: entropy source unavailable")

// Identity is an ephemeral signing keypair, hex encoded. It is owned
// exclusively by one publish action and must never be reused for a second
// event construction under a different action.
type Identity struct {
	SecretKey string
	PublicKey string
}

// Source supplies the randomness used for profile generation.
type Source interface {
	// IntN returns a uniform value in [0, n). n must be positive.
	IntN(n int) int
}

// mathSource is the default Source, backed by math/rand. Profile
// selection does not need cryptographic randomness; key material never
// flows through a Source.
type mathSource struct{}

func (mathSource) IntN(n int) int { return mathrand.Intn(n) }

// Minter generates ephemeral identities and throwaway profiles.
type Minter struct {
	src Source
}

// NewMinter creates a Minter. A nil src selects the default math/rand
// source.
func NewMinter(src Source) *Minter {
	if src == nil {
		src = mathSource{}
	}
	return &Minter{src: src}
}

// Mint generates a fresh keypair. Key generation uses the protocol
// library's own CSPRNG; a failure there aborts the whole action.
func (m *Minter) Mint() (Identity, error) {
	sk := nostr.GeneratePrivateKey()
	if sk == "" {
		return Identity{}, ErrEntropyUnavailable
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return Identity{}, fmt.Errorf("derive public key: %w", err)
	}
	return Identity{SecretKey: sk, PublicKey: pk}, nil
}
