package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of draws, wrapping around.
type scriptedSource struct {
	seq []int
	pos int
}

func (s *scriptedSource) IntN(n int) int {
	v := s.seq[s.pos%len(s.seq)] % n
	s.pos++
	return v
}

func TestMintProducesFreshKeypairs(t *testing.T) {
	m := NewMinter(nil)

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id, err := m.Mint()
		require.NoError(t, err)
		require.Len(t, id.SecretKey, 64)
		require.Len(t, id.PublicKey, 64)
		require.False(t, seen[id.SecretKey], "secret key reused")
		seen[id.SecretKey] = true
	}
}

func TestMintProfileShape(t *testing.T) {
	m := NewMinter(nil)
	id, err := m.Mint()
	require.NoError(t, err)

	profile := m.MintProfile(id.PublicKey)

	// Name: capitalized, 2 or 3 consonant-vowel syllables.
	require.NotEmpty(t, profile.Name)
	assert.Equal(t, strings.ToUpper(profile.Name[:1]), profile.Name[:1])
	assert.Contains(t, []int{4, 6}, len(profile.Name))

	// Avatar is seeded by the public key so it renders deterministically.
	assert.Contains(t, profile.Picture, id.PublicKey[:6])

	assert.True(t, strings.HasSuffix(profile.About, "."))
	words := strings.Fields(profile.About)
	assert.GreaterOrEqual(t, len(words), 5)
	assert.LessOrEqual(t, len(words), 9)
}

func TestMintProfileDeterministicWithScriptedSource(t *testing.T) {
	src := &scriptedSource{seq: []int{0}}
	m := NewMinter(src)

	profile := m.MintProfile("ab12cd")

	// Every draw is 0: two "ba" syllables, robohash avatar, five "ba" words.
	assert.Equal(t, "Baba", profile.Name)
	assert.Equal(t, "https://robohash.org/ab12cd.png", profile.Picture)
	assert.Equal(t, "Baba baba baba baba baba.", profile.About)
}

func TestProfilesVaryAcrossMints(t *testing.T) {
	m := NewMinter(nil)
	a := m.MintProfile("aaaa")
	b := m.MintProfile("bbbb")
	// Names are random words; a collision across two draws is vanishingly
	// unlikely with 105 possible syllables.
	assert.NotEqual(t, a.About, b.About)
}
