package identity

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Spl0itable/Anonostr/protocol"
)

const (
	consonants = "bcdfghjklmnpqrstvwxyz"
	vowels     = "aeiou"
)

// diceBearStyles are the avatar styles offered by the DiceBear PNG API.
var diceBearStyles = []string{
	"adventurer",
	"adventurer-neutral",
	"big-ears",
	"big-ears-neutral",
	"big-smile",
	"bottts",
	"bottts-neutral",
	"croodles",
	"croodles-neutral",
	"fun-emoji",
	"icons",
	"identicon",
	"lorelei",
	"lorelei-neutral",
	"micah",
	"miniavs",
	"open-peeps",
	"personas",
	"pixel-art",
	"pixel-art-neutral",
	"shapes",
	"thumbs",
}

// avatarCandidates returns every avatar generator URL for a public key. The
// key seeds each generator so the same key always renders the same image,
// without any network call at mint time.
func avatarCandidates(pubkey string) []string {
	candidates := []string{
		fmt.Sprintf("https://robohash.org/%s.png", pubkey),
		fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(shortKey(pubkey))),
	}
	for _, style := range diceBearStyles {
		candidates = append(candidates, fmt.Sprintf("https://api.dicebear.com/9.x/%s/png?seed=%s", style, pubkey))
	}
	return candidates
}

func shortKey(pubkey string) string {
	if len(pubkey) > 6 {
		return pubkey[:6]
	}
	return pubkey
}

// MintProfile produces a throwaway profile for the given public key: a
// pronounceable 2-3 syllable display name, an avatar generator chosen
// uniformly from the candidate set, and a nonsense about sentence. It has
// no failure modes.
func (m *Minter) MintProfile(pubkey string) protocol.ProfileContent {
	candidates := avatarCandidates(pubkey)
	return protocol.ProfileContent{
		Name:    capitalize(m.randomWord()),
		Picture: candidates[m.src.IntN(len(candidates))],
		About:   m.randomSentence(),
	}
}

// randomSyllable produces one consonant-vowel pair.
func (m *Minter) randomSyllable() string {
	c := consonants[m.src.IntN(len(consonants))]
	v := vowels[m.src.IntN(len(vowels))]
	return string([]byte{c, v})
}

// randomWord builds a pronounceable word of 2 to 3 syllables.
func (m *Minter) randomWord() string {
	count := m.src.IntN(2) + 2
	var b strings.Builder
	for i := 0; i < count; i++ {
		b.WriteString(m.randomSyllable())
	}
	return b.String()
}

// randomSentence builds a 5 to 9 word nonsense sentence ending in a period.
func (m *Minter) randomSentence() string {
	count := m.src.IntN(5) + 5
	words := make([]string, count)
	for i := range words {
		words[i] = m.randomWord()
	}
	return capitalize(strings.Join(words, " ")) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
