package annotate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spl0itable/Anonostr/protocol"
)

const (
	eventHexA = "1111111111111111111111111111111111111111111111111111111111111111"
	eventHexB = "2222222222222222222222222222222222222222222222222222222222222222"
	pubkeyHex = "3333333333333333333333333333333333333333333333333333333333333333"
)

func newAnnotator() *Annotator {
	return New(zerolog.Nop())
}

func encodeNote(t *testing.T, id string) string {
	t.Helper()
	ref, err := nip19.EncodeNote(id)
	require.NoError(t, err)
	return ref
}

func encodePubkey(t *testing.T, pk string) string {
	t.Helper()
	ref, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)
	return ref
}

func TestHashtagsProduceMatchingTagsAndTargets(t *testing.T) {
	res := newAnnotator().Annotate("gm #Nostr folks #Memes #art", Options{})

	require.Len(t, res.Tags, 3)
	assert.Equal(t, protocol.HashtagTag("Nostr"), res.Tags[0])
	assert.Equal(t, protocol.HashtagTag("Memes"), res.Tags[1])
	assert.Equal(t, protocol.HashtagTag("art"), res.Tags[2])
	assert.Equal(t, []string{"#nostr", "#memes", "#art"}, res.TargetKeys)
	assert.Equal(t, "gm #Nostr folks #Memes #art", res.Text)
}

func TestLeadingNoteReferenceBecomesRoot(t *testing.T) {
	ref := encodeNote(t, eventHexA)
	res := newAnnotator().Annotate(ref+" I agree with this", Options{})

	require.NotEmpty(t, res.Tags)
	assert.Equal(t, protocol.RootTag(eventHexA), res.Tags[0])
	assert.Equal(t, "I agree with this", res.Text, "root reference is stripped")
	assert.Equal(t, eventHexA, res.RootEventID)
	assert.Contains(t, res.TargetKeys, eventHexA)
}

func TestNonLeadingNoteReferenceBecomesMention(t *testing.T) {
	ref := encodeNote(t, eventHexA)
	res := newAnnotator().Annotate("check "+ref+" out", Options{})

	require.Len(t, res.Tags, 1)
	assert.Equal(t, protocol.MentionEventTag(eventHexA), res.Tags[0])
	assert.Equal(t, "check nostr:"+ref+" out", res.Text)
	assert.Empty(t, res.RootEventID)
}

func TestAnnotateIsStableOverItsOwnOutput(t *testing.T) {
	ref := encodeNote(t, eventHexA)
	a := newAnnotator()

	first := a.Annotate("check "+ref+" out", Options{})
	second := a.Annotate(first.Text, Options{})

	assert.Equal(t, first.Text, second.Text, "already-prefixed references must not be wrapped again")
	assert.Equal(t, first.Tags, second.Tags)
}

func TestProfileReferencesBecomePTags(t *testing.T) {
	npub := encodePubkey(t, pubkeyHex)
	nprofile, err := nip19.EncodeProfile(pubkeyHex, nil)
	require.NoError(t, err)

	res := newAnnotator().Annotate(fmt.Sprintf("hi %s and %s", npub, nprofile), Options{})

	require.Len(t, res.Tags, 2)
	assert.Equal(t, protocol.MentionProfileTag(pubkeyHex), res.Tags[0])
	assert.Equal(t, protocol.MentionProfileTag(pubkeyHex), res.Tags[1])
	assert.Equal(t, []string{pubkeyHex, pubkeyHex}, res.TargetKeys)
	// Profile references stay as-is in the text.
	assert.Contains(t, res.Text, npub)
	assert.NotContains(t, res.Text, "nostr:"+npub)
}

func TestMalformedReferenceIsSkipped(t *testing.T) {
	good := encodeNote(t, eventHexA)
	// Valid charset, broken checksum: decodes must fail but the rest of
	// the note still annotates.
	bad := "note1qqqqqqqqqqqqqqqqqqqqqq"

	res := newAnnotator().Annotate(bad+" and "+good+" #tag", Options{})

	assert.Contains(t, res.TargetKeys, eventHexA)
	assert.Contains(t, res.TargetKeys, "#tag")
	for _, tag := range res.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			assert.Equal(t, eventHexA, tag[1])
		}
	}
}

func TestChainLinkingAppendsReplyAndRestoresRoot(t *testing.T) {
	res := newAnnotator().Annotate("continuing the thread", Options{
		ChainEnabled: true,
		RootEventID:  eventHexA,
		LastEventID:  eventHexB,
	})

	require.Len(t, res.Tags, 2)
	assert.Equal(t, protocol.RootTag(eventHexA), res.Tags[0], "root tag is inserted at position 0")
	assert.Equal(t, protocol.ReplyTag(eventHexB), res.Tags[1])
	assert.Equal(t, []string{eventHexA}, res.TargetKeys, "chained last id is not a rate-limit target, the root is")
}

func TestChainLinkingWithoutRootOnlyAppendsReply(t *testing.T) {
	res := newAnnotator().Annotate("more", Options{
		ChainEnabled: true,
		LastEventID:  eventHexB,
	})

	require.Len(t, res.Tags, 1)
	assert.Equal(t, protocol.ReplyTag(eventHexB), res.Tags[0])
	assert.Empty(t, res.TargetKeys)
}

func TestInTextRootWinsOverSessionRoot(t *testing.T) {
	ref := encodeNote(t, eventHexA)
	res := newAnnotator().Annotate(ref+" new thread", Options{
		ChainEnabled: true,
		RootEventID:  eventHexB,
		LastEventID:  eventHexB,
	})

	require.NotEmpty(t, res.Tags)
	assert.Equal(t, protocol.RootTag(eventHexA), res.Tags[0])
	for _, tag := range res.Tags[1:] {
		assert.NotEqual(t, protocol.MarkerRoot, tag[len(tag)-1], "only one root tag allowed")
	}
	assert.Equal(t, eventHexA, res.RootEventID)
}

func TestReplyAlwaysTagsParent(t *testing.T) {
	res := newAnnotator().Annotate("replying", Options{ParentID: eventHexA})

	require.Len(t, res.Tags, 1)
	assert.Equal(t, protocol.ReplyTag(eventHexA), res.Tags[0])
	assert.Equal(t, []string{eventHexA}, res.TargetKeys)
}

func TestReplyWithChainKeepsRootFirst(t *testing.T) {
	res := newAnnotator().Annotate("replying #deep", Options{
		ParentID:     eventHexA,
		ChainEnabled: true,
		RootEventID:  eventHexB,
		LastEventID:  eventHexA,
	})

	require.GreaterOrEqual(t, len(res.Tags), 3)
	assert.Equal(t, protocol.RootTag(eventHexB), res.Tags[0])
	assert.Equal(t, protocol.ReplyTag(eventHexA), res.Tags[1])
	assert.Equal(t, protocol.ReplyTag(eventHexA), res.Tags[2])
	assert.Contains(t, res.TargetKeys, eventHexA)
	assert.Contains(t, res.TargetKeys, eventHexB)
	assert.Contains(t, res.TargetKeys, "#deep")
}

func TestReplyDoesNotRewriteText(t *testing.T) {
	ref := encodeNote(t, eventHexB)
	raw := "see " + ref
	res := newAnnotator().Annotate(raw, Options{ParentID: eventHexA})

	assert.Equal(t, raw, res.Text)
	assert.Contains(t, res.TargetKeys, eventHexB)

	var mentions int
	for _, tag := range res.Tags {
		if len(tag) == 4 && tag[3] == protocol.MarkerMention {
			mentions++
		}
	}
	assert.Equal(t, 1, mentions)
}

func TestUppercaseReferencesDecode(t *testing.T) {
	ref := strings.ToUpper(encodeNote(t, eventHexA))
	res := newAnnotator().Annotate("see "+ref, Options{})
	assert.Contains(t, res.TargetKeys, eventHexA)
}
