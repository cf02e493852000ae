package annotate

import (
	"regexp"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/rs/zerolog"

	"github.com/Spl0itable/Anonostr/protocol"
)

var (
	// refPattern matches candidate NIP-19 bech32 identifiers. Decoding
	// decides whether a candidate is real; false positives are skipped.
	refPattern = regexp.MustCompile(`(?i)[a-z]+1[qpzry9x8gf2tvdw0s3jn54khce6mua7l]{6,}`)

	hashtagPattern = regexp.MustCompile(`#\w+`)
)

// linkPrefix marks an in-text reference as a protocol link so clients
// render it instead of showing the raw identifier.
const linkPrefix = "nostr:"

// Options selects the annotation mode and supplies the thread context.
type Options struct {
	// ParentID, when non-empty, makes this a reply: a mandatory reply tag
	// referencing it is emitted first and it becomes a rate-limit target.
	ParentID string

	// ChainEnabled links this note to the session's previous one.
	ChainEnabled bool

	// RootEventID and LastEventID are the thread-state snapshot taken by
	// the caller before annotation.
	RootEventID string
	LastEventID string
}

// Result is the finalized annotation output.
type Result struct {
	// Tags is the complete tag list; if a root tag exists it is at index 0.
	Tags nostr.Tags

	// Text is the note content after root stripping and link rewriting.
	Text string

	// TargetKeys are the rate-limit targets this note touches: referenced
	// event ids, mentioned pubkeys, and lowercased hashtags.
	TargetKeys []string

	// RootEventID is set when a leading note reference started a new
	// thread; the caller installs it as the session root after a
	// successful publish.
	RootEventID string
}

// Annotator scans note text. It holds only a logger; annotation itself is
// stateless.
type Annotator struct {
	log zerolog.Logger
}

// New creates an Annotator.
func New(log zerolog.Logger) *Annotator {
	return &Annotator{log: log}
}

// Annotate processes raw text. For a top-level note a leading note
// reference becomes the thread root (stripped from the text); every other
// decoded reference becomes a mention tag. For a reply the parent tag is
// prepended before anything else. Chain linking appends a reply tag for
// the session's last event and restores the session root tag when no root
// was found in the text.
func (a *Annotator) Annotate(raw string, opts Options) Result {
	if opts.ParentID != "" {
		return a.annotateReply(raw, opts)
	}
	return a.annotateNote(raw, opts)
}

func (a *Annotator) annotateNote(raw string, opts Options) Result {
	res := Result{Text: raw}
	rootSet := false

	for _, match := range refPattern.FindAllString(raw, -1) {
		prefix, hexKey, ok := a.decodeRef(match)
		if !ok {
			continue
		}
		switch prefix {
		case "note":
			if !rootSet && strings.HasPrefix(res.Text, match) {
				// Leading note reference starts a new thread.
				res.RootEventID = hexKey
				res.Tags = protocol.PrependRoot(res.Tags, hexKey)
				res.Text = strings.TrimSpace(strings.Replace(res.Text, match, "", 1))
				rootSet = true
			} else {
				res.Tags = append(res.Tags, protocol.MentionEventTag(hexKey))
				res.Text = prefixRef(res.Text, match)
			}
			res.TargetKeys = append(res.TargetKeys, hexKey)
		case "npub", "nprofile":
			res.Tags = append(res.Tags, protocol.MentionProfileTag(hexKey))
			res.TargetKeys = append(res.TargetKeys, hexKey)
		}
	}

	a.scanHashtags(res.Text, &res)

	if opts.ChainEnabled && opts.LastEventID != "" {
		res.Tags = append(res.Tags, protocol.ReplyTag(opts.LastEventID))
		if opts.RootEventID != "" && !rootSet {
			res.Tags = protocol.PrependRoot(res.Tags, opts.RootEventID)
			res.TargetKeys = append(res.TargetKeys, opts.RootEventID)
		}
	}

	return res
}

func (a *Annotator) annotateReply(raw string, opts Options) Result {
	res := Result{
		Text:       raw,
		Tags:       nostr.Tags{protocol.ReplyTag(opts.ParentID)},
		TargetKeys: []string{opts.ParentID},
	}

	if opts.ChainEnabled && opts.LastEventID != "" {
		res.Tags = append(res.Tags, protocol.ReplyTag(opts.LastEventID))
		if opts.RootEventID != "" && !protocol.HasEventRef(res.Tags, opts.RootEventID) {
			res.Tags = protocol.PrependRoot(res.Tags, opts.RootEventID)
			res.TargetKeys = append(res.TargetKeys, opts.RootEventID)
		}
	}

	// Replies keep references in place: mention tags only, no root
	// stripping and no link rewriting.
	for _, match := range refPattern.FindAllString(raw, -1) {
		prefix, hexKey, ok := a.decodeRef(match)
		if !ok {
			continue
		}
		switch prefix {
		case "note":
			res.Tags = append(res.Tags, protocol.MentionEventTag(hexKey))
			res.TargetKeys = append(res.TargetKeys, hexKey)
		case "npub", "nprofile":
			res.Tags = append(res.Tags, protocol.MentionProfileTag(hexKey))
			res.TargetKeys = append(res.TargetKeys, hexKey)
		}
	}

	a.scanHashtags(raw, &res)

	return res
}

// scanHashtags appends a hashtag tag per #word token and the lowercased
// token as a target key, order-preserving.
func (a *Annotator) scanHashtags(text string, res *Result) {
	for _, tok := range hashtagPattern.FindAllString(text, -1) {
		res.Tags = append(res.Tags, protocol.HashtagTag(tok[1:]))
		res.TargetKeys = append(res.TargetKeys, strings.ToLower(tok))
	}
}

// decodeRef resolves one candidate reference. Failures are logged and the
// match is skipped; they never abort annotation.
func (a *Annotator) decodeRef(match string) (prefix, hexKey string, ok bool) {
	prefix, data, err := nip19.Decode(strings.ToLower(match))
	if err != nil {
		a.log.Debug().Str("ref", match).Err(err).Msg("skipping undecodable reference")
		return "", "", false
	}
	switch prefix {
	case "note", "npub":
		hexKey, ok = data.(string)
	case "nprofile":
		var pointer nostr.ProfilePointer
		if pointer, ok = data.(nostr.ProfilePointer); ok {
			hexKey = pointer.PublicKey
		}
	default:
		// Other identifier families (nevent, naddr, nsec) are not used
		// for threading metadata.
		return prefix, "", false
	}
	if !ok {
		a.log.Debug().Str("ref", match).Str("prefix", prefix).Msg("unexpected payload for reference")
		return "", "", false
	}
	return prefix, hexKey, true
}

// prefixRef inserts the nostr: link prefix before the first occurrence of
// match that is not already prefixed. Re-running annotation over rewritten
// text is therefore a no-op for already-linked references.
func prefixRef(text, match string) string {
	from := 0
	for {
		i := strings.Index(text[from:], match)
		if i < 0 {
			return text
		}
		pos := from + i
		if pos >= len(linkPrefix) && text[pos-len(linkPrefix):pos] == linkPrefix {
			from = pos + len(match)
			continue
		}
		return text[:pos] + linkPrefix + text[pos:]
	}
}
