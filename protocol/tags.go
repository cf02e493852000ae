package protocol

import "github.com/nbd-wtf/go-nostr"

// Tag markers per NIP-10.
const (
	MarkerRoot    = "root"
	MarkerReply   = "reply"
	MarkerMention = "mention"
)

// RootTag references the thread root event. If present it must be the first
// tag of the event; callers prepend it rather than append.
func RootTag(eventID string) nostr.Tag {
	return nostr.Tag{"e", eventID, "", MarkerRoot}
}

// ReplyTag references the direct parent (or chain predecessor) event.
func ReplyTag(eventID string) nostr.Tag {
	return nostr.Tag{"e", eventID, "", MarkerReply}
}

// MentionEventTag references another note mentioned in the content.
func MentionEventTag(eventID string) nostr.Tag {
	return nostr.Tag{"e", eventID, "", MarkerMention}
}

// MentionProfileTag references a mentioned profile.
func MentionProfileTag(pubkey string) nostr.Tag {
	return nostr.Tag{"p", pubkey, "", MarkerMention}
}

// HashtagTag carries a hashtag without its leading '#'.
func HashtagTag(word string) nostr.Tag {
	return nostr.Tag{"t", word}
}

// HasEventRef reports whether any tag already references the given event id.
func HasEventRef(tags nostr.Tags, eventID string) bool {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == "e" && tag[1] == eventID {
			return true
		}
	}
	return false
}

// PrependRoot inserts a root tag at position 0, preserving the order of the
// remaining tags.
func PrependRoot(tags nostr.Tags, eventID string) nostr.Tags {
	out := make(nostr.Tags, 0, len(tags)+1)
	out = append(out, RootTag(eventID))
	return append(out, tags...)
}
