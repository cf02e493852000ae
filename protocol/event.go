package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Event kinds used by the client.
const (
	// KindProfile is the metadata event (kind 0) carrying a JSON-encoded
	// profile object as its content.
	KindProfile = nostr.KindProfileMetadata

	// KindNote is the plain text note event (kind 1).
	KindNote = nostr.KindTextNote
)

// EventLinkBase is the viewer URL prefix for published event ids.
const EventLinkBase = "https://njump.me/"

// ProfileContent is the kind-0 content object. Field names follow the wire
// format exactly; empty optional fields are omitted.
type ProfileContent struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Banner  string `json:"banner,omitempty"`
	NIP05   string `json:"nip05,omitempty"`
	About   string `json:"about"`
	Lud16   string `json:"lud16,omitempty"`
	Lud06   string `json:"lud06,omitempty"`
}

// NewProfileEvent builds an unsigned kind-0 event for the given public key.
func NewProfileEvent(pubkey string, profile ProfileContent, createdAt nostr.Timestamp) (nostr.Event, error) {
	content, err := json.Marshal(profile)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("encode profile content: %w", err)
	}
	return nostr.Event{
		Kind:      KindProfile,
		PubKey:    pubkey,
		CreatedAt: createdAt,
		Tags:      nostr.Tags{},
		Content:   string(content),
	}, nil
}

// NewNoteEvent builds an unsigned kind-1 event with the finalized tag list.
func NewNoteEvent(pubkey, content string, tags nostr.Tags, createdAt nostr.Timestamp) nostr.Event {
	if tags == nil {
		tags = nostr.Tags{}
	}
	return nostr.Event{
		Kind:      KindNote,
		PubKey:    pubkey,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   content,
	}
}

// Finalize computes the event id over the canonical serialization and signs
// it with the secret key. The event must not be mutated afterwards: any
// change to tags or content invalidates both id and signature.
func Finalize(evt *nostr.Event, secretKey string) error {
	if err := evt.Sign(secretKey); err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	return nil
}

// EventLink returns the public viewer URL for a published event id.
func EventLink(eventID string) string {
	return EventLinkBase + eventID
}
