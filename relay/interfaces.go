package relay

import (
	"context"
	"errors"

	"github.com/nbd-wtf/go-nostr"
)

var (
	// ErrNoRelays indicates an empty relay set was supplied.
	ErrNoRelays = errors.New("relay: empty relay set")

	// ErrAckTimeout indicates no acknowledgment arrived within the ack
	// timeout. The relay may still have accepted the event.
	ErrAckTimeout = errors.New("relay: timed out waiting for acknowledgment")

	// ErrConnectionClosed indicates the connection closed before an
	// acknowledgment for the event arrived.
	ErrConnectionClosed = errors.New("relay: connection closed before acknowledgment")
)

// Outcome is the result of delivering one event to one relay.
type Outcome struct {
	// RelayURL identifies the relay this outcome belongs to.
	RelayURL string

	// Accepted is true only on an explicit positive acknowledgment
	// matching the event id.
	Accepted bool

	// Reason carries the relay's info string from an explicit ack.
	Reason string

	// Err is set on transport-level failure (dial, write, close,
	// timeout). It contributes a non-accepted outcome and is never
	// escalated on its own.
	Err error
}

// Sender delivers one signed event to one relay.
type Sender interface {
	Publish(ctx context.Context, relayURL string, evt nostr.Event) Outcome
}

// Client is the full delivery surface the submission pipeline depends on.
type Client interface {
	Sender

	// PublishDirect fans out to every relay concurrently, waits for all
	// outcomes to settle, and returns the count of acceptances.
	PublishDirect(ctx context.Context, relays []string, evt nostr.Event) (int, []Outcome)

	// PublishHop tries one randomly chosen relay at a time, removing
	// failed candidates, until one accepts or the pool is exhausted.
	PublishHop(ctx context.Context, relays []string, evt nostr.Event) (bool, []Outcome)
}
