package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// MockClient implements Client for testing. Behavior is customized by
// setting the function fields; unset fields fall back to the real
// strategies running over PublishFunc.
type MockClient struct {
	PublishFunc       func(ctx context.Context, relayURL string, evt nostr.Event) Outcome
	PublishDirectFunc func(ctx context.Context, relays []string, evt nostr.Event) (int, []Outcome)
	PublishHopFunc    func(ctx context.Context, relays []string, evt nostr.Event) (bool, []Outcome)

	// IntN overrides hop randomness when PublishHopFunc is unset.
	IntN func(int) int
}

// NewMockClient creates a mock that reports acceptance from every relay.
func NewMockClient() *MockClient {
	return &MockClient{
		PublishFunc: func(ctx context.Context, relayURL string, evt nostr.Event) Outcome {
			return Outcome{RelayURL: relayURL, Accepted: true}
		},
	}
}

// Publish implements Client.
func (m *MockClient) Publish(ctx context.Context, relayURL string, evt nostr.Event) Outcome {
	return m.PublishFunc(ctx, relayURL, evt)
}

// PublishDirect implements Client.
func (m *MockClient) PublishDirect(ctx context.Context, relays []string, evt nostr.Event) (int, []Outcome) {
	if m.PublishDirectFunc != nil {
		return m.PublishDirectFunc(ctx, relays, evt)
	}
	return Direct(ctx, m, relays, evt)
}

// PublishHop implements Client.
func (m *MockClient) PublishHop(ctx context.Context, relays []string, evt nostr.Event) (bool, []Outcome) {
	if m.PublishHopFunc != nil {
		return m.PublishHopFunc(ctx, relays, evt)
	}
	return Hop(ctx, m, relays, evt, m.IntN)
}
