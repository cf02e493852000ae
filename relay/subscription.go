package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
)

// Subscription is a live REQ subscription on one relay. Events is closed
// when the relay closes the subscription or the connection drops; a Close
// call only detaches the subscription, so consumers should also honor
// their own context.
type Subscription struct {
	ID       string
	RelayURL string
	Events   <-chan nostr.Event

	c         *conn
	closeOnce sync.Once
}

// Subscribe opens a subscription with the given filters on one relay.
func (p *Publisher) Subscribe(ctx context.Context, relayURL string, filters nostr.Filters) (*Subscription, error) {
	c, err := p.getConn(ctx, relayURL)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := make(chan nostr.Event, 64)
	c.subs.Store(id, ch)

	data, err := json.Marshal(nostr.ReqEnvelope{SubscriptionID: id, Filters: filters})
	if err != nil {
		c.subs.Delete(id)
		return nil, fmt.Errorf("encode subscription request: %w", err)
	}
	if err := c.write(data); err != nil {
		c.subs.Delete(id)
		c.shutdown()
		return nil, fmt.Errorf("send subscription request: %w", err)
	}

	p.log.Debug().Str("relay", relayURL).Str("sub", id).Msg("subscribed")
	return &Subscription{ID: id, RelayURL: relayURL, Events: ch, c: c}, nil
}

// Close sends CLOSE to the relay and detaches the subscription. The Events
// channel is left open for the read loop to drain; it closes when the
// connection does.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.c.subs.Delete(s.ID)
		if data, err := json.Marshal(nostr.CloseEnvelope(s.ID)); err == nil {
			s.c.write(data)
		}
	})
}
