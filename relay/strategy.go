package relay

import (
	"context"
	mathrand "math/rand"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// Direct publishes evt to every relay concurrently and waits for all
// attempts to settle. The aggregate is count-based and order-independent.
func Direct(ctx context.Context, s Sender, relays []string, evt nostr.Event) (int, []Outcome) {
	outcomes := make([]Outcome, len(relays))

	var wg sync.WaitGroup
	for i, relayURL := range relays {
		wg.Add(1)
		go func(i int, relayURL string) {
			defer wg.Done()
			outcomes[i] = s.Publish(ctx, relayURL, evt)
		}(i, relayURL)
	}
	wg.Wait()

	accepted := 0
	for _, out := range outcomes {
		if out.Accepted {
			accepted++
		}
	}
	return accepted, outcomes
}

// Hop publishes evt to one relay at a time, chosen uniformly at random
// from a shrinking candidate pool seeded with relays. A failed candidate
// is removed and never retried; the first acceptance wins. intn may be nil
// to use the package default randomness.
func Hop(ctx context.Context, s Sender, relays []string, evt nostr.Event, intn func(int) int) (bool, []Outcome) {
	if intn == nil {
		intn = mathrand.Intn
	}

	pool := append([]string(nil), relays...)
	var outcomes []Outcome
	for len(pool) > 0 {
		i := intn(len(pool))
		out := s.Publish(ctx, pool[i], evt)
		outcomes = append(outcomes, out)
		if out.Accepted {
			return true, outcomes
		}
		pool = append(pool[:i], pool[i+1:]...)
	}
	return false, outcomes
}
