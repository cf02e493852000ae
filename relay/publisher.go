package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// DefaultAckTimeout bounds how long a publish waits for a relay's OK. The
// original design relied solely on the relay closing the socket; the
// explicit bound keeps a silent relay from hanging an action.
const DefaultAckTimeout = 10 * time.Second

// Publisher maintains a pool of relay connections and implements Client.
type Publisher struct {
	dialer *websocket.Dialer
	pool   *xsync.MapOf[string, *conn]
	dialMu sync.Mutex
	log    zerolog.Logger

	// AckTimeout bounds the wait for an acknowledgment per publish.
	AckTimeout time.Duration

	// intn drives the hop strategy's relay choice; tests replace it.
	intn func(int) int
}

// NewPublisher creates a Publisher with the default dialer and timeouts.
func NewPublisher(log zerolog.Logger) *Publisher {
	return &Publisher{
		dialer:     websocket.DefaultDialer,
		pool:       xsync.NewMapOf[string, *conn](),
		log:        log,
		AckTimeout: DefaultAckTimeout,
	}
}

// conn returns an open pooled connection to relayURL, dialing if needed.
func (p *Publisher) getConn(ctx context.Context, relayURL string) (*conn, error) {
	if c, ok := p.pool.Load(relayURL); ok {
		select {
		case <-c.done:
			// Fall through to redial.
		default:
			return c, nil
		}
	}

	p.dialMu.Lock()
	defer p.dialMu.Unlock()

	if c, ok := p.pool.Load(relayURL); ok {
		select {
		case <-c.done:
		default:
			return c, nil
		}
	}

	ws, _, err := p.dialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", relayURL, err)
	}
	c := newConn(relayURL, ws)
	p.pool.Store(relayURL, c)
	go c.readLoop(p)
	p.log.Debug().Str("relay", relayURL).Msg("connected to relay")
	return c, nil
}

func (p *Publisher) removeConn(c *conn) {
	if cur, ok := p.pool.Load(c.url); ok && cur == c {
		p.pool.Delete(c.url)
	}
}

// Publish sends evt to one relay and waits for the OK envelope correlated
// by event id. It resolves accepted only on an explicit positive ack; a
// rejection, transport error, closed connection, or timeout all yield a
// non-accepted outcome.
func (p *Publisher) Publish(ctx context.Context, relayURL string, evt nostr.Event) Outcome {
	out := Outcome{RelayURL: relayURL}

	c, err := p.getConn(ctx, relayURL)
	if err != nil {
		out.Err = err
		return out
	}

	ackCh := make(chan ack, 1)
	c.acks.Store(evt.ID, ackCh)
	defer c.acks.Delete(evt.ID)

	data, err := json.Marshal(nostr.EventEnvelope{Event: evt})
	if err != nil {
		out.Err = fmt.Errorf("encode event: %w", err)
		return out
	}
	if err := c.write(data); err != nil {
		c.shutdown()
		out.Err = fmt.Errorf("send event: %w", err)
		return out
	}

	timer := time.NewTimer(p.AckTimeout)
	defer timer.Stop()

	select {
	case a := <-ackCh:
		out.Accepted = a.accepted
		out.Reason = a.reason
		if !a.accepted {
			p.log.Debug().Str("relay", relayURL).Str("event", evt.ID).Str("reason", a.reason).Msg("relay rejected event")
		}
	case <-c.done:
		out.Err = ErrConnectionClosed
	case <-ctx.Done():
		out.Err = ctx.Err()
	case <-timer.C:
		out.Err = ErrAckTimeout
	}
	return out
}

// PublishDirect implements Client by fanning out over the pool.
func (p *Publisher) PublishDirect(ctx context.Context, relays []string, evt nostr.Event) (int, []Outcome) {
	return Direct(ctx, p, relays, evt)
}

// PublishHop implements Client via random single-relay fallback.
func (p *Publisher) PublishHop(ctx context.Context, relays []string, evt nostr.Event) (bool, []Outcome) {
	return Hop(ctx, p, relays, evt, p.intn)
}

// Close tears down every pooled connection.
func (p *Publisher) Close() {
	p.pool.Range(func(url string, c *conn) bool {
		c.shutdown()
		return true
	})
}
