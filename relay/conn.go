package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

const writeDeadline = 10 * time.Second

type ack struct {
	accepted bool
	reason   string
}

// conn wraps one websocket connection to a relay, demultiplexing OK
// envelopes to publish waiters and EVENT envelopes to subscriptions.
type conn struct {
	url string
	ws  *websocket.Conn

	writeMu sync.Mutex

	// acks maps event id to the waiter for its OK envelope.
	acks *xsync.MapOf[string, chan ack]

	// subs maps subscription id to the event channel fed by the read
	// loop. Only the read loop sends on (and eventually closes) these
	// channels.
	subs *xsync.MapOf[string, chan nostr.Event]

	done     chan struct{}
	downOnce sync.Once
}

func newConn(url string, ws *websocket.Conn) *conn {
	return &conn{
		url:  url,
		ws:   ws,
		acks: xsync.NewMapOf[string, chan ack](),
		subs: xsync.NewMapOf[string, chan nostr.Event](),
		done: make(chan struct{}),
	}
}

// write sends one frame, serialized against concurrent writers.
func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// shutdown marks the connection dead and closes the socket, which unblocks
// the read loop. Safe to call multiple times.
func (c *conn) shutdown() {
	c.downOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// readLoop dispatches incoming envelopes until the connection fails, then
// tears down: publish waiters observe done, subscription channels are
// closed here because the read loop is their only sender.
func (c *conn) readLoop(p *Publisher) {
	defer func() {
		c.shutdown()
		p.removeConn(c)
		c.subs.Range(func(id string, ch chan nostr.Event) bool {
			c.subs.Delete(id)
			close(ch)
			return true
		})
		p.log.Debug().Str("relay", c.url).Msg("disconnected from relay")
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.dispatch(p.log, data)
	}
}

func (c *conn) dispatch(log zerolog.Logger, data []byte) {
	envelope := nostr.ParseMessage(data)
	if envelope == nil {
		log.Debug().Str("relay", c.url).Msg("discarding unparseable relay message")
		return
	}

	switch env := envelope.(type) {
	case *nostr.OKEnvelope:
		if ch, ok := c.acks.Load(env.EventID); ok {
			select {
			case ch <- ack{accepted: env.OK, reason: env.Reason}:
			default:
				// Duplicate ack for an id we already answered.
			}
		}
	case *nostr.EventEnvelope:
		if env.SubscriptionID == nil {
			return
		}
		if ch, ok := c.subs.Load(*env.SubscriptionID); ok {
			select {
			case ch <- env.Event:
			default:
				// A slow consumer must not stall the read loop.
				log.Debug().Str("relay", c.url).Str("sub", *env.SubscriptionID).Msg("dropping event for slow subscriber")
			}
		}
	case *nostr.ClosedEnvelope:
		if ch, ok := c.subs.LoadAndDelete(env.SubscriptionID); ok {
			close(ch)
		}
	case *nostr.NoticeEnvelope:
		log.Debug().Str("relay", c.url).Str("notice", string(*env)).Msg("relay notice")
	}
}
