package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/Spl0itable/Anonostr/protocol"
	"github.com/Spl0itable/Anonostr/relay"
	"github.com/Spl0itable/Anonostr/session"
)

const (
	// timelineLimit caps the initial backlog per timeline subscription.
	timelineLimit = 100

	// searchLimit caps relay search results.
	searchLimit = 50
)

// Subscriber is the slice of the relay layer the feed needs.
type Subscriber interface {
	Subscribe(ctx context.Context, relayURL string, filters nostr.Filters) (*relay.Subscription, error)
}

// Profile is a cached display identity for an author.
type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	About  string `json:"about"`
	Banner string `json:"banner"`
	NIP05  string `json:"nip05"`
	Lud16  string `json:"lud16"`
	Lud06  string `json:"lud06"`
	Known  bool   `json:"known"`
}

// Service merges relay subscriptions into per-feed event streams and
// maintains the profile cache.
type Service struct {
	sub    Subscriber
	relays []string
	store  *session.Store
	log    zerolog.Logger

	profiles *xsync.MapOf[string, Profile]
	seen     *xsync.MapOf[string, struct{}]

	mu        sync.Mutex
	replySubs []*relay.Subscription
}

// New creates a feed service over the given relay pool.
func New(sub Subscriber, relays []string, store *session.Store, log zerolog.Logger) *Service {
	return &Service{
		sub:      sub,
		relays:   relays,
		store:    store,
		log:      log,
		profiles: xsync.NewMapOf[string, Profile](),
		seen:     xsync.NewMapOf[string, struct{}](),
	}
}

// FollowingTimeline streams kind-1 notes authored by the followed pubkeys
// into out, alongside a kind-0 prefetch that warms the profile cache. With
// nothing followed it returns immediately.
func (s *Service) FollowingTimeline(ctx context.Context, out chan<- nostr.Event) error {
	following, err := s.store.Following()
	if err != nil {
		return err
	}
	if len(following) == 0 {
		return nil
	}
	filters := nostr.Filters{
		{Kinds: []int{protocol.KindNote}, Authors: following, Limit: timelineLimit},
		{Kinds: []int{protocol.KindProfile}, Authors: following},
	}
	return s.stream(ctx, filters, out)
}

// GlobalTimeline streams recent kind-1 notes from every relay.
func (s *Service) GlobalTimeline(ctx context.Context, out chan<- nostr.Event) error {
	filters := nostr.Filters{{Kinds: []int{protocol.KindNote}, Limit: timelineLimit}}
	return s.stream(ctx, filters, out)
}

// Search runs a full-text query over profiles and notes on every relay.
func (s *Service) Search(ctx context.Context, query string, out chan<- nostr.Event) error {
	filters := nostr.Filters{{
		Kinds:  []int{protocol.KindProfile, protocol.KindNote},
		Search: query,
		Limit:  searchLimit,
	}}
	return s.stream(ctx, filters, out)
}

// RenewReplySubscriptions re-subscribes to replies referencing any of the
// user's own published event ids. Called after every successful publish.
func (s *Service) RenewReplySubscriptions(ctx context.Context, out chan<- nostr.Event) error {
	ids, err := s.store.EventIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	old := s.replySubs
	s.replySubs = nil
	s.mu.Unlock()
	for _, sub := range old {
		sub.Close()
	}

	filters := nostr.Filters{{
		Kinds: []int{protocol.KindNote},
		Tags:  nostr.TagMap{"e": ids},
	}}

	var subs []*relay.Subscription
	for _, relayURL := range s.relays {
		sub, err := s.sub.Subscribe(ctx, relayURL, filters)
		if err != nil {
			s.log.Warn().Str("relay", relayURL).Err(err).Msg("reply subscription failed")
			continue
		}
		subs = append(subs, sub)
		go s.forward(ctx, sub, out)
	}

	s.mu.Lock()
	s.replySubs = append(s.replySubs, subs...)
	s.mu.Unlock()
	return nil
}

// stream opens one subscription per relay and forwards merged events.
func (s *Service) stream(ctx context.Context, filters nostr.Filters, out chan<- nostr.Event) error {
	subscribed := 0
	for _, relayURL := range s.relays {
		sub, err := s.sub.Subscribe(ctx, relayURL, filters)
		if err != nil {
			s.log.Warn().Str("relay", relayURL).Err(err).Msg("subscription failed")
			continue
		}
		subscribed++
		go s.forward(ctx, sub, out)
	}
	if subscribed == 0 {
		return relay.ErrNoRelays
	}
	return nil
}

// forward pipes one subscription into out, deduplicating across relays
// and caching any kind-0 events on the way through.
func (s *Service) forward(ctx context.Context, sub *relay.Subscription, out chan<- nostr.Event) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if evt.Kind == protocol.KindProfile {
				s.cacheProfile(evt)
			}
			if _, dup := s.seen.LoadOrStore(evt.ID, struct{}{}); dup {
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}
}

// cacheProfile stores the display identity carried by a kind-0 event.
func (s *Service) cacheProfile(evt nostr.Event) {
	var content protocol.ProfileContent
	if err := json.Unmarshal([]byte(evt.Content), &content); err != nil {
		s.log.Debug().Str("pubkey", evt.PubKey).Err(err).Msg("ignoring malformed profile content")
		return
	}
	s.profiles.Store(evt.PubKey, Profile{
		Name:   content.Name,
		Avatar: content.Picture,
		About:  content.About,
		Banner: content.Banner,
		NIP05:  content.NIP05,
		Lud16:  content.Lud16,
		Lud06:  content.Lud06,
		Known:  true,
	})
}

// Profile returns the cached identity for a pubkey, or an anonymous
// placeholder derived from the key when none is cached.
func (s *Service) Profile(pubkey string) Profile {
	if p, ok := s.profiles.Load(pubkey); ok {
		return p
	}
	short := pubkey
	if len(short) > 8 {
		short = short[:8]
	}
	return Profile{
		Name:   "anon-" + short,
		Avatar: "https://robohash.org/" + pubkey + ".png",
	}
}
