package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spl0itable/Anonostr/feed"
	"github.com/Spl0itable/Anonostr/guard"
	"github.com/Spl0itable/Anonostr/relay"
	"github.com/Spl0itable/Anonostr/session"
	"github.com/Spl0itable/Anonostr/testutil"
)

func newService(t *testing.T, relays ...*testutil.FakeRelay) (*feed.Service, *session.Store) {
	t.Helper()

	p := relay.NewPublisher(zerolog.Nop())
	t.Cleanup(p.Close)

	urls := make([]string, len(relays))
	for i, r := range relays {
		urls[i] = r.URL()
	}
	store := session.NewStore(guard.NewMemStore(), zerolog.Nop())
	return feed.New(p, urls, store, zerolog.Nop()), store
}

func collect(t *testing.T, out <-chan nostr.Event, n int) []nostr.Event {
	t.Helper()
	var events []nostr.Event
	deadline := time.After(3 * time.Second)
	for len(events) < n {
		select {
		case evt := <-out:
			events = append(events, evt)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestGlobalTimelineMergesAndDeduplicates(t *testing.T) {
	shared := testutil.SignedNote(t, "seen everywhere")
	only := testutil.SignedNote(t, "seen once")

	relayA := testutil.NewFakeRelay(testutil.Accept)
	defer relayA.Close()
	relayB := testutil.NewFakeRelay(testutil.Accept)
	defer relayB.Close()
	relayA.ServeEvents(shared, only)
	relayB.ServeEvents(shared)

	svc, _ := newService(t, relayA, relayB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan nostr.Event, 16)
	require.NoError(t, svc.GlobalTimeline(ctx, out))

	events := collect(t, out, 2)
	ids := map[string]bool{events[0].ID: true, events[1].ID: true}
	assert.True(t, ids[shared.ID])
	assert.True(t, ids[only.ID])

	// The shared note must not arrive twice.
	select {
	case evt := <-out:
		t.Fatalf("unexpected duplicate event %s", evt.ID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFollowingTimelineWithNothingFollowed(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()
	svc, _ := newService(t, server)

	out := make(chan nostr.Event, 1)
	require.NoError(t, svc.FollowingTimeline(context.Background(), out))

	select {
	case evt := <-out:
		t.Fatalf("unexpected event %s", evt.ID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProfileCacheWarmsFromKindZero(t *testing.T) {
	profileEvt := testutil.SignedProfile(t, `{"name":"Wobu","picture":"https://example.com/w.png","about":"Kili dopa."}`)
	note := testutil.SignedNote(t, "hi")

	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()
	server.ServeEvents(profileEvt, note)

	svc, _ := newService(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan nostr.Event, 16)
	require.NoError(t, svc.Search(ctx, "wobu", out))
	collect(t, out, 2)

	p := svc.Profile(profileEvt.PubKey)
	assert.True(t, p.Known)
	assert.Equal(t, "Wobu", p.Name)
	assert.Equal(t, "https://example.com/w.png", p.Avatar)
}

func TestProfileFallbackForUnknownAuthor(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()
	svc, _ := newService(t, server)

	pubkey := "5555555555555555555555555555555555555555555555555555555555555555"
	p := svc.Profile(pubkey)

	assert.False(t, p.Known)
	assert.Equal(t, "anon-55555555", p.Name)
	assert.Contains(t, p.Avatar, pubkey)
}

func TestRenewReplySubscriptionsNoOpWithoutOwnEvents(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()
	svc, _ := newService(t, server)

	out := make(chan nostr.Event, 1)
	require.NoError(t, svc.RenewReplySubscriptions(context.Background(), out))
	assert.Zero(t, server.ConnCount(), "no subscription without published ids")
}

func TestRenewReplySubscriptionsStreamsReplies(t *testing.T) {
	reply := testutil.SignedNote(t, "nice note")

	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()
	server.ServeEvents(reply)

	svc, store := newService(t, server)
	require.NoError(t, store.SaveEventID("6666666666666666666666666666666666666666666666666666666666666666"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan nostr.Event, 4)
	require.NoError(t, svc.RenewReplySubscriptions(ctx, out))

	events := collect(t, out, 1)
	assert.Equal(t, reply.ID, events[0].ID)
}
