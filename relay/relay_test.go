package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spl0itable/Anonostr/relay"
	"github.com/Spl0itable/Anonostr/testutil"
)

func newPublisher(t *testing.T) *relay.Publisher {
	t.Helper()
	p := relay.NewPublisher(zerolog.Nop())
	p.AckTimeout = 2 * time.Second
	t.Cleanup(p.Close)
	return p
}

func TestPublishAccepted(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()

	p := newPublisher(t)
	evt := testutil.SignedNote(t, "hello")

	out := p.Publish(context.Background(), server.URL(), evt)
	require.NoError(t, out.Err)
	assert.True(t, out.Accepted)

	received := server.Received()
	require.Len(t, received, 1)
	assert.Equal(t, evt.ID, received[0].ID)
}

func TestPublishRejected(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Reject)
	defer server.Close()

	p := newPublisher(t)
	out := p.Publish(context.Background(), server.URL(), testutil.SignedNote(t, "spam"))

	require.NoError(t, out.Err)
	assert.False(t, out.Accepted)
	assert.Equal(t, "blocked: test", out.Reason)
}

func TestPublishTimesOutOnSilentRelay(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Silent)
	defer server.Close()

	p := newPublisher(t)
	p.AckTimeout = 200 * time.Millisecond

	out := p.Publish(context.Background(), server.URL(), testutil.SignedNote(t, "anyone there"))
	assert.False(t, out.Accepted)
	assert.ErrorIs(t, out.Err, relay.ErrAckTimeout)
}

func TestPublishFailsWhenConnectionDrops(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Drop)
	defer server.Close()

	p := newPublisher(t)
	out := p.Publish(context.Background(), server.URL(), testutil.SignedNote(t, "going down"))
	assert.False(t, out.Accepted)
	require.Error(t, out.Err)
}

func TestPublishDialFailure(t *testing.T) {
	p := newPublisher(t)
	out := p.Publish(context.Background(), "ws://127.0.0.1:1", testutil.SignedNote(t, "nobody home"))
	assert.False(t, out.Accepted)
	require.Error(t, out.Err)
}

func TestPublishReusesConnection(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()

	p := newPublisher(t)
	ctx := context.Background()

	out := p.Publish(ctx, server.URL(), testutil.SignedNote(t, "one"))
	require.True(t, out.Accepted)
	out = p.Publish(ctx, server.URL(), testutil.SignedNote(t, "two"))
	require.True(t, out.Accepted)

	assert.Equal(t, 1, server.ConnCount(), "second publish must reuse the open connection")
}

func TestDirectCountsAcceptances(t *testing.T) {
	outcomes := map[string]relay.Outcome{
		"ws://a": {Accepted: true},
		"ws://b": {Err: errors.New("connection refused")},
		"ws://c": {Accepted: true},
	}
	mock := &relay.MockClient{
		PublishFunc: func(_ context.Context, relayURL string, _ nostr.Event) relay.Outcome {
			out := outcomes[relayURL]
			out.RelayURL = relayURL
			return out
		},
	}

	count, all := relay.Direct(context.Background(), mock, []string{"ws://a", "ws://b", "ws://c"}, nostr.Event{})
	assert.Equal(t, 2, count)
	assert.Len(t, all, 3)
}

func TestDirectEmptyRelaySet(t *testing.T) {
	count, all := relay.Direct(context.Background(), relay.NewMockClient(), nil, nostr.Event{})
	assert.Zero(t, count)
	assert.Empty(t, all)
}

func TestHopStopsOnFirstSuccess(t *testing.T) {
	var attempts []string
	mock := &relay.MockClient{
		PublishFunc: func(_ context.Context, relayURL string, _ nostr.Event) relay.Outcome {
			attempts = append(attempts, relayURL)
			return relay.Outcome{RelayURL: relayURL, Accepted: relayURL == "ws://b"}
		},
	}

	// Deterministic choice: always pick index 0.
	ok, outcomes := relay.Hop(context.Background(), mock, []string{"ws://a", "ws://b", "ws://c"}, nostr.Event{}, func(int) int { return 0 })

	assert.True(t, ok)
	assert.Equal(t, []string{"ws://a", "ws://b"}, attempts)
	assert.Len(t, outcomes, 2)
}

func TestHopExhaustsAllCandidatesWithoutRepeats(t *testing.T) {
	var attempts []string
	mock := &relay.MockClient{
		PublishFunc: func(_ context.Context, relayURL string, _ nostr.Event) relay.Outcome {
			attempts = append(attempts, relayURL)
			return relay.Outcome{RelayURL: relayURL, Err: errors.New("down")}
		},
	}

	ok, outcomes := relay.Hop(context.Background(), mock, []string{"ws://a", "ws://b", "ws://c"}, nostr.Event{}, nil)

	assert.False(t, ok)
	assert.Len(t, outcomes, 3)
	seen := make(map[string]int)
	for _, url := range attempts {
		seen[url]++
	}
	assert.Len(t, seen, 3, "every candidate tried")
	for url, n := range seen {
		assert.Equal(t, 1, n, "candidate %s retried", url)
	}
}

func TestSubscribeReceivesScriptedEvents(t *testing.T) {
	server := testutil.NewFakeRelay(testutil.Accept)
	defer server.Close()

	want := testutil.SignedNote(t, "from the feed")
	server.ServeEvents(want)

	p := newPublisher(t)
	sub, err := p.Subscribe(context.Background(), server.URL(), nostr.Filters{{Kinds: []int{nostr.KindTextNote}, Limit: 100}})
	require.NoError(t, err)
	defer sub.Close()

	select {
	case got := <-sub.Events:
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, "from the feed", got.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}
