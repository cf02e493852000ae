package submit

import (
	"context"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Spl0itable/Anonostr/annotate"
	"github.com/Spl0itable/Anonostr/guard"
	"github.com/Spl0itable/Anonostr/identity"
	"github.com/Spl0itable/Anonostr/protocol"
	"github.com/Spl0itable/Anonostr/relay"
	"github.com/Spl0itable/Anonostr/session"
)

// Request describes one user action: a top-level note, or a reply when
// ParentID is set.
type Request struct {
	Content string `json:"content"`

	// ParentID is the explicit parent event id of a reply.
	ParentID string `json:"parent_id,omitempty"`

	// ReplyChain links this note to the session's previous one.
	ReplyChain bool `json:"reply_chain"`

	// RelayHop selects random single-relay fallback delivery instead of
	// full fan-out.
	RelayHop bool `json:"relay_hop"`

	// UseTorRelays selects the onion relay pool.
	UseTorRelays bool `json:"use_tor_relays"`
}

// Pipeline owns every collaborator of a publish action. It replaces the
// original client's ambient module state with one explicit object whose
// lifecycle is tied to a session.
type Pipeline struct {
	relays    protocol.RelaySet
	client    relay.Client
	guard     *guard.Guard
	store     *session.Store
	thread    *session.Thread
	minter    *identity.Minter
	annotator *annotate.Annotator
	now       func() nostr.Timestamp
	log       zerolog.Logger

	// onPublished, when set, is invoked with each published event id
	// after a successful submission (reply-subscription renewal).
	onPublished func(eventID string)
}

// Config assembles a Pipeline.
type Config struct {
	Relays protocol.RelaySet
	Client relay.Client
	Guard  *guard.Guard
	Store  *session.Store
	Thread *session.Thread
	Minter *identity.Minter

	// Now overrides event timestamping in tests.
	Now func() nostr.Timestamp

	// OnPublished is called with the event id after each success.
	OnPublished func(eventID string)

	Logger zerolog.Logger
}

// NewPipeline wires a Pipeline from its collaborators.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Minter == nil {
		cfg.Minter = identity.NewMinter(nil)
	}
	if cfg.Thread == nil {
		cfg.Thread = session.NewThread()
	}
	if cfg.Now == nil {
		cfg.Now = nostr.Now
	}
	return &Pipeline{
		relays:      cfg.Relays,
		client:      cfg.Client,
		guard:       cfg.Guard,
		store:       cfg.Store,
		thread:      cfg.Thread,
		minter:      cfg.Minter,
		annotator:   annotate.New(cfg.Logger),
		now:         cfg.Now,
		log:         cfg.Logger,
		onPublished: cfg.OnPublished,
	}
}

// Thread exposes the pipeline's thread state.
func (p *Pipeline) Thread() *session.Thread {
	return p.thread
}

// Submit runs one publish action to its terminal outcome.
//
// Quota policy: rate-limit and dedup counters are consumed once the
// pre-flight passes and are not rolled back if content propagation then
// fails. This deliberately errs against retry spam at the cost of the
// occasional wasted slot.
func (p *Pipeline) Submit(ctx context.Context, req Request) Outcome {
	content := strings.TrimSpace(req.Content)

	// Cooldown gate: one global timestamp across all submission kinds.
	wait, allowed, err := p.guard.CheckCooldown()
	if err != nil {
		return errorOutcome(err)
	}
	if !allowed {
		return cooldownOutcome(wait)
	}

	if content == "" {
		return Outcome{Kind: KindEmptyInput, Message: "Please enter a note."}
	}

	// Mint a single-use identity for this action only.
	id, err := p.minter.Mint()
	if err != nil {
		return errorOutcome(fmt.Errorf("mint identity: %w", err))
	}

	relays := p.relays.Select(req.UseTorRelays)
	if len(relays) == 0 {
		return errorOutcome(relay.ErrNoRelays)
	}

	// The profile must land on at least one relay before the content is
	// sent under the same key.
	if outcome, ok := p.publishProfile(ctx, id, relays, req.RelayHop); !ok {
		return outcome
	}

	// Dedup is checked read-only here; the record is written only after
	// a confirmed publish.
	allowed, err = p.guard.CheckDuplicate(content)
	if err != nil {
		return errorOutcome(err)
	}
	if !allowed {
		return Outcome{Kind: KindDuplicate, Message: "Duplicate submission detected. Please modify your note before resubmitting."}
	}

	rootID, lastID := p.thread.Snapshot()
	res := p.annotator.Annotate(content, annotate.Options{
		ParentID:     req.ParentID,
		ChainEnabled: req.ReplyChain,
		RootEventID:  rootID,
		LastEventID:  lastID,
	})

	// All-or-nothing pre-flight: nothing is consumed unless every target
	// passes.
	blocked, err := p.guard.ReserveTargets(res.TargetKeys)
	if err != nil {
		return errorOutcome(err)
	}
	if blocked != "" {
		return Outcome{
			Kind:    KindRateLimited,
			Message: "You have reached the limit of 10 submissions per hour to this note, pubkey, or hashtag. Please try again later.",
			Target:  blocked,
		}
	}

	evt := protocol.NewNoteEvent(id.PublicKey, res.Text, res.Tags, p.now())
	if err := protocol.Finalize(&evt, id.SecretKey); err != nil {
		return errorOutcome(err)
	}

	accepted, delivered := p.deliver(ctx, relays, evt, req.RelayHop)
	if !delivered {
		p.log.Warn().Str("event", evt.ID).Int("relays", len(relays)).Msg("no relay accepted content")
		msg := "No relays available. Please try again later."
		if req.RelayHop {
			msg = "Relay hopping failed for all relays. Please try again later."
		}
		return Outcome{
			Kind:        KindContentFailed,
			Message:     msg,
			TotalRelays: len(relays),
		}
	}

	p.settle(evt.ID, res.RootEventID, content)
	return successOutcome(evt.ID, protocol.EventLink(evt.ID), accepted, len(relays), req.RelayHop)
}

// publishProfile mints and propagates the throwaway kind-0 profile.
func (p *Pipeline) publishProfile(ctx context.Context, id identity.Identity, relays []string, hop bool) (Outcome, bool) {
	profile := p.minter.MintProfile(id.PublicKey)
	evt, err := protocol.NewProfileEvent(id.PublicKey, profile, p.now())
	if err != nil {
		return errorOutcome(err), false
	}
	if err := protocol.Finalize(&evt, id.SecretKey); err != nil {
		return errorOutcome(err), false
	}

	accepted, ok := p.deliver(ctx, relays, evt, hop)
	if !ok {
		p.log.Warn().Str("pubkey", id.PublicKey).Msg("profile propagation failed on all relays")
		return Outcome{
			Kind:        KindProfileFailed,
			Message:     "Failed to send profile data. Please try again.",
			TotalRelays: len(relays),
		}, false
	}
	p.log.Debug().Str("pubkey", id.PublicKey).Int("accepted", accepted).Msg("profile propagated")
	return Outcome{}, true
}

// deliver publishes via the selected strategy and reports acceptance.
func (p *Pipeline) deliver(ctx context.Context, relays []string, evt nostr.Event, hop bool) (int, bool) {
	if hop {
		ok, _ := p.client.PublishHop(ctx, relays, evt)
		if !ok {
			return 0, false
		}
		return 1, true
	}
	accepted, _ := p.client.PublishDirect(ctx, relays, evt)
	return accepted, accepted > 0
}

// settle applies the post-success effects: thread advancement, the saved
// event-id list, the dedup record, and the cooldown timestamp. Failures
// here are logged but do not demote the outcome; the note is already out.
func (p *Pipeline) settle(eventID, newRootID, content string) {
	if newRootID != "" {
		p.thread.SetRoot(newRootID)
	}
	p.thread.Advance(eventID)

	if err := p.store.SaveEventID(eventID); err != nil {
		p.log.Error().Err(err).Msg("failed to save event id")
	}
	if err := p.guard.RecordSubmission(content); err != nil {
		p.log.Error().Err(err).Msg("failed to record submission hash")
	}
	if err := p.guard.TouchCooldown(); err != nil {
		p.log.Error().Err(err).Msg("failed to update last-submit time")
	}
	if p.onPublished != nil {
		p.onPublished(eventID)
	}
}
