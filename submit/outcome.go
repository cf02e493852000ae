package submit

import (
	"fmt"
	"time"
)

// Kind discriminates the terminal outcome of a submission.
type Kind string

const (
	// KindSuccess: the full relay set accepted the content.
	KindSuccess Kind = "success"

	// KindPartial: at least one but not all relays accepted. A degraded
	// success, not an error.
	KindPartial Kind = "partial"

	// KindCooldown: the global inter-submission cooldown has not elapsed.
	KindCooldown Kind = "cooldown"

	// KindEmptyInput: the note text was empty after trimming.
	KindEmptyInput Kind = "empty_input"

	// KindDuplicate: identical content was submitted within the window.
	KindDuplicate Kind = "duplicate"

	// KindRateLimited: a rate-limit target is exhausted.
	KindRateLimited Kind = "rate_limited"

	// KindProfileFailed: no relay accepted the throwaway profile; the
	// content was never sent.
	KindProfileFailed Kind = "profile_publish_failed"

	// KindContentFailed: no relay accepted the content. Local counters
	// stay consumed.
	KindContentFailed Kind = "content_publish_failed"

	// KindError: an internal failure (entropy, storage) aborted the
	// action.
	KindError Kind = "error"
)

// Outcome is the single terminal report of a submission action.
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// EventID and EventLink identify the published note on success.
	EventID   string `json:"event_id,omitempty"`
	EventLink string `json:"event_link,omitempty"`

	// Accepted and TotalRelays describe propagation breadth.
	Accepted    int `json:"accepted,omitempty"`
	TotalRelays int `json:"total_relays,omitempty"`

	// RetryAfter is set on cooldown outcomes.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// Target is the exhausted rate-limit key on rate-limited outcomes.
	Target string `json:"target,omitempty"`

	// Err carries the underlying error on internal failures.
	Err error `json:"-"`
}

// OK reports whether the action counts as delivered.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess || o.Kind == KindPartial
}

func cooldownOutcome(wait time.Duration) Outcome {
	secs := int(wait / time.Second)
	if secs < 1 {
		secs = 1
	}
	return Outcome{
		Kind:       KindCooldown,
		Message:    fmt.Sprintf("Please wait %d second(s) before submitting again.", secs),
		RetryAfter: wait,
	}
}

func successOutcome(eventID, link string, accepted, total int, hop bool) Outcome {
	kind := KindSuccess
	msg := fmt.Sprintf("Anon note sent successfully via %d/%d relays!", accepted, total)
	if hop {
		msg = "Anon note sent successfully via relay hop!"
	} else if accepted < total {
		kind = KindPartial
	}
	return Outcome{
		Kind:        kind,
		Message:     msg,
		EventID:     eventID,
		EventLink:   link,
		Accepted:    accepted,
		TotalRelays: total,
	}
}

func errorOutcome(err error) Outcome {
	return Outcome{
		Kind:    KindError,
		Message: "An unexpected error occurred. Please try again.",
		Err:     err,
	}
}
