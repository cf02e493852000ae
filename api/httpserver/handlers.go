package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Spl0itable/Anonostr/feed"
	"github.com/Spl0itable/Anonostr/protocol"
	"github.com/Spl0itable/Anonostr/submit"
)

// Submitter runs the anonymous publish pipeline for one action.
type Submitter interface {
	Submit(ctx context.Context, req submit.Request) submit.Outcome
}

// FeedReader streams notes from the relay pool and resolves author
// profiles from the cache.
type FeedReader interface {
	GlobalTimeline(ctx context.Context, out chan<- nostr.Event) error
	FollowingTimeline(ctx context.Context, out chan<- nostr.Event) error
	Search(ctx context.Context, query string, out chan<- nostr.Event) error
	Profile(pubkey string) feed.Profile
}

// FollowStore persists the followed-author list.
type FollowStore interface {
	Following() ([]string, error)
	SetFollowing(pubkeys []string) error
	ToggleFollow(pubkey string) (bool, error)
}

// DefaultCollectWindow is how long feed endpoints gather events from the
// relay pool before answering.
const DefaultCollectWindow = 2 * time.Second

// Handler serves the publishing and feed API.
type Handler struct {
	pipeline Submitter
	feed     FeedReader
	follows  FollowStore
	log      zerolog.Logger

	// CollectWindow bounds how long feed requests wait for relay events.
	CollectWindow time.Duration
}

// NewHandler creates the API handler over the given pipeline and feed.
func NewHandler(pipeline Submitter, feedReader FeedReader, follows FollowStore, log zerolog.Logger) *Handler {
	return &Handler{
		pipeline:      pipeline,
		feed:          feedReader,
		follows:       follows,
		log:           log,
		CollectWindow: DefaultCollectWindow,
	}
}

// RegisterRoutes registers the API routes with the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/submit", h.handleSubmit)
	r.Post("/api/reply", h.handleReply)
	r.Get("/api/feed", h.handleFeed)
	r.Get("/api/search", h.handleSearch)
	r.Get("/api/following", h.handleFollowing)
	r.Put("/api/following", h.handleSetFollowing)
	r.Post("/api/following/{pubkey}", h.handleToggleFollow)
	r.Get("/api/profile/{pubkey}", h.handleProfile)
}

// Note is one rendered feed entry.
type Note struct {
	ID        string       `json:"id"`
	Pubkey    string       `json:"pubkey"`
	Kind      int          `json:"kind"`
	CreatedAt int64        `json:"created_at"`
	Content   string       `json:"content"`
	Link      string       `json:"link"`
	Author    feed.Profile `json:"author"`
}

// FeedResponse carries a collected feed snapshot.
type FeedResponse struct {
	Notes []Note `json:"notes"`
}

// FollowingResponse lists the followed pubkeys.
type FollowingResponse struct {
	Pubkeys []string `json:"pubkeys"`
}

// ToggleResponse reports the follow state after a toggle.
type ToggleResponse struct {
	Pubkey    string `json:"pubkey"`
	Following bool   `json:"following"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	// The submit endpoint always starts a fresh note.
	req.ParentID = ""

	h.respondOutcome(w, h.pipeline.Submit(r.Context(), req))
}

func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ParentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "parent_id is required"})
		return
	}

	h.respondOutcome(w, h.pipeline.Submit(r.Context(), req))
}

// respondOutcome maps each terminal outcome kind onto an HTTP status. The
// outcome body is returned verbatim so callers see the same report the
// pipeline produced.
func (h *Handler) respondOutcome(w http.ResponseWriter, out submit.Outcome) {
	status := http.StatusOK
	switch out.Kind {
	case submit.KindSuccess, submit.KindPartial:
		status = http.StatusOK
	case submit.KindEmptyInput:
		status = http.StatusBadRequest
	case submit.KindDuplicate:
		status = http.StatusConflict
	case submit.KindCooldown, submit.KindRateLimited:
		status = http.StatusTooManyRequests
	case submit.KindProfileFailed, submit.KindContentFailed:
		status = http.StatusBadGateway
	case submit.KindError:
		status = http.StatusInternalServerError
	}

	if out.Err != nil {
		h.log.Error().Err(out.Err).Str("kind", string(out.Kind)).Msg("submission failed")
	}
	writeJSON(w, status, out)
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	source := h.feed.GlobalTimeline
	if scope == "following" {
		source = h.feed.FollowingTimeline
	}

	notes, err := h.collect(r.Context(), source)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Notes: notes})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q is required"})
		return
	}

	notes, err := h.collect(r.Context(), func(ctx context.Context, out chan<- nostr.Event) error {
		return h.feed.Search(ctx, query, out)
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Notes: notes})
}

// collect opens a feed stream, gathers events for the collect window and
// renders them newest first.
func (h *Handler) collect(ctx context.Context, source func(context.Context, chan<- nostr.Event) error) ([]Note, error) {
	window := h.CollectWindow
	if window <= 0 {
		window = DefaultCollectWindow
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	out := make(chan nostr.Event, 256)
	if err := source(ctx, out); err != nil {
		return nil, err
	}

	notes := []Note{}
	for {
		select {
		case <-ctx.Done():
			sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt > notes[j].CreatedAt })
			return notes, nil
		case evt := <-out:
			notes = append(notes, Note{
				ID:        evt.ID,
				Pubkey:    evt.PubKey,
				Kind:      evt.Kind,
				CreatedAt: int64(evt.CreatedAt),
				Content:   evt.Content,
				Link:      protocol.EventLink(evt.ID),
				Author:    h.feed.Profile(evt.PubKey),
			})
		}
	}
}

func (h *Handler) handleFollowing(w http.ResponseWriter, r *http.Request) {
	pubkeys, err := h.follows.Following()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load following list"})
		return
	}
	if pubkeys == nil {
		pubkeys = []string{}
	}
	writeJSON(w, http.StatusOK, FollowingResponse{Pubkeys: pubkeys})
}

func (h *Handler) handleSetFollowing(w http.ResponseWriter, r *http.Request) {
	var req FollowingResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.follows.SetFollowing(req.Pubkeys); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store following list"})
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	pubkey := chi.URLParam(r, "pubkey")
	if !nostr.IsValid32ByteHex(pubkey) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pubkey"})
		return
	}

	following, err := h.follows.ToggleFollow(pubkey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to toggle follow"})
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Pubkey: pubkey, Following: following})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	pubkey := chi.URLParam(r, "pubkey")
	if !nostr.IsValid32ByteHex(pubkey) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pubkey"})
		return
	}
	writeJSON(w, http.StatusOK, h.feed.Profile(pubkey))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
