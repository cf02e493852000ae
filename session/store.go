package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Spl0itable/Anonostr/guard"
)

// Persisted key names, shared with the original client's storage namespace.
const (
	keyEventIDs  = "submittedEventIds"
	keyFollowing = "followingPubkeys"
)

// Store persists the session's durable lists: published event ids and the
// following set.
type Store struct {
	kv  guard.Store
	log zerolog.Logger

	mu sync.Mutex
}

// NewStore creates a Store over the given key-value backend.
func NewStore(kv guard.Store, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// SaveEventID appends a published event id. The list is append-only and
// never pruned; it grows without bound, a known limitation inherited from
// the original design.
func (s *Store) SaveEventID(eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.loadList(keyEventIDs)
	if err != nil {
		return err
	}
	ids = append(ids, eventID)
	return s.storeList(keyEventIDs, ids)
}

// EventIDs returns every event id this client has published, in order.
func (s *Store) EventIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadList(keyEventIDs)
}

// Following returns the followed pubkeys.
func (s *Store) Following() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadList(keyFollowing)
}

// SetFollowing replaces the followed-pubkey list.
func (s *Store) SetFollowing(pubkeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeList(keyFollowing, pubkeys)
}

// ToggleFollow adds pubkey to the following list if absent, removes it if
// present, and reports whether the pubkey is followed afterwards.
func (s *Store) ToggleFollow(pubkey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	following, err := s.loadList(keyFollowing)
	if err != nil {
		return false, err
	}
	kept := following[:0]
	removed := false
	for _, pk := range following {
		if pk == pubkey {
			removed = true
			continue
		}
		kept = append(kept, pk)
	}
	if !removed {
		kept = append(kept, pubkey)
	}
	if err := s.storeList(keyFollowing, kept); err != nil {
		return false, err
	}
	s.log.Debug().Str("pubkey", pubkey).Bool("following", !removed).Msg("toggled follow")
	return !removed, nil
}

func (s *Store) loadList(key string) ([]string, error) {
	raw, err := s.kv.Get(key)
	if errors.Is(err, guard.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("resetting corrupt session list")
		return nil, nil
	}
	return list, nil
}

func (s *Store) storeList(key string, list []string) error {
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := s.kv.Set(key, raw); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	return nil
}
