package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Persisted key names. These are load-bearing: they match the original
// client's local-storage namespace so state carries across versions.
const (
	keyLastSubmit = "lastSubmitTime"
	keyDedup      = "submittedContentHashes"
	keyRateLimits = "targetSubmissions"
)

// Policy defaults.
const (
	// DefaultWindow is the trailing window for dedup records and
	// per-target counters.
	DefaultWindow = time.Hour

	// DefaultMaxPerTarget is the number of submissions allowed per target
	// key inside one window.
	DefaultMaxPerTarget = 10

	// DefaultCooldown is the mandatory gap between any two successful
	// submissions, regardless of target.
	DefaultCooldown = 30 * time.Second
)

// submissionRecord is one persisted dedup entry.
type submissionRecord struct {
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// Config tunes a Guard. Zero values select the defaults above.
type Config struct {
	Window       time.Duration
	MaxPerTarget int
	Cooldown     time.Duration

	// Now is the clock; tests replace it to advance simulated time.
	Now func() time.Time

	Logger zerolog.Logger
}

// Guard evaluates and records the anti-abuse state for submissions. All
// methods are safe for concurrent use; the internal mutex closes the
// read-modify-write race between interleaved submission attempts.
type Guard struct {
	store        Store
	window       time.Duration
	maxPerTarget int
	cooldown     time.Duration
	now          func() time.Time
	log          zerolog.Logger

	mu sync.Mutex
}

// New creates a Guard over the given store.
func New(store Store, cfg Config) *Guard {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxPerTarget <= 0 {
		cfg.MaxPerTarget = DefaultMaxPerTarget
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Guard{
		store:        store,
		window:       cfg.Window,
		maxPerTarget: cfg.MaxPerTarget,
		cooldown:     cfg.Cooldown,
		now:          cfg.Now,
		log:          cfg.Logger,
	}
}

// ContentHash computes the fast non-cryptographic hash used for duplicate
// detection. Collisions only cause a spurious duplicate warning, never a
// correctness issue.
func ContentHash(content string) string {
	h := fnv.New64a()
	h.Write([]byte(content))
	return strconv.FormatUint(h.Sum64(), 10)
}

// CheckCooldown reports whether the global cooldown has elapsed since the
// last successful submission. When blocked it returns the remaining wait.
func (g *Guard) CheckCooldown() (time.Duration, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := g.store.Get(keyLastSubmit)
	if errors.Is(err, ErrNotFound) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load last submit time: %w", err)
	}
	last, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// A corrupt value must not brick submissions.
		g.log.Warn().Str("value", string(raw)).Msg("discarding corrupt last-submit timestamp")
		return 0, true, nil
	}

	elapsed := g.now().Unix() - last
	if wait := int64(g.cooldown/time.Second) - elapsed; wait > 0 {
		return time.Duration(wait) * time.Second, false, nil
	}
	return 0, true, nil
}

// TouchCooldown records now as the last successful submission time.
func (g *Guard) TouchCooldown() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := strconv.FormatInt(g.now().Unix(), 10)
	if err := g.store.Set(keyLastSubmit, []byte(ts)); err != nil {
		return fmt.Errorf("store last submit time: %w", err)
	}
	return nil
}

// CheckDuplicate reports whether content is allowed (true) or a duplicate
// of something submitted inside the window (false). It never mutates
// state; recording happens via RecordSubmission after a confirmed publish.
func (g *Guard) CheckDuplicate(content string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	records, err := g.loadDedup()
	if err != nil {
		return false, err
	}
	hash := ContentHash(content)
	cutoff := g.now().Add(-g.window).Unix()
	for _, rec := range records {
		if rec.Timestamp > cutoff && rec.Hash == hash {
			return false, nil
		}
	}
	return true, nil
}

// RecordSubmission appends a dedup record for content, pruning entries
// that have aged out of the window.
func (g *Guard) RecordSubmission(content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	records, err := g.loadDedup()
	if err != nil {
		return err
	}
	cutoff := g.now().Add(-g.window).Unix()
	kept := records[:0]
	for _, rec := range records {
		if rec.Timestamp > cutoff {
			kept = append(kept, rec)
		}
	}
	kept = append(kept, submissionRecord{Hash: ContentHash(content), Timestamp: g.now().Unix()})

	return g.storeJSON(keyDedup, kept)
}

// ReserveTargets runs the all-or-nothing rate-limit pre-flight: every
// target key is evaluated read-only first, and increments are committed
// only if all of them pass. When a target is exhausted its key is returned
// and nothing is consumed. Empty keys are always allowed and never consume
// quota.
func (g *Guard) ReserveTargets(targetKeys []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	windows, err := g.loadWindows()
	if err != nil {
		return "", err
	}

	now := g.now().Unix()
	cutoff := g.now().Add(-g.window).Unix()

	// Pass 1: prune and check without touching stored counts. A key that
	// appears several times in one submission claims one slot per
	// occurrence, so in-flight occurrences count toward the limit too.
	inflight := make(map[string]int)
	for _, key := range targetKeys {
		if key == "" {
			continue
		}
		kept := prune(windows[key], cutoff)
		windows[key] = kept
		if len(kept)+inflight[key] >= g.maxPerTarget {
			g.log.Debug().Str("target", key).Int("count", len(kept)).Msg("target rate limit exhausted")
			return key, nil
		}
		inflight[key]++
	}

	// Pass 2: all clear, consume one slot per key.
	for _, key := range targetKeys {
		if key == "" {
			continue
		}
		windows[key] = append(windows[key], now)
	}

	if err := g.storeJSON(keyRateLimits, windows); err != nil {
		return "", err
	}
	return "", nil
}

func prune(timestamps []int64, cutoff int64) []int64 {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}

func (g *Guard) loadDedup() ([]submissionRecord, error) {
	var records []submissionRecord
	if err := g.loadJSON(keyDedup, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (g *Guard) loadWindows() (map[string][]int64, error) {
	windows := make(map[string][]int64)
	if err := g.loadJSON(keyRateLimits, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

func (g *Guard) loadJSON(key string, dst any) error {
	raw, err := g.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// Corrupt state resets rather than wedging every submission.
		g.log.Warn().Str("key", key).Err(err).Msg("resetting corrupt guard state")
		return nil
	}
	return nil
}

func (g *Guard) storeJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := g.store.Set(key, raw); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	return nil
}
