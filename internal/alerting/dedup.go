package alerting

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"odds-value-alerts/internal/signals"
)

// Deduplicator suppresses repeats of the same alert within a cooldown window.
type Deduplicator interface {
	// ShouldAlert reports whether key has not been alerted within the window and
	// claims it if so.
	ShouldAlert(ctx context.Context, key string) (bool, error)
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDeduplicator keeps cooldown keys in Redis so restarts and replicas share them.
type RedisDeduplicator struct {
	client setNXer
	prefix string
	ttl    time.Duration
}

// NewRedisDeduplicator creates a Redis backed deduplicator.
func NewRedisDeduplicator(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduplicator {
	return newRedisDeduplicator(client, prefix, ttl)
}

func newRedisDeduplicator(client setNXer, prefix string, ttl time.Duration) *RedisDeduplicator {
	if prefix == "" {
		prefix = "oddswatcher:alert"
	}
	return &RedisDeduplicator{client: client, prefix: prefix, ttl: ttl}
}

// ShouldAlert claims key with SET NX and the cooldown TTL.
func (d *RedisDeduplicator) ShouldAlert(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim dedup key: %w", err)
	}
	return ok, nil
}

// MemoryDeduplicator is the in-process fallback when Redis is not configured.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDeduplicator creates an in-memory deduplicator.
func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// ShouldAlert reports whether key is outside its cooldown.
func (d *MemoryDeduplicator) ShouldAlert(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, until := range d.seen {
		if !now.Before(until) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}

// MovementKey identifies a sharp move by match, outcome, bookmaker and new price, so
// the same line is not re-alerted while a further move still is.
func MovementKey(mv signals.LineMovement) string {
	return hashKey("move", mv.MatchID, mv.Outcome, mv.Bookmaker, price(mv.New))
}

// DisagreementKey identifies an outlier quote.
func DisagreementKey(rec signals.Disagreement) string {
	return hashKey("disagree", rec.MatchID, rec.Outcome, rec.Bookmaker, price(rec.Price))
}

// ValueKey identifies a value signal by its best book and grade.
func ValueKey(fv signals.FairValue) string {
	best, _ := fv.Best()
	return hashKey("value", fv.MatchID, fv.Outcome, best.Bookmaker, string(best.Signal), price(best.Odds))
}

func hashKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%x", kind, h.Sum(nil)[:8])
}

// FilterDigest drops records still in cooldown. A nil deduplicator keeps everything.
// A dedup backend error keeps the record so alerts are not lost.
func FilterDigest(ctx context.Context, dedup Deduplicator, d Digest) (Digest, error) {
	if dedup == nil {
		return d, nil
	}
	var firstErr error
	keep := func(key string) bool {
		ok, err := dedup.ShouldAlert(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		return ok
	}

	out := Digest{At: d.At}
	for _, mv := range d.SharpMoves {
		if keep(MovementKey(mv)) {
			out.SharpMoves = append(out.SharpMoves, mv)
		}
	}
	for _, rec := range d.Disagreements {
		if keep(DisagreementKey(rec)) {
			out.Disagreements = append(out.Disagreements, rec)
		}
	}
	for _, fv := range d.Value {
		if keep(ValueKey(fv)) {
			out.Value = append(out.Value, fv)
		}
	}
	return out, firstErr
}

var (
	_ Deduplicator = (*RedisDeduplicator)(nil)
	_ Deduplicator = (*MemoryDeduplicator)(nil)
)
