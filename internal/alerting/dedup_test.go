package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestRedisDeduplicator(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	d := newRedisDeduplicator(fake, "test", 30*time.Minute)

	ok, err := d.ShouldAlert(context.Background(), "k1")
	if err != nil || !ok {
		t.Fatalf("first claim should pass: %v %v", ok, err)
	}
	if ttl := fake.keys["test:k1"]; ttl != 30*time.Minute {
		t.Fatalf("key stored with ttl %s", ttl)
	}
	if ok, _ := d.ShouldAlert(context.Background(), "k1"); ok {
		t.Fatal("repeat within cooldown should be suppressed")
	}

	fake.err = errors.New("connection refused")
	if _, err := d.ShouldAlert(context.Background(), "k2"); err == nil {
		t.Fatal("backend error should be returned")
	}
}

func TestMemoryDeduplicatorExpires(t *testing.T) {
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduplicator(10 * time.Minute)
	d.now = func() time.Time { return now }

	if ok, _ := d.ShouldAlert(context.Background(), "k"); !ok {
		t.Fatal("first alert should pass")
	}
	if ok, _ := d.ShouldAlert(context.Background(), "k"); ok {
		t.Fatal("second alert should be suppressed")
	}
	now = now.Add(11 * time.Minute)
	if ok, _ := d.ShouldAlert(context.Background(), "k"); !ok {
		t.Fatal("alert should pass again after cooldown")
	}
}

func TestFilterDigest(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	first, err := FilterDigest(context.Background(), d, sampleDigest())
	if err != nil {
		t.Fatalf("FilterDigest: %v", err)
	}
	if len(first.SharpMoves) != 1 || len(first.Disagreements) != 1 || len(first.Value) != 1 {
		t.Fatalf("first pass should keep everything: %+v", first)
	}

	second, _ := FilterDigest(context.Background(), d, sampleDigest())
	if !second.Empty(true) {
		t.Fatalf("second pass should drop repeats: %+v", second)
	}

	moved := sampleDigest()
	moved.SharpMoves[0].New = 2.20
	third, _ := FilterDigest(context.Background(), d, moved)
	if len(third.SharpMoves) != 1 {
		t.Fatal("a further move to a new price should alert again")
	}
}

func TestFilterDigestKeepsOnBackendError(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}, err: errors.New("down")}
	out, err := FilterDigest(context.Background(), newRedisDeduplicator(fake, "", time.Hour), sampleDigest())
	if err == nil {
		t.Fatal("backend error should be reported")
	}
	if len(out.SharpMoves) != 1 {
		t.Fatal("records should be kept when dedup is unavailable")
	}
}
