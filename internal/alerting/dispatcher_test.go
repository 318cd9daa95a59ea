package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeSender struct {
	errs []error
	sent []string
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	call := len(f.sent)
	f.sent = append(f.sent, text)
	if call < len(f.errs) {
		return f.errs[call]
	}
	return nil
}

type recordingSleep struct {
	slept []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func newTestDispatcher(sender Sender, opts DispatcherOptions) (*Dispatcher, *recordingSleep) {
	d := NewDispatcher(sender, opts, testLogger())
	rec := &recordingSleep{}
	d.sleep = rec.sleep
	d.limiter.sleep = rec.sleep
	return d, rec
}

func TestDispatchRetriesOnceAfterRateLimit(t *testing.T) {
	sender := &fakeSender{errs: []error{&RateLimitError{RetryAfter: 2 * time.Second}}}
	d, rec := newTestDispatcher(sender, DispatcherOptions{RetryPadding: time.Second})

	if err := d.Dispatch(context.Background(), "alert"); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sender.sent))
	}
	if len(rec.slept) == 0 || rec.slept[0] != 3*time.Second {
		t.Fatalf("expected retry_after + padding backoff, got %v", rec.slept)
	}
}

func TestDispatchSurfacesSecondRateLimit(t *testing.T) {
	sender := &fakeSender{errs: []error{
		&RateLimitError{RetryAfter: time.Second},
		&RateLimitError{RetryAfter: time.Second},
		&RateLimitError{RetryAfter: time.Second},
	}}
	d, _ := newTestDispatcher(sender, DispatcherOptions{})

	err := d.Dispatch(context.Background(), "alert")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second rate limit should be surfaced, got %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("retry must be bounded to one, got %d attempts", len(sender.sent))
	}
}

func TestDispatchDoesNotRetryOtherErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("boom")}}
	d, _ := newTestDispatcher(sender, DispatcherOptions{})

	if err := d.Dispatch(context.Background(), "alert"); err == nil {
		t.Fatal("expected error")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("non rate-limit errors are not retried, got %d attempts", len(sender.sent))
	}
}

func TestDispatchChunksLongMessages(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(sender, DispatcherOptions{MaxMessageLen: 20})

	text := strings.Repeat("line-of-text\n", 5)
	if err := d.Dispatch(context.Background(), text); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.sent) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(sender.sent))
	}
	for _, chunk := range sender.sent {
		if len(chunk) > 20 {
			t.Fatalf("chunk exceeds limit: %q", chunk)
		}
	}
}

func TestDispatchEmptyIsNoop(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(sender, DispatcherOptions{})
	if err := d.Dispatch(context.Background(), "   "); err != nil || len(sender.sent) != 0 {
		t.Fatalf("empty text should not be sent: %v %d", err, len(sender.sent))
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1100 * time.Millisecond)
	l.now = func() time.Time { return now }
	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if len(slept) != 2 || slept[0] != 1100*time.Millisecond || slept[1] != 1100*time.Millisecond {
		t.Fatalf("unexpected waits %v", slept)
	}

	now = now.Add(5 * time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(slept) != 2 {
		t.Fatal("no wait expected once the interval has elapsed")
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	l := NewRateLimiter(time.Hour)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChunkHardCutsLongLine(t *testing.T) {
	chunks := Chunk(strings.Repeat("x", 25), 10)
	if len(chunks) != 3 || chunks[0] != strings.Repeat("x", 10) || chunks[2] != "xxxxx" {
		t.Fatalf("unexpected chunks %q", chunks)
	}
}
