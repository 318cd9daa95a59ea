package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	defaultMaxMessageLen = 4000
	maxRateLimitRetries  = 1
)

// DispatcherOptions tune delivery.
type DispatcherOptions struct {
	MinInterval   time.Duration
	RetryPadding  time.Duration
	MaxMessageLen int
}

// Dispatcher delivers alert text through a Sender with spacing and one bounded retry
// after a provider rate limit.
type Dispatcher struct {
	sender       Sender
	limiter      *RateLimiter
	retryPadding time.Duration
	maxLen       int
	sleep        func(ctx context.Context, d time.Duration) error
	logger       zerolog.Logger
}

// NewDispatcher wires a sender with its own rate limiter.
func NewDispatcher(sender Sender, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	maxLen := opts.MaxMessageLen
	if maxLen <= 0 {
		maxLen = defaultMaxMessageLen
	}
	return &Dispatcher{
		sender:       sender,
		limiter:      NewRateLimiter(opts.MinInterval),
		retryPadding: opts.RetryPadding,
		maxLen:       maxLen,
		sleep:        sleepContext,
		logger:       logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// Dispatch sends text, split into chunks below the message size limit. Every chunk is
// attempted; failures are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var errs []error
	for i, chunk := range Chunk(text, d.maxLen) {
		if err := d.deliver(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, err)...)
			}
			d.logger.Error().Err(err).Int("chunk", i).Msg("告警发送失败")
			errs = append(errs, fmt.Errorf("chunk %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, text string) error {
	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		err := d.sender.Send(ctx, text)
		if err == nil {
			return nil
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) || attempt >= maxRateLimitRetries {
			return err
		}

		backoff := rl.RetryAfter + d.retryPadding
		d.logger.Warn().Dur("retry_after", rl.RetryAfter).Dur("backoff", backoff).Msg("rate limited, retrying once")
		if err := d.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// Chunk splits text on line boundaries so every piece is at most limit bytes. A
// single line longer than limit is cut hard.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		b      strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(b.String(), "\n"))
			b.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if b.Len()+len(line) > limit {
			flush()
		}
		b.WriteString(line)
	}
	flush()
	return chunks
}
