package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Policy bounds a quota-aware retry loop. Delays grow linearly:
// InitialDelay, InitialDelay+Increment, InitialDelay+2*Increment, ...
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Increment    time.Duration

	// Sleep suspends the caller between attempts. Nil means a timer that
	// honours ctx cancellation.
	Sleep Sleeper
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultPolicy retries five times, waiting 15s, 20s, 25s, 30s and 35s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   5,
		InitialDelay: 15 * time.Second,
		Increment:    5 * time.Second,
	}
}

// Delays returns the full wait schedule the policy would follow if every
// attempt hit the quota.
func (p Policy) Delays() []time.Duration {
	delays := make([]time.Duration, 0, p.MaxRetries)
	d := p.InitialDelay
	for i := 0; i < p.MaxRetries; i++ {
		delays = append(delays, d)
		d += p.Increment
	}
	return delays
}

// Do runs op until it succeeds, fails with an error that is not
// quota-related, or the retry budget is spent. In the last case the final
// error from op is returned as-is.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	remaining := p.MaxRetries
	delay := p.InitialDelay
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsQuotaError(err) || remaining <= 0 {
			return result, err
		}

		slog.Warn("quota limited, retrying",
			"delay", delay,
			"attempts_left", remaining,
			"error", err,
		)
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}

		remaining--
		delay += p.Increment
	}
}

// HTTPStatusError is implemented by errors that carry an upstream HTTP
// status code.
type HTTPStatusError interface {
	HTTPStatus() int
}

var quotaMarkers = []string{
	"resource_exhausted",
	"resource exhausted",
	"quota",
}

// statusToken matches 429 as a standalone number. Digits, identifiers and
// host:port prefixes around it disqualify the match.
var statusToken = regexp.MustCompile(`(?:^|[^\w.:])429(?:\W|$)`)

// IsQuotaError reports whether err signals a rate-limit or quota condition.
// An error that carries an HTTP status is judged by that status alone; the
// text is only consulted for errors without one.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var se HTTPStatusError
	if errors.As(err, &se) {
		return se.HTTPStatus() == http.StatusTooManyRequests
	}

	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return statusToken.MatchString(msg)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
