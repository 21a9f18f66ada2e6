package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
)

const (
	// DefaultMaxRetries is the number of attempts made for one call, rate-limit waits included.
	DefaultMaxRetries = 3

	minRateLimitWait = time.Second
	rateLimitSlack   = time.Second
	backoffBase      = time.Second
	backoffCap       = 30 * time.Second

	headerRateReset = "X-Ratelimit-Reset"
)

// FetchError is the error returned once a call has failed for good.
// Status is the upstream HTTP status, or 0 when no response was received.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// Action is what the retry driver should do after a failed attempt.
type Action int

const (
	ActionRetry Action = iota
	ActionSkip
	ActionFatal
)

// Decision is the classification of one failed attempt.
type Decision struct {
	Action Action
	Wait   time.Duration
	Reason string
}

// Classify decides how the retry driver treats err on the given 1-based attempt.
func Classify(err error, now time.Time, attempt int) Decision {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Decision{Action: ActionFatal, Reason: err.Error()}
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return Decision{Action: ActionRetry, Wait: rateLimitWait(rle.Rate.Reset.Time, now), Reason: "rate limited"}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		wait := minRateLimitWait
		if d := abuse.GetRetryAfter(); d > wait {
			wait = d
		}
		return Decision{Action: ActionRetry, Wait: wait, Reason: "secondary rate limit"}
	}

	status := statusOf(err)
	switch status {
	case http.StatusNotFound:
		return Decision{Action: ActionSkip, Reason: "404 Not Found"}
	case http.StatusConflict:
		return Decision{Action: ActionSkip, Reason: "409 Conflict"}
	case http.StatusForbidden:
		if reset, ok := resetHeader(err); ok {
			return Decision{Action: ActionRetry, Wait: rateLimitWait(reset, now), Reason: "rate limited"}
		}
	}

	return Decision{Action: ActionRetry, Wait: Backoff(attempt), Reason: "transient"}
}

// Backoff is the exponential wait after the given 1-based attempt.
func Backoff(attempt int) time.Duration {
	if attempt > 5 {
		return backoffCap
	}
	return min(backoffBase*time.Duration(1<<attempt), backoffCap)
}

func rateLimitWait(reset, now time.Time) time.Duration {
	return max(reset.Sub(now)+rateLimitSlack, minRateLimitWait)
}

func responseOf(err error) *http.Response {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return rle.Response
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return abuse.Response
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		return er.Response
	}
	return nil
}

func statusOf(err error) int {
	if resp := responseOf(err); resp != nil {
		return resp.StatusCode
	}
	return 0
}

func resetHeader(err error) (time.Time, bool) {
	resp := responseOf(err)
	if resp == nil {
		return time.Time{}, false
	}
	raw := resp.Header.Get(headerRateReset)
	if raw == "" {
		return time.Time{}, false
	}
	secs, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// Retrier drives one upstream call through Classify until it succeeds,
// is classified as skip or fatal, or runs out of attempts.
type Retrier struct {
	MaxRetries int
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *slog.Logger
}

// NewRetrier returns a Retrier using the wall clock.
func NewRetrier(maxRetries int, logger *slog.Logger) *Retrier {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Retrier{
		MaxRetries: maxRetries,
		Now:        time.Now,
		Sleep:      sleepContext,
		Logger:     logger,
	}
}

// Do runs call until it succeeds. Any failure is returned as a *FetchError.
func (r *Retrier) Do(ctx context.Context, what string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxRetries; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		d := Classify(err, r.Now(), attempt)
		switch d.Action {
		case ActionSkip, ActionFatal:
			return toFetchError(err)
		}
		if attempt == r.MaxRetries {
			break
		}

		r.Logger.Warn("fetch attempt failed",
			slog.String("call", what),
			slog.Int("attempt", attempt),
			slog.String("reason", d.Reason),
			slog.Duration("wait", d.Wait),
			slog.String("error", err.Error()),
		)
		if serr := r.Sleep(ctx, d.Wait); serr != nil {
			return toFetchError(serr)
		}
	}
	return toFetchError(lastErr)
}

func toFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	msg := err.Error()
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Message != "" {
		msg = er.Message
	}
	return &FetchError{Status: statusOf(err), Message: msg, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
