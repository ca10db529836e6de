// Package external is the boundary between CropSight and the upstream
// observation provider. Every outbound call goes through a single Transport
// that owns the provider's resilience contract: the provider answers quota
// exhaustion with 429 plus a Retry-After header and emits intermittent 5xx
// while it reprocesses satellite tiles, so both are retried behind a shared
// circuit breaker; every other response belongs to the caller and comes back
// from the first attempt.
package external

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"cropsight/internal/types"
)

// RetryPolicy bounds the retry loop for provider calls. MaxRetries counts the
// attempts after the first; waits are jittered exponential between MinWait and
// MaxWait unless the provider names its own delay via Retry-After.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// defaultTripThreshold is how many consecutive failed attempts open the
// breaker when TransportConfig.TripAfter is zero.
const defaultTripThreshold = 6

// TransportConfig tunes a Transport. Zero values take the production
// defaults; tests tighten TripAfter and stub Sleep to keep runs fast.
type TransportConfig struct {
	// Name labels the circuit breaker in state-change logs.
	Name string

	// Policy bounds the retry loop; a zero policy disables retries.
	Policy RetryPolicy

	// UserAgent identifies this deployment to the provider.
	UserAgent string

	// TripAfter is the consecutive-failure count that opens the breaker.
	TripAfter uint32

	// Sleep is called between attempts. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Transport executes provider requests with request-ID propagation, a shared
// circuit breaker, and bounded retries on 429 and 5xx. Responses the provider
// means for the caller, 4xx other than 429 included, pass through unretried
// with the body unread.
type Transport struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	policy    RetryPolicy
	userAgent string
	sleep     func(time.Duration)
}

// NewTransport creates a Transport over the given http.Client. The client's
// timeout bounds each individual attempt, not the whole retry loop.
func NewTransport(httpClient *http.Client, cfg TransportConfig) *Transport {
	trip := cfg.TripAfter
	if trip == 0 {
		trip = defaultTripThreshold
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
	})

	return &Transport{
		client:    httpClient,
		breaker:   breaker,
		policy:    cfg.Policy,
		userAgent: cfg.UserAgent,
		sleep:     sleep,
	}
}

// Do runs the request through the breaker and retry loop. A nil error means
// the provider produced a response for the caller, who owns closing its body;
// retryable statuses that survive the whole loop come back as an AppError
// with the matching upstream code.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	var last *http.Response
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := t.attempt(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if breakerOpen(err) || attempt >= t.policy.MaxRetries || !rewind(req) {
			last = resp
			break
		}

		wait := t.backoff(attempt, resp)
		if resp != nil {
			resp.Body.Close()
		}
		t.sleep(wait)
	}

	if last != nil {
		last.Body.Close()
	}
	return nil, t.asAppError(last, lastErr)
}

// attempt performs one breaker-wrapped round trip. Retryable statuses are
// reported to the breaker as failures so a struggling provider trips it.
func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	return t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		if retryableStatus(resp.StatusCode) {
			return resp, fmt.Errorf("provider answered %d", resp.StatusCode)
		}
		return resp, nil
	})
}

// retryableStatus reports whether the provider's contract allows another
// attempt for the status.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func breakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// rewind restores the request body for another attempt. Requests built with
// http.NewRequest carry a GetBody for exactly this; a body without one cannot
// be replayed and ends the retry loop instead.
func rewind(req *http.Request) bool {
	if req.Body == nil {
		return true
	}
	if req.GetBody == nil {
		return false
	}
	body, err := req.GetBody()
	if err != nil {
		return false
	}
	req.Body = body
	return true
}

// backoff picks the wait before the next attempt. A Retry-After delay from
// the provider wins, clamped into the policy bounds; otherwise the wait is a
// jittered exponential on MinWait capped at MaxWait.
func (t *Transport) backoff(attempt int, resp *http.Response) time.Duration {
	if wait, ok := retryAfter(resp); ok {
		return clampWait(wait, t.policy.MinWait, t.policy.MaxWait)
	}

	ceiling := float64(t.policy.MinWait) * math.Pow(2, float64(attempt))
	if max := float64(t.policy.MaxWait); ceiling > max {
		ceiling = max
	}
	min := float64(t.policy.MinWait)
	if ceiling <= min {
		return t.policy.MinWait
	}
	return time.Duration(min + rand.Float64()*(ceiling-min))
}

// retryAfter parses the provider's Retry-After header, which carries either
// delta-seconds or an HTTP-date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(h); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

func clampWait(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// asAppError maps a dead retry loop onto the upstream error taxonomy: an open
// breaker and exhausted 429s surface as rate limiting, exhausted 5xx as a
// provider fault, and anything else (DNS, TLS, connection resets) as an
// unexpected internal failure.
func (t *Transport) asAppError(resp *http.Response, err error) *types.AppError {
	if breakerOpen(err) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"observation provider circuit open, backing off",
			err,
		)
	}
	if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				"observation provider quota exhausted",
				err,
			)
		}
		if resp.StatusCode >= 500 {
			return types.NewAppError(
				types.ErrCodeUpstreamProvider,
				fmt.Sprintf("observation provider still failing with %d after retries", resp.StatusCode),
				err,
			)
		}
	}
	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"observation provider unreachable",
		err,
	)
}
