package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrPageNotLoaded is the terminal gate failure: every endpoint in the
// rotation was tried and none produced a verified page load.
var ErrPageNotLoaded = errors.New("page could not be loaded on any endpoint")

// maxDefaultJitter bounds the randomized pre-navigation delay applied when no
// explicit wait-before-load is configured.
const maxDefaultJitter = 5 * time.Second

// retryableError marks gate failures that are worth another endpoint.
type retryableError interface {
	error
	retryableLoad()
}

// HostMismatchError reports a landed host that does not match the target,
// typically a proxy or captive portal interfering with navigation.
type HostMismatchError struct {
	Want string
	Got  string
}

func (e *HostMismatchError) Error() string {
	return fmt.Sprintf("landed on host %q, expected %q", e.Got, e.Want)
}

func (e *HostMismatchError) retryableLoad() {}

// SelectorTimeoutError reports that the configured readiness selector never
// appeared within its timeout.
type SelectorTimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *SelectorTimeoutError) Error() string {
	return fmt.Sprintf("selector %q did not appear within %s", e.Selector, e.Timeout)
}

func (e *SelectorTimeoutError) retryableLoad() {}

// IsRetryable reports whether a load failure should trigger endpoint
// rotation rather than aborting the capture.
func IsRetryable(err error) bool {
	var re retryableError
	return errors.As(err, &re)
}

// Gate drives a page to a verified loaded state, rotating the session's
// endpoints on retryable failures.
type Gate struct {
	logger *zap.Logger

	// WaitBeforeLoad delays navigation; nil selects a random jitter in
	// [0, 5s) to spread out bursts against the same origin.
	WaitBeforeLoad *time.Duration
	// WaitAfterLoad is the settle time after navigation returns.
	WaitAfterLoad time.Duration
	// WaitForSelector, when set, must appear within SelectorTimeout before
	// the load counts as ready.
	WaitForSelector string
	SelectorTimeout time.Duration
}

// NewGate returns a gate with the given timing policy.
func NewGate(logger *zap.Logger, waitBefore *time.Duration, waitAfter time.Duration, selector string, selectorTimeout time.Duration) *Gate {
	return &Gate{
		logger:          logger.Named("gate"),
		WaitBeforeLoad:  waitBefore,
		WaitAfterLoad:   waitAfter,
		WaitForSelector: selector,
		SelectorTimeout: selectorTimeout,
	}
}

// Load navigates the session to target and verifies the load. Retryable
// failures (host mismatch, selector timeout) rotate to the next endpoint;
// once the rotation is exhausted, Load fails with ErrPageNotLoaded. Other
// failures abort immediately.
func (g *Gate) Load(ctx context.Context, session *Session, target string) (Conn, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	wantHost := normalizeHost(parsed.Hostname())

	for {
		conn, err := session.Conn(ctx)
		if err != nil {
			if errors.Is(err, ErrEndpointsExhausted) {
				return nil, ErrPageNotLoaded
			}
			return nil, err
		}

		err = g.attempt(ctx, conn, target, wantHost)
		if err == nil {
			return conn, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		g.logger.Warn("load attempt failed, rotating endpoint", zap.String("url", target), zap.Error(err))
		session.Rotate()
	}
}

func (g *Gate) attempt(ctx context.Context, conn Conn, target, wantHost string) error {
	if err := sleepCtx(ctx, g.waitBefore()); err != nil {
		return err
	}

	if err := conn.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigating to %q: %w", target, err)
	}

	if err := sleepCtx(ctx, g.WaitAfterLoad); err != nil {
		return err
	}

	if g.WaitForSelector != "" {
		if err := conn.WaitReady(ctx, g.WaitForSelector, g.SelectorTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &SelectorTimeoutError{Selector: g.WaitForSelector, Timeout: g.SelectorTimeout}
		}
	}

	location, err := conn.Location(ctx)
	if err != nil {
		return fmt.Errorf("reading landed location: %w", err)
	}
	landed, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parsing landed location %q: %w", location, err)
	}
	if got := normalizeHost(landed.Hostname()); got != wantHost {
		return &HostMismatchError{Want: wantHost, Got: got}
	}
	return nil
}

func (g *Gate) waitBefore() time.Duration {
	if g.WaitBeforeLoad != nil {
		return *g.WaitBeforeLoad
	}
	return time.Duration(rand.Int63n(int64(maxDefaultJitter)))
}

// normalizeHost applies the single sanctioned normalization before host
// comparison: a leading "www." label is stripped.
func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
