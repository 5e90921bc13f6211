package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config holds the sustained requests per second and the burst size.
type Config struct {
	RPS   int
	Burst int
}

// Enabled reports whether c describes a usable limiter.
func (c Config) Enabled() bool {
	return c.RPS > 0 && c.Burst > 0
}

// throttle is an http.RoundTripper that waits on a token bucket
// before handing the request to next.
type throttle struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// NewRoundTripper wraps next in a rate limiter allowing rps requests per
// second with the given burst. logFn is resolved per request so the logger
// can be swapped after construction; a nil result disables wait logging.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	cfg := Config{RPS: rps, Burst: burst}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	if next == nil {
		next = http.DefaultTransport
	}

	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &throttle{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cfg:     cfg,
		next:    next,
		logFn:   logFn,
	}

	return t, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := t.logFn()
	waiting := logger != nil && t.limiter.Tokens() < 1
	if waiting {
		logger.Debug("throttle waiting for token", "host", r.URL.Host, "rate", t.cfg.RPS, "burst", t.cfg.Burst)
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if waiting {
		logger.Debug("throttle wait complete", "host", r.URL.Host, "waited", time.Since(start).Round(time.Millisecond).String())
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
