package query

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a [Query] via [New].
type Option func(*options) error

type options struct {
	params   Params
	baseURL  string
	timeout  time.Duration
	root     string
	progress bool
	logger   *slog.Logger
	out      io.Writer
	tracer   trace.Tracer
}

// WithParams sets the initial parameter set.
func WithParams(p Params) Option {
	return func(o *options) error {
		o.params = p
		return nil
	}
}

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(base string) Option {
	return func(o *options) error {
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("parsing base url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("base url %q must be absolute", base)
		}
		o.baseURL = base
		return nil
	}
}

// WithTimeout overrides [DefaultTimeout] for every network call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// WithOutputRoot sets the directory that image subdirectories and JSON
// caches are written under. The default is the working directory.
func WithOutputRoot(dir string) Option {
	return func(o *options) error {
		o.root = dir
		return nil
	}
}

// WithProgress logs transfer progress while images download.
func WithProgress() Option {
	return func(o *options) error {
		o.progress = true
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithOutput sets where user-facing messages and previews are written.
// The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return errors.New("output must not be nil")
		}
		o.out = w
		return nil
	}
}

// WithTracer sets the tracer used for request spans. The default is a no-op.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}
