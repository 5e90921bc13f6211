package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/bikesearch/client"
)

// Query holds one search: its parameters, the last observed status, and
// the results of the last successful fetch.
type Query struct {
	client   *client.Client
	params   Params
	baseURL  string
	timeout  time.Duration
	root     string
	progress bool
	logger   *slog.Logger
	out      io.Writer
	tracer   trace.Tracer

	status  int
	results []Record
	raw     json.RawMessage
}

// New creates a Query that issues its requests through c. A nil c gets a
// default client.
func New(c *client.Client, optFns ...Option) (*Query, error) {
	opts := options{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying query option: %w", err)
		}
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.out == nil {
		opts.out = os.Stdout
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("bikesearch/query")
	}

	if c == nil {
		var err error
		c, err = client.Build(client.WithLogger(opts.logger))
		if err != nil {
			return nil, fmt.Errorf("building default client: %w", err)
		}
	}

	q := Query{
		client:   c,
		params:   slices.Clone(opts.params),
		baseURL:  opts.baseURL,
		timeout:  opts.timeout,
		root:     opts.root,
		progress: opts.progress,
		logger:   opts.logger,
		out:      opts.out,
		tracer:   opts.tracer,
	}

	return &q, nil
}

// Params returns a copy of the current parameter set.
func (q *Query) Params() Params {
	return slices.Clone(q.params)
}

// SetParams replaces the parameter set.
func (q *Query) SetParams(p Params) {
	q.params = slices.Clone(p)
}

// SetParamsFromString parses text with [ParseParams] and replaces the
// parameter set. On a parse failure the set is cleared and the error
// returned.
func (q *Query) SetParamsFromString(text string) error {
	p, err := ParseParams(text)
	q.params = p

	return err
}

// URL returns the request URL for the current parameters.
func (q *Query) URL() string {
	return BuildURL(q.baseURL, q.params)
}

// Status returns the last observed HTTP status, or 0 before any request.
func (q *Query) Status() int {
	return q.status
}

// Results returns the records of the last successful fetch, or nil.
func (q *Query) Results() []Record {
	return slices.Clone(q.results)
}

// Raw returns the full body of the last successful fetch, or nil.
func (q *Query) Raw() json.RawMessage {
	return slices.Clone(q.raw)
}

// String summarizes the query.
func (q *Query) String() string {
	if q.results == nil {
		return fmt.Sprintf("%s (no results)", q.URL())
	}

	return fmt.Sprintf("%s (%d results)", q.URL(), len(q.results))
}

// CheckAvailability sends a HEAD request for the current URL and stores
// the status. It does not touch the results.
func (q *Query) CheckAvailability(ctx context.Context) (int, error) {
	ctx, span, log := q.startSpan(ctx, "query.check_availability")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	u, err := url.Parse(q.URL())
	if err != nil {
		return 0, endSpan(span, fmt.Errorf("parsing url: %w", err))
	}

	req, err := q.client.Request(ctx, u, http.MethodHead)
	if err != nil {
		return 0, endSpan(span, fmt.Errorf("building head request: %w", err))
	}

	status, err := q.client.Probe(req)
	if err != nil {
		log.Error("availability check failed", "url", u.Redacted(), "error", err)
		return 0, endSpan(span, classify("head", err))
	}

	q.status = status
	span.SetAttributes(attribute.Int("http.status_code", status))
	log.Debug("availability checked", "url", u.Redacted(), "status", status)

	return status, nil
}

// Fetch checks availability and then retrieves the search results for the
// current parameters. The check always runs, so Status is refreshed even
// when no parameters are set. When the check does not return 200, or
// there are no parameters, it prints a notice and returns an error
// wrapping ErrUnavailable; the stored results are left untouched.
func (q *Query) Fetch(ctx context.Context) ([]Record, error) {
	ctx, span, log := q.startSpan(ctx, "query.fetch")
	defer span.End()

	status, err := q.CheckAvailability(ctx)
	if err != nil {
		q.say("The given URL is not available")
		return nil, endSpan(span, err)
	}
	if status != http.StatusOK {
		q.say("The given URL is not available")
		return nil, endSpan(span, fmt.Errorf("%w: status %d", ErrUnavailable, status))
	}
	if q.params.Empty() {
		q.say("The given URL is not available")
		return nil, endSpan(span, fmt.Errorf("%w: %w", ErrUnavailable, ErrNoParameters))
	}

	q.say("Getting query information...")

	raw, results, err := q.get(ctx)
	if err != nil {
		log.Error("fetching results", "url", q.URL(), "error", err)
		return nil, endSpan(span, err)
	}

	q.raw = raw
	q.results = results

	span.SetAttributes(attribute.Int("query.results", len(results)))
	log.Info("results fetched", "url", q.URL(), "count", len(results))
	q.say("%d results received...", len(results))

	return slices.Clone(results), nil
}

func (q *Query) get(ctx context.Context) (json.RawMessage, []Record, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	u, err := url.Parse(q.URL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing url: %w", err)
	}

	req, err := q.client.Request(ctx, u, http.MethodGet, client.WithAccept("application/json"))
	if err != nil {
		return nil, nil, fmt.Errorf("building get request: %w", err)
	}

	var raw json.RawMessage
	if err := q.client.Do(req, http.StatusOK, client.WithDestination(&raw)); err != nil {
		return nil, nil, classify("get", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if resp.Bikes == nil {
		return nil, nil, fmt.Errorf("%w: missing bikes field", ErrMalformedResponse)
	}

	return raw, *resp.Bikes, nil
}

// Preview prints a numbered list of result titles.
func (q *Query) Preview() {
	q.say("\nPreviewing results...")
	for i, r := range q.results {
		q.say("%d %s", i+1, r.Title)
	}
	q.say("End Preview.\n")
}

// say writes a user-facing line.
func (q *Query) say(format string, args ...any) {
	fmt.Fprintf(q.out, format+"\n", args...)
}

type ctxKey int

const traceKey ctxKey = iota + 1

// startSpan opens a span and returns a logger tagged with its trace ID.
// When the span carries no valid trace, a UUID is generated once and
// carried in the context so nested spans log the same ID.
func (q *Query) startSpan(ctx context.Context, name string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := q.tracer.Start(ctx, name)

	traceID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		id, ok := ctx.Value(traceKey).(string)
		if !ok {
			id = uuid.New().String()
			ctx = context.WithValue(ctx, traceKey, id)
		}
		traceID = id
	}

	return ctx, span, q.logger.With("trace_id", traceID)
}

// endSpan records err on span and returns it.
func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
