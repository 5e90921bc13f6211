package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/bikesearch/client"
)

const searchPath = "/api/v3/search"

// fakeAPI stands in for the search endpoint and the image host.
type fakeAPI struct {
	srv     *httptest.Server
	hits    atomic.Int32
	lastURL atomic.Value
	body    func(base string) string

	mu       sync.Mutex
	headCode int
	getCode  int
	delay    time.Duration
	images   map[string][]byte
}

func newFakeAPI(t *testing.T, body func(base string) string) *fakeAPI {
	t.Helper()

	api := fakeAPI{
		body:     body,
		headCode: http.StatusOK,
		getCode:  http.StatusOK,
		images:   make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		api.lastURL.Store(r.URL.String())

		api.mu.Lock()
		headCode, getCode, delay := api.headCode, api.getCode, api.delay
		api.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(headCode)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(getCode)
			io.WriteString(w, api.body(api.srv.URL))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		b, ok := api.images[strings.TrimPrefix(r.URL.Path, "/img/")]
		api.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(b)
	})

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)

	return &api
}

func (api *fakeAPI) setStatus(head, get int) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.headCode, api.getCode = head, get
}

func (api *fakeAPI) setDelay(d time.Duration) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.delay = d
}

func (api *fakeAPI) addImage(name string, b []byte) {
	api.mu.Lock()
	defer api.mu.Unlock()

	api.images[name] = b
}

func (api *fakeAPI) endpoint() string {
	return api.srv.URL + searchPath
}

func newTestQuery(t *testing.T, api *fakeAPI, out io.Writer, optFns ...Option) *Query {
	t.Helper()

	c, err := client.Build(client.WithClient(api.srv.Client()))
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	opts := append([]Option{
		WithBaseURL(api.endpoint()),
		WithOutput(out),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, optFns...)

	q, err := New(c, opts...)
	if err != nil {
		t.Fatalf("creating query: %v", err)
	}

	return q
}

func bikesBody(base string) string {
	return fmt.Sprintf(`{"bikes":[{"id":1,"title":"X","large_img":"%s/img/y.jpg","stolen":true}]}`, base)
}

func TestNew_Defaults(t *testing.T) {
	q, err := New(nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if q.URL() != DefaultBaseURL {
		t.Errorf("exp url %q, got %q", DefaultBaseURL, q.URL())
	}
	if q.timeout != DefaultTimeout {
		t.Errorf("exp timeout %v, got %v", DefaultTimeout, q.timeout)
	}
	if q.Status() != 0 {
		t.Errorf("expected no status before any request, got %d", q.Status())
	}
	if q.Results() != nil {
		t.Errorf("expected no results before any fetch, got %v", q.Results())
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	testCases := map[string]Option{
		"relativeBaseURL": WithBaseURL("/api/v3/search"),
		"badBaseURL":      WithBaseURL("http://[::1"),
		"zeroTimeout":     WithTimeout(0),
		"nilLogger":       WithLogger(nil),
		"nilOutput":       WithOutput(nil),
		"nilTracer":       WithTracer(nil),
	}

	for name, opt := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(nil, opt); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestQuery_URLTracksParams(t *testing.T) {
	q, err := New(nil, WithParams(NewParams("page", "1")))
	if err != nil {
		t.Fatalf("creating query: %v", err)
	}

	if exp := DefaultBaseURL + "?page=1"; q.URL() != exp {
		t.Errorf("exp %q, got %q", exp, q.URL())
	}

	q.SetParams(NewParams("page", "2", "distance", "10"))
	if exp := DefaultBaseURL + "?page=2&distance=10"; q.URL() != exp {
		t.Errorf("exp %q, got %q", exp, q.URL())
	}

	if err := q.SetParamsFromString("page=3"); err != nil {
		t.Fatalf("setting params: %v", err)
	}
	if exp := DefaultBaseURL + "?page=3"; q.URL() != exp {
		t.Errorf("exp %q, got %q", exp, q.URL())
	}

	if err := q.SetParamsFromString("broken"); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if !q.Params().Empty() {
		t.Errorf("expected params cleared after a parse failure, got %v", q.Params())
	}
	if q.URL() != DefaultBaseURL {
		t.Errorf("exp %q, got %q", DefaultBaseURL, q.URL())
	}
}

func TestQuery_ParamsIsCopy(t *testing.T) {
	params := NewParams("page", "1")
	q, err := New(nil, WithParams(params))
	if err != nil {
		t.Fatalf("creating query: %v", err)
	}

	params.Set("page", "9")
	got := q.Params()
	got.Set("page", "8")

	if v, _ := q.Params().Get("page"); v != "1" {
		t.Errorf("expected internal params untouched, got page=%s", v)
	}
}

func TestQuery_Fetch(t *testing.T) {
	api := newFakeAPI(t, bikesBody)

	var out bytes.Buffer
	q := newTestQuery(t, api, &out, WithParams(NewParams("location", "Chicago, IL", "page", "1")))

	results, err := q.Fetch(t.Context())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "X" {
		t.Errorf("expected title X, got %q", results[0].Title)
	}
	if !results[0].HasImage() || !results[0].Stolen {
		t.Errorf("unexpected record: %+v", results[0])
	}
	if q.Status() != http.StatusOK {
		t.Errorf("expected status 200, got %d", q.Status())
	}
	if diff := cmp.Diff(results, q.Results()); diff != "" {
		t.Errorf("stored results mismatch (-want +got):\n%s", diff)
	}
	if string(q.Raw()) != bikesBody(api.srv.URL) {
		t.Errorf("expected raw body to be kept verbatim, got %s", q.Raw())
	}
	if api.hits.Load() != 2 {
		t.Errorf("expected a HEAD and a GET, got %d requests", api.hits.Load())
	}

	lastURL, _ := api.lastURL.Load().(string)
	if !strings.Contains(lastURL, "location=Chicago%2C+IL") {
		t.Errorf("expected escaped location in request, got %q", lastURL)
	}

	exp := "Getting query information...\n1 results received...\n"
	if out.String() != exp {
		t.Errorf("exp output %q, got %q", exp, out.String())
	}
}

func TestQuery_FetchEmptyBikes(t *testing.T) {
	api := newFakeAPI(t, func(string) string { return `{"bikes":[]}` })
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))

	results, err := q.Fetch(t.Context())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no records, got %d", len(results))
	}
	if q.Results() == nil {
		t.Error("expected an empty, non-nil result set after a successful fetch")
	}
}

func TestQuery_FetchUnavailable(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	api.setStatus(http.StatusNotFound, http.StatusOK)

	var out bytes.Buffer
	q := newTestQuery(t, api, &out, WithParams(NewParams("page", "1")))

	results, err := q.Fetch(t.Context())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
	if q.Results() != nil {
		t.Errorf("expected results to stay unset, got %v", q.Results())
	}
	if q.Status() != http.StatusNotFound {
		t.Errorf("expected stored status 404, got %d", q.Status())
	}
	if api.hits.Load() != 1 {
		t.Errorf("expected only the HEAD request, got %d requests", api.hits.Load())
	}
	if out.String() != "The given URL is not available\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestQuery_FetchKeepsPreviousResults(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))

	if _, err := q.Fetch(t.Context()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	api.setStatus(http.StatusServiceUnavailable, http.StatusOK)
	if _, err := q.Fetch(t.Context()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if len(q.Results()) != 1 {
		t.Errorf("expected earlier results to survive, got %d", len(q.Results()))
	}
}

func TestQuery_FetchNoParams(t *testing.T) {
	api := newFakeAPI(t, bikesBody)

	var out bytes.Buffer
	q := newTestQuery(t, api, &out)

	_, err := q.Fetch(t.Context())
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrNoParameters) {
		t.Fatalf("expected ErrUnavailable and ErrNoParameters, got %v", err)
	}
	if api.hits.Load() != 1 {
		t.Errorf("expected only the HEAD request, got %d requests", api.hits.Load())
	}
	if q.Status() != http.StatusOK {
		t.Errorf("expected the availability status to be recorded, got %d", q.Status())
	}
	if q.Results() != nil {
		t.Errorf("expected no results, got %v", q.Results())
	}
	if out.String() != "The given URL is not available\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestQuery_FetchErrors(t *testing.T) {
	testCases := map[string]struct {
		body    string
		getCode int
		expErr  error
	}{
		"notJSON": {
			body:    "<html>",
			getCode: http.StatusOK,
			expErr:  ErrMalformedResponse,
		},
		"missingBikes": {
			body:    `{"error":"nope"}`,
			getCode: http.StatusOK,
			expErr:  ErrMalformedResponse,
		},
		"bikesWrongType": {
			body:    `{"bikes":"many"}`,
			getCode: http.StatusOK,
			expErr:  ErrMalformedResponse,
		},
		"getFails": {
			body:    `{"error":"boom"}`,
			getCode: http.StatusInternalServerError,
			expErr:  ErrUnavailable,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t, func(string) string { return tc.body })
			api.setStatus(http.StatusOK, tc.getCode)
			q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))

			results, err := q.Fetch(t.Context())
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("expected %v, got %v", tc.expErr, err)
			}
			if results != nil || q.Results() != nil {
				t.Error("expected no results after a failed fetch")
			}
		})
	}
}

func TestQuery_FetchTimeout(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	api.setDelay(500 * time.Millisecond)

	var out bytes.Buffer
	q := newTestQuery(t, api, &out, WithParams(NewParams("page", "1")), WithTimeout(50*time.Millisecond))

	_, err := q.Fetch(t.Context())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Errorf("a timeout must be distinguishable from an unavailable endpoint: %v", err)
	}
	if !errors.Is(err, client.ErrTimeout) {
		t.Errorf("expected the client timeout to be wrapped, got %v", err)
	}
}

func TestQuery_FetchUnreachable(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))
	api.srv.Close()

	_, err := q.Fetch(t.Context())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestQuery_CheckAvailability(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	api.setStatus(http.StatusTeapot, http.StatusOK)
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))

	status, err := q.CheckAvailability(t.Context())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if status != http.StatusTeapot || q.Status() != http.StatusTeapot {
		t.Errorf("expected status 418, got %d (stored %d)", status, q.Status())
	}
	if q.Results() != nil {
		t.Error("availability check must not touch results")
	}
}

func TestQuery_Preview(t *testing.T) {
	body := func(string) string {
		return `{"bikes":[{"id":1,"title":"2019 Trek FX"},{"id":2,"title":"Surly Cross-Check"}]}`
	}
	api := newFakeAPI(t, body)

	var out bytes.Buffer
	q := newTestQuery(t, api, &out, WithParams(NewParams("page", "1")))
	if _, err := q.Fetch(t.Context()); err != nil {
		t.Fatalf("fetching: %v", err)
	}
	out.Reset()

	q.Preview()

	exp := "\nPreviewing results...\n1 2019 Trek FX\n2 Surly Cross-Check\nEnd Preview.\n\n"
	if out.String() != exp {
		t.Errorf("exp %q, got %q", exp, out.String())
	}
}

func TestQuery_String(t *testing.T) {
	api := newFakeAPI(t, bikesBody)
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")))

	if !strings.HasSuffix(q.String(), "(no results)") {
		t.Errorf("unexpected summary %q", q.String())
	}

	if _, err := q.Fetch(t.Context()); err != nil {
		t.Fatalf("fetching: %v", err)
	}

	exp := api.endpoint() + "?page=1 (1 results)"
	if q.String() != exp {
		t.Errorf("exp %q, got %q", exp, q.String())
	}
}

func TestQuery_LogsTraceID(t *testing.T) {
	api := newFakeAPI(t, bikesBody)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q := newTestQuery(t, api, io.Discard, WithParams(NewParams("page", "1")), WithLogger(logger))

	if _, err := q.Fetch(t.Context()); err != nil {
		t.Fatalf("fetching: %v", err)
	}

	ids := make(map[string]struct{})
	for line := range strings.Lines(logs.String()) {
		var entry struct {
			TraceID string `json:"trace_id"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decoding log line %q: %v", line, err)
		}
		if entry.TraceID == "" {
			t.Errorf("log line without trace_id: %s", line)
		}
		ids[entry.TraceID] = struct{}{}
	}

	if len(ids) != 1 {
		t.Errorf("expected one trace id across nested spans, got %d", len(ids))
	}
}
