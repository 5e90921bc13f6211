// Package throttle paces outbound HTTP requests with a token bucket from
// [golang.org/x/time/rate].
//
// A search run issues a probe, a GET, and then one GET per image, all
// against public hosts. Wrapping the transport keeps a run within a polite
// request rate:
//
//	rt, err := throttle.NewRoundTripper(2, 4, func() *slog.Logger { return slog.Default() }, http.DefaultTransport)
//	httpClient := &http.Client{Transport: rt}
//
// Requests over the rate block until a token frees up or the request
// context ends.
package throttle
