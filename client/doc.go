// Package client provides the configurable HTTP client used to talk to the
// search API and the image hosts it links to.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(5 * time.Second),
//		client.WithUserAgent("bikesearch/1.0"),
//		client.WithThrottle(2, 4),
//	)
//
// # Making Requests
//
// Construct a [Request] and execute it with [Client.Do], which checks the
// status code and optionally decodes the JSON body:
//
//	req, err := client.Request(ctx, u, http.MethodGet, client.WithAccept("application/json"))
//	err = c.Do(req, http.StatusOK, client.WithDestination(&result))
//
// [Client.Probe] returns the status of a request without asserting it,
// which suits HEAD availability checks.
//
// # Downloading Files
//
// [Client.Download] streams a response body to disk through a temp file:
//
//	err = c.Download(req, http.StatusOK, "/tmp/bike.jpg", client.WithProgress())
//
// # Errors
//
// Status mismatches return [*UnexpectedStatusError]. Transport failures wrap
// [ErrTimeout] when a deadline was hit and [ErrTransport] otherwise.
package client
