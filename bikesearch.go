// Package bikesearch wires an HTTP client into a Bike Index search query.
package bikesearch

import (
	"fmt"

	"github.com/adamwoolhether/bikesearch/client"
	"github.com/adamwoolhether/bikesearch/query"
)

// Version is stamped at build time and reported in the User-Agent header.
var Version = "dev"

// UserAgent returns the User-Agent header value sent on every request.
func UserAgent() string {
	return "bikesearch/" + Version
}

// NewClient instantiates a new *Client that identifies itself with [UserAgent].
// Options passed in are applied afterwards and may override it.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(append([]client.Option{client.WithUserAgent(UserAgent())}, opts...)...)
}

// NewQuery builds a client from clientOpts and a query on top of it.
func NewQuery(clientOpts []client.Option, queryOpts ...query.Option) (*query.Query, error) {
	c, err := NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	q, err := query.New(c, queryOpts...)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	return q, nil
}
