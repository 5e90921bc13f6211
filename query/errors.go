package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamwoolhether/bikesearch/client"
)

var (
	ErrInvalidParams     = errors.New("invalid parameters")
	ErrNoParameters      = errors.New("no parameters set")
	ErrUnavailable       = errors.New("search not available")
	ErrTimeout           = errors.New("request timed out")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoResults         = errors.New("no results fetched")
	ErrNoName            = errors.New("cannot derive name without parameters")
	ErrImageDownload     = errors.New("image download failed")
	ErrWrite             = errors.New("write failed")
)

// ParseError reports the parameter segment that could not be split
// into a key and a value.
type ParseError struct {
	Index   int
	Segment string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: segment %d %q must have the form key=value", ErrInvalidParams, e.Index, e.Segment)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidParams
}

// classify maps a client failure onto the query error taxonomy:
// deadlines become ErrTimeout, status and transport failures become
// ErrUnavailable, and anything else is a body that failed to decode.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, client.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, client.ErrUnexpectedStatusCode), errors.Is(err, client.ErrTransport):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
}
