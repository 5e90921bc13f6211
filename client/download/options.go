package download

// Option defines optional settings for [Handle].
//
// WithProgress logs transfer progress through the logger given to Handle.
type Option func(*options) error

type options struct {
	progress bool
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}
