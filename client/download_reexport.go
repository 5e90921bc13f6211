package client

import (
	"github.com/adamwoolhether/bikesearch/client/download"
)

type (
	// DownloadError wraps a sentinel error with additional detail.
	DownloadError = download.Error

	// DownloadOption configures a single [Client.Download].
	DownloadOption = download.Option
)

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrDownloadCancelled indicates the download was cancelled via context.
	ErrDownloadCancelled = download.ErrDownloadCancelled
)

// WithProgress enables periodic download progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }
