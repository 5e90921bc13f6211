// Package download streams HTTP response bodies to disk.
//
// [Handle] writes into a temporary file in the destination directory and
// renames it over destPath once the body has been fully received, so an
// interrupted transfer never leaves a truncated file behind and an existing
// file is replaced only by a complete one:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithProgress(),
//	)
//
// Callers normally go through [github.com/adamwoolhether/bikesearch/client.Client.Download].
package download
