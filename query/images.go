package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/bikesearch/client"
	"github.com/adamwoolhether/bikesearch/internal/validate"
)

// SubdirName derives a name from the current parameters: every pair as
// key=value, joined by "_", with an empty value kept as "key=". It reports
// false when no parameters are set.
func (q *Query) SubdirName() (string, bool) {
	if q.params.Empty() {
		return "", false
	}

	return q.params.Name(), true
}

// SaveImages downloads the large image of every result that has one into
// dir under the output root, as <title>.<ext>. An empty dir is derived
// from the parameters. Existing files are overwritten.
//
// With no images to save it prints a notice and returns nil, nil. A
// failed download does not stop the rest: the images that were written
// are returned along with an error wrapping ErrImageDownload.
func (q *Query) SaveImages(ctx context.Context, dir string) ([]Image, error) {
	ctx, span, log := q.startSpan(ctx, "query.save_images")
	defer span.End()

	if dir == "" {
		name, ok := q.SubdirName()
		if !ok {
			return nil, endSpan(span, fmt.Errorf("image directory: %w", ErrNoName))
		}
		dir = name
	}

	images := q.images(log)
	span.SetAttributes(attribute.Int("query.images", len(images)))
	if len(images) == 0 {
		q.say("No images found.")
		return nil, nil
	}

	target := filepath.Join(q.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, endSpan(span, fmt.Errorf("%w: creating %s: %w", ErrWrite, target, err))
	}

	q.say("Received %d images.\nWriting to %s...\n", len(images), target)

	var saved []Image
	var errs []error
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		name := imageFileName(img)
		img.Path = filepath.Join(target, name)

		if err := q.download(ctx, img); err != nil {
			log.Error("saving image", "title", img.Title, "url", img.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		q.say("%-40s written successfully!", name)
		saved = append(saved, img)
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %d of %d images not saved: %w", ErrImageDownload, len(images)-len(saved), len(images), errors.Join(errs...))
		return saved, endSpan(span, err)
	}

	return saved, nil
}

// images collects a descriptor for every result with a large image.
// Descriptors that fail validation are logged and skipped.
func (q *Query) images(log *slog.Logger) []Image {
	var images []Image
	for _, r := range q.results {
		if !r.HasImage() {
			continue
		}

		title := r.Title
		if strings.TrimSpace(title) == "" {
			title = strconv.Itoa(r.ID)
		}

		img := Image{Title: title, URL: *r.LargeImg}
		if err := validate.Check(img); err != nil {
			log.Warn("skipping image", "id", r.ID, "url", img.URL, "error", err)
			continue
		}

		images = append(images, img)
	}

	return images
}

func (q *Query) download(ctx context.Context, img Image) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	u, err := url.Parse(img.URL)
	if err != nil {
		return fmt.Errorf("parsing image url: %w", err)
	}

	req, err := q.client.Request(ctx, u, http.MethodGet, client.WithAccept("image/*"))
	if err != nil {
		return fmt.Errorf("building image request: %w", err)
	}

	var opts []client.DownloadOption
	if q.progress {
		opts = append(opts, client.WithProgress())
	}

	if err := q.client.Download(req, http.StatusOK, img.Path, opts...); err != nil {
		return classify("download", err)
	}

	return nil
}

// imageFileName names an image file <title>.<ext>, where ext is the final
// dot segment of the URL path. Without one the title is used alone.
func imageFileName(img Image) string {
	name := sanitize(strings.TrimSpace(img.Title))

	var ext string
	if u, err := url.Parse(img.URL); err == nil {
		ext = strings.TrimPrefix(path.Ext(u.Path), ".")
	}
	if ext == "" {
		return name
	}

	return name + "." + ext
}
