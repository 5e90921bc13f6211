package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CacheResults writes the raw body of the last fetch, indented, to name
// under the output root and returns the path written. An empty name is
// derived from the parameters; ".json" is appended when missing.
func (q *Query) CacheResults(name string) (string, error) {
	if name == "" {
		derived, ok := q.SubdirName()
		if !ok {
			return "", fmt.Errorf("json file name: %w", ErrNoName)
		}
		name = derived + ".json"
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	if q.raw == nil {
		return "", fmt.Errorf("caching %s: %w", name, ErrNoResults)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, q.raw, "", "    "); err != nil {
		return "", fmt.Errorf("%w: indenting: %w", ErrMalformedResponse, err)
	}
	buf.WriteByte('\n')

	dest := filepath.Join(q.root, name)

	q.say("Saving %s...", name)
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		q.say("Failed to write JSON")
		q.logger.Error("caching results", "path", dest, "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrWrite, dest, err)
	}

	where := "the current directory"
	if q.root != "" {
		where = q.root
	}
	q.say("%s saved in %s.\n", name, where)

	return dest, nil
}
