package query

import (
	"net/url"
	"strings"
)

// Param is a single search filter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered set of search filters with map semantics: keys are
// unique and setting an existing key replaces its value in place. An empty
// Params is the absent parameter set.
type Params []Param

// NewParams builds Params from alternating keys and values. A trailing key
// without a value gets an empty value.
func NewParams(kv ...string) Params {
	var p Params
	for i := 0; i < len(kv); i += 2 {
		var v string
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		p.Set(kv[i], v)
	}

	return p
}

// Set assigns value to key, keeping the key's original position if present.
func (p *Params) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}

	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the value for key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return "", false
}

// Empty reports whether no parameters are set.
func (p Params) Empty() bool {
	return len(p) == 0
}

// Encode renders the parameters as a query string, in order, skipping
// empty values.
func (p Params) Encode() string {
	var b strings.Builder
	for _, kv := range p {
		if kv.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}

	return b.String()
}

// Name renders every parameter as key=value joined by "_", in order. An
// empty value is kept as "key=". Path separators are replaced so the
// result is usable as a single path element.
func (p Params) Name() string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		parts = append(parts, sanitize(kv.Key)+"="+sanitize(kv.Value))
	}

	return strings.Join(parts, "_")
}

// BuildURL appends params to base as a query string. Empty params yield
// base unchanged.
func BuildURL(base string, params Params) string {
	q := params.Encode()
	if q == "" {
		return base
	}

	return base + "?" + q
}

// ParseParams reads a "key=value-key=value" string. Whitespace around each
// key and value is trimmed, and a repeated key keeps its last value. Only
// the first "=" in a segment separates key from value. Empty input yields
// nil Params and no error.
func ParseParams(text string) (Params, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var params Params
	for i, segment := range strings.Split(text, "-") {
		key, value, ok := strings.Cut(segment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ParseError{Index: i, Segment: segment}
		}

		params.Set(key, strings.TrimSpace(value))
	}

	return params, nil
}

// sanitize replaces path separators so s stays a single path element.
func sanitize(s string) string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(s)
}
