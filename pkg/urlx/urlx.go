// Package urlx provides an insertion-ordered URL query string codec.
package urlx

import (
	"net/url"
	"strings"
)

// Values is an ordered set of query parameters. Unlike url.Values it encodes
// keys in insertion order, so generated query strings are deterministic, and
// it never holds more than one value per key.
type Values struct {
	keys  []string
	items map[string]string
}

// New returns an empty Values.
func New() *Values {
	return &Values{items: make(map[string]string)}
}

// Set stores value under key. Setting an existing key keeps its original
// position and replaces the value (last write wins).
func (v *Values) Set(key, value string) {
	if _, ok := v.items[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.items[key] = value
}

// Get returns the value stored under key, or "" when absent.
func (v *Values) Get(key string) string {
	return v.items[key]
}

// Has reports whether key is present, even with an empty value.
func (v *Values) Has(key string) bool {
	_, ok := v.items[key]
	return ok
}

// Len returns the number of stored keys.
func (v *Values) Len() int {
	return len(v.keys)
}

// Keys returns the keys in insertion order.
func (v *Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Encode renders "k=v&k2=v2" with both sides percent-encoded, keys in
// insertion order.
func (v *Values) Encode() string {
	if len(v.keys) == 0 {
		return ""
	}

	var b strings.Builder
	for i, k := range v.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v.items[k]))
	}
	return b.String()
}

// ParseQuery decodes a raw query string into Values. Parsing is deliberately
// tolerant: pairs are split on '&' and then on the first '=' only (so '='
// inside values survives), components that fail to percent-decode are kept
// as-is, and duplicate keys keep their first position with the last value
// winning. An empty or absent query decodes to an empty Values, not an error.
func ParseQuery(raw string) *Values {
	v := New()

	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return v
	}

	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		v.Set(unescape(key), unescape(value))
	}
	return v
}

// unescape percent-decodes s, falling back to the raw text on malformed
// escapes so a broken component cannot fail the whole query.
func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}
