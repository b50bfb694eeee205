// Package params canonicalizes request query parameters so that
// semantically identical requests produce the same cache identity.
package params

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Params holds query parameters. Key order carries no meaning.
type Params map[string]any

// Pair is a single normalized parameter.
type Pair struct {
	Key   string
	Value any
}

// Normalize returns the parameters ordered by key (ascending).
// Values are passed through unchanged.
func Normalize(p Params) []Pair {
	if len(p) == 0 {
		return []Pair{}
	}

	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, Pair{Key: key, Value: p[key]})
	}
	return pairs
}

// Encode serializes the normalized parameters as a query string.
//
// Slice and array values produce one key=value pair per element, in
// element order. A nil value encodes as "key=".
//
// Example:
//
//	Encode(Params{"page": 2, "ids": []int{7, 3}}) // "ids=7&ids=3&page=2"
func Encode(p Params) string {
	var b strings.Builder
	for _, pair := range Normalize(p) {
		for _, v := range expand(pair.Value) {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(pair.Key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Identity builds the canonical request identity: the target address
// followed by the encoded parameters.
func Identity(target string, p Params) string {
	query := Encode(p)
	if query == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query
}

// FromValues converts url.Values into Params. Single-valued keys become
// plain strings.
func FromValues(values url.Values) Params {
	p := make(Params, len(values))
	for key, vals := range values {
		switch len(vals) {
		case 0:
			p[key] = ""
		case 1:
			p[key] = vals[0]
		default:
			p[key] = append([]string(nil), vals...)
		}
	}
	return p
}

// expand flattens a parameter value into its string forms.
func expand(v any) []string {
	if v == nil {
		return []string{""}
	}

	switch typed := v.(type) {
	case string:
		return []string{typed}
	case []string:
		if len(typed) == 0 {
			return []string{""}
		}
		return typed
	case []byte:
		return []string{string(typed)}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return []string{""}
		}
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, scalar(rv.Index(i).Interface()))
		}
		return out
	}

	return []string{scalar(v)}
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
