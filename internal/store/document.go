package store

import (
	"encoding/json/v2"
	"strings"
	"time"
)

// Document is the generic JSON form of a stored value, as seen by filters and
// pipeline stages. Numbers are float64, times are RFC 3339 strings.
type Document map[string]any

// DecodeDocument parses a stored JSON body.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ToDocument converts any JSON-serializable value into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(data)
}

// Get resolves a dotted field path such as "boundingBox.x".
func (d Document) Get(path string) (any, bool) {
	var cur any = map[string]any(d)
	for part := range strings.SplitSeq(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set assigns a dotted field path, creating intermediate objects. A nil
// value removes the field.
func (d Document) Set(path string, value any) {
	parts := strings.Split(path, ".")
	m := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}

	last := parts[len(parts)-1]
	if value == nil {
		delete(m, last)
		return
	}
	m[last] = normalizeValue(value)
}

// Decode converts the document into a typed value.
func (d Document) Decode(dest any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// DecodeAll converts pipeline output into typed values.
func DecodeAll[T any](docs []Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v := new(T)
		if err := d.Decode(v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// normalizeValue maps Go values onto the types a decoded Document holds so
// that freshly set fields compare like stored ones.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case string, float64, bool, []any, map[string]any:
		return x
	default:
		// Structs and other composites go through JSON.
		data, err := json.Marshal(x)
		if err != nil {
			return x
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return x
		}
		return out
	}
}

// canonicalJSON renders a value deterministically, used for equality of
// composite values and for grouping keys.
func canonicalJSON(v any) string {
	data, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return ""
	}
	return string(data)
}

// compareValues orders two document values. Values of different kinds order
// nil < numbers < strings < bools < composites; composites order by their
// canonical JSON.
func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch x := a.(type) {
	case nil:
		return 0
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		y := b.(string)
		if ta, okA := parseTimestamp(x); okA {
			if tb, okB := parseTimestamp(y); okB {
				return ta.Compare(tb)
			}
		}
		return strings.Compare(x, y)
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	default:
		return strings.Compare(canonicalJSON(a), canonicalJSON(b))
	}
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// parseTimestamp recognises RFC 3339 strings so that timestamps with
// different fractional precision still order chronologically.
func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < 20 || s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// valuesEqual reports deep equality of two document values.
func valuesEqual(a, b any) bool {
	if kindRank(a) != kindRank(b) {
		return false
	}
	if kindRank(a) == 4 {
		return canonicalJSON(a) == canonicalJSON(b)
	}
	return compareValues(a, b) == 0
}
