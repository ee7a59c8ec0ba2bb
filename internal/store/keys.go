package store

import "strings"

// Badger key layout:
//
//	doc:<collection>:<id>                        document JSON
//	idx:<collection>:<index>:<value>\x00<id>     empty posting
//	ridx:<collection>:<id>                       JSON list of the document's posting keys
//
// The NUL byte ends the value so that a lookup for "cat" never matches the
// postings of "cats".
const (
	docPrefix     = "doc:"
	indexPrefix   = "idx:"
	reversePrefix = "ridx:"
	valueTerm     = "\x00"
)

func buildKey(parts ...string) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func docKey(collection, id string) []byte {
	return buildKey(docPrefix, collection, ":", id)
}

func docScanPrefix(collection string) []byte {
	return buildKey(docPrefix, collection, ":")
}

func reverseKey(collection, id string) []byte {
	return buildKey(reversePrefix, collection, ":", id)
}

func indexLookupPrefix(collection, index, value string) []byte {
	return buildKey(indexPrefix, collection, ":", index, ":", value, valueTerm)
}

func indexKey(collection, index, value, id string) []byte {
	return buildKey(indexPrefix, collection, ":", index, ":", value, valueTerm, id)
}

// idFromIndexKey returns the document id that ends a posting key.
func idFromIndexKey(key []byte) string {
	s := string(key)
	if i := strings.LastIndex(s, valueTerm); i >= 0 {
		return s[i+1:]
	}
	return ""
}
