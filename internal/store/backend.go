package store

import (
	"context"
	"iter"
)

// IndexEntry is one secondary index value for a document. A document may
// carry several entries under the same name (for example one per tag).
type IndexEntry struct {
	Name  string
	Value string
}

// ModifyFunc receives the stored JSON of a document and returns its
// replacement together with the complete new set of index entries.
type ModifyFunc func(old []byte) (data []byte, index []IndexEntry, err error)

// Backend is the key-value document storage used by collections.
//
// Documents are opaque JSON bodies addressed by (collection, id). Backends
// maintain secondary indexes as exact-value postings and keep them
// consistent with the documents they describe.
type Backend interface {
	// Insert stores a new document. Returns ErrAlreadyExists if the id is taken.
	Insert(ctx context.Context, collection, id string, data []byte, index []IndexEntry) error

	// Get returns the stored JSON. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string) ([]byte, error)

	// Modify atomically replaces a document using fn. Returns ErrNotFound if
	// the document does not exist.
	Modify(ctx context.Context, collection, id string, fn ModifyFunc) error

	// Delete removes a document and its index entries, reporting whether it existed.
	Delete(ctx context.Context, collection, id string) (bool, error)

	// DeleteMany removes the given documents and returns how many existed.
	DeleteMany(ctx context.Context, collection string, ids []string) (int, error)

	// Scan yields every document of a collection in id order.
	Scan(ctx context.Context, collection string) iter.Seq2[[]byte, error]

	// Lookup returns the ids of documents with an exact index value.
	Lookup(ctx context.Context, collection, index, value string) ([]string, error)

	// Close releases the underlying storage.
	Close() error
}

// DedupeEntries drops repeated (name, value) pairs, keeping order.
func DedupeEntries(entries []IndexEntry) []IndexEntry {
	if len(entries) < 2 {
		return entries
	}
	seen := make(map[IndexEntry]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

