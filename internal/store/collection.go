package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"

	"github.com/ilbumi/satin/internal/id"
)

// Identifiable is implemented by every stored domain type through the
// embedded domain.Base.
type Identifiable interface {
	DocumentID() string
	SetDocumentID(id string)
	InitTimestamps()
	Touch()
}

// Set assigns document fields by dotted path. A nil value removes the field.
type Set map[string]any

// Index defines a secondary index on a collection. Index names double as
// the field path they index, which lets equality filters use them.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// Collection provides typed document operations for one collection.
// T must embed domain.Base (pointer receivers of *T implement Identifiable).
type Collection[T any] struct {
	backend Backend
	name    string
	indexes []Index[T]
	cache   *Cache
	logger  *slog.Logger
}

// NewCollection creates a collection named name on backend.
func NewCollection[T any](b Backend, name string) *Collection[T] {
	return &Collection[T]{
		backend: b,
		name:    name,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// WithIndex adds a secondary index on the field path name.
func (c *Collection[T]) WithIndex(name string, keyGen func(*T) []string) *Collection[T] {
	c.indexes = append(c.indexes, Index[T]{name: name, keyGen: keyGen})
	return c
}

// WithCache enables the read-through cache. A nil cache disables caching.
func (c *Collection[T]) WithCache(cache *Cache) *Collection[T] {
	c.cache = cache
	return c
}

// WithLogger sets the logger for debug output.
func (c *Collection[T]) WithLogger(logger *slog.Logger) *Collection[T] {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Backend returns the underlying storage.
func (c *Collection[T]) Backend() Backend { return c.backend }

// InsertOne assigns an id (when empty) and timestamps, then stores doc.
func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) (*T, error) {
	ident, err := identify(doc)
	if err != nil {
		return nil, err
	}

	if ident.DocumentID() == "" {
		ident.SetDocumentID(id.NewHex())
	} else {
		hexID, ok := id.Normalize(ident.DocumentID())
		if !ok {
			_, err := id.Parse(ident.DocumentID())
			return nil, err
		}
		ident.SetDocumentID(hexID)
	}
	ident.InitTimestamps()

	data, index, err := c.encode(doc)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Insert(ctx, c.name, ident.DocumentID(), data, index); err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.name, err)
	}
	c.invalidate()

	return doc, nil
}

// FindByID returns the document with the given id, or nil when it does not
// exist or rawID is not a valid identifier.
func (c *Collection[T]) FindByID(ctx context.Context, rawID string) (*T, error) {
	hexID, ok := id.Normalize(rawID)
	if !ok {
		c.logger.Debug("ignoring malformed id", "collection", c.name, "id", rawID)
		return nil, nil
	}

	data, err := c.cached("id", hexID, func() ([]byte, error) {
		data, err := c.backend.Get(ctx, c.name, hexID)
		if IsNotFound(err) {
			return []byte("null"), nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, hexID, err)
	}

	var doc *T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return doc, nil
}

// Find returns every document matching q, ordered and windowed by q.
func (c *Collection[T]) Find(ctx context.Context, q *QuerySpec) ([]*T, error) {
	data, err := c.cached("find", q.Key(), func() ([]byte, error) {
		docs, err := c.query(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return out, nil
}

// FindOne returns the first document matching q, or nil.
func (c *Collection[T]) FindOne(ctx context.Context, q *QuerySpec) (*T, error) {
	if q == nil {
		q = Query()
	}
	one := Query(q.Filters...).OrderBy(q.Sort...).Page(q.Skip, 1)
	docs, err := c.Find(ctx, one)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Count returns the number of documents matching q, ignoring skip and limit.
func (c *Collection[T]) Count(ctx context.Context, q *QuerySpec) (int, error) {
	var filters []Filter
	if q != nil {
		filters = q.Filters
	}
	all := Query(filters...)

	data, err := c.cached("count", all.Key(), func() ([]byte, error) {
		docs, err := c.query(ctx, all)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, int64(len(docs)), 10), nil
	})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// FindByIndex returns documents whose index name has exactly value.
func (c *Collection[T]) FindByIndex(ctx context.Context, index, value string) ([]*T, error) {
	return c.Find(ctx, Query(StringFilter{Field: index, Op: OpStrEq, Value: value}))
}

// Page returns one page of documents matching q. The query's own skip and
// limit are replaced by the pagination parameters.
func (c *Collection[T]) Page(ctx context.Context, q *QuerySpec, params PaginationParams) (*PaginatedResult[*T], error) {
	params.Validate()
	offset, err := params.Offset()
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = Query()
	}

	total, err := c.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	items, err := c.Find(ctx, Query(q.Filters...).OrderBy(q.Sort...).Page(offset, params.Limit))
	if err != nil {
		return nil, err
	}

	result := &PaginatedResult[*T]{Items: items, Total: total}
	if next := offset + len(items); next < total {
		result.HasMore = true
		result.NextCursor = OffsetCursor(next)
	}
	return result, nil
}

// All iterates over every document in id order.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for data, err := range c.backend.Scan(ctx, c.name) {
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := c.decode(data)
			if !yield(doc, err) || err != nil {
				return
			}
		}
	}
}

// UpdateOne applies field assignments to one document and returns the
// updated version, or nil when it does not exist.
func (c *Collection[T]) UpdateOne(ctx context.Context, rawID string, set Set) (*T, error) {
	return c.modify(ctx, rawID, func(raw Document) (*T, error) {
		for path, v := range set {
			if path == "id" || path == "createdAt" {
				continue
			}
			raw.Set(path, v)
		}

		doc := new(T)
		if err := raw.Decode(doc); err != nil {
			return nil, err
		}
		ident, err := identify(doc)
		if err != nil {
			return nil, err
		}
		ident.Touch()
		return doc, nil
	})
}

// Mutate runs fn on the current version of a document and stores the
// result atomically. It returns nil when the document does not exist.
// fn may run more than once under write contention.
func (c *Collection[T]) Mutate(ctx context.Context, rawID string, fn func(*T) error) (*T, error) {
	return c.modify(ctx, rawID, func(raw Document) (*T, error) {
		doc := new(T)
		if err := raw.Decode(doc); err != nil {
			return nil, err
		}
		ident, err := identify(doc)
		if err != nil {
			return nil, err
		}
		docID := ident.DocumentID()

		if err := fn(doc); err != nil {
			return nil, err
		}
		ident.SetDocumentID(docID)
		ident.Touch()
		return doc, nil
	})
}

// IncrementOne adds delta to a numeric field (missing counts as zero).
// It reports whether the document existed.
func (c *Collection[T]) IncrementOne(ctx context.Context, rawID, field string, delta float64) (bool, error) {
	doc, err := c.modify(ctx, rawID, func(raw Document) (*T, error) {
		cur, _ := raw.Get(field)
		n, _ := cur.(float64)
		raw.Set(field, n+delta)

		doc := new(T)
		if err := raw.Decode(doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	return doc != nil, err
}

// DeleteOne removes a document, reporting whether it existed.
func (c *Collection[T]) DeleteOne(ctx context.Context, rawID string) (bool, error) {
	hexID, ok := id.Normalize(rawID)
	if !ok {
		return false, nil
	}

	existed, err := c.backend.Delete(ctx, c.name, hexID)
	if err != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.name, hexID, err)
	}
	if existed {
		c.invalidate()
	}
	return existed, nil
}

// DeleteIDs removes the listed documents and returns how many existed.
// Malformed ids are skipped.
func (c *Collection[T]) DeleteIDs(ctx context.Context, ids []string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, raw := range ids {
		if hexID, ok := id.Normalize(raw); ok {
			valid = append(valid, hexID)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	n, err := c.backend.DeleteMany(ctx, c.name, valid)
	if n > 0 {
		c.invalidate()
	}
	if err != nil {
		return n, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return n, nil
}

// DeleteMany removes every document matching q and returns the count.
func (c *Collection[T]) DeleteMany(ctx context.Context, q *QuerySpec) (int, error) {
	docs, err := c.query(ctx, q)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if s, ok := d["id"].(string); ok {
			ids = append(ids, s)
		}
	}
	return c.DeleteIDs(ctx, ids)
}

// Aggregate runs a pipeline over the collection and returns raw documents.
// A leading Match stage uses secondary indexes when it can.
func (c *Collection[T]) Aggregate(ctx context.Context, stages ...Stage) ([]Document, error) {
	var filters []Filter
	if len(stages) > 0 {
		if m, ok := stages[0].(MatchStage); ok {
			filters = m.Filters
		}
	}

	docs, err := c.load(ctx, filters)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("running pipeline",
		"collection", c.name, "stages", describeStages(stages), "input", len(docs))

	return RunPipeline(ctx, c.backend, docs, stages...)
}

// query evaluates q fully in memory after narrowing candidates by index.
func (c *Collection[T]) query(ctx context.Context, q *QuerySpec) ([]Document, error) {
	if q == nil {
		q = Query()
	}

	candidates, err := c.load(ctx, q.Filters)
	if err != nil {
		return nil, err
	}

	docs := candidates[:0]
	for _, d := range candidates {
		if q.Match(d) {
			docs = append(docs, d)
		}
	}

	sortDocuments(docs, q.Sort)
	return window(docs, q.Skip, q.Limit), nil
}

// load returns candidate documents for filters in id order: the postings of
// the first indexed (or id) equality or membership filter, or the full
// collection.
func (c *Collection[T]) load(ctx context.Context, filters []Filter) ([]Document, error) {
	ids, indexed, err := c.indexedIDs(ctx, filters)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(ids))
	if indexed {
		for _, docID := range ids {
			data, err := c.backend.Get(ctx, c.name, docID)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			doc, err := DecodeDocument(data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", c.name, err)
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	for data, err := range c.backend.Scan(ctx, c.name) {
		if err != nil {
			return nil, err
		}
		doc, err := DecodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Collection[T]) indexedIDs(ctx context.Context, filters []Filter) ([]string, bool, error) {
	for _, f := range flattenAnd(filters) {
		var (
			field  string
			values []string
		)
		switch f := f.(type) {
		case StringFilter:
			if f.Op != OpStrEq || f.Fold || (f.Field != "id" && !c.hasIndex(f.Field)) {
				continue
			}
			field, values = f.Field, []string{f.Value}
		case ListFilter:
			vals, ok := stringValues(f.Values)
			if f.Op != OpIn || !ok || !c.hasIndex(f.Field) {
				continue
			}
			field, values = f.Field, vals
		default:
			continue
		}

		seen := make(map[string]struct{})
		ids := make([]string, 0)
		for _, v := range values {
			if field == "id" {
				if _, dup := seen[v]; !dup {
					seen[v] = struct{}{}
					ids = append(ids, v)
				}
				continue
			}
			found, err := c.backend.Lookup(ctx, c.name, field, v)
			if err != nil {
				return nil, false, fmt.Errorf("lookup %s.%s: %w", c.name, field, err)
			}
			for _, docID := range found {
				if _, dup := seen[docID]; !dup {
					seen[docID] = struct{}{}
					ids = append(ids, docID)
				}
			}
		}
		slices.Sort(ids)
		return ids, true, nil
	}
	return nil, false, nil
}

func (c *Collection[T]) hasIndex(name string) bool {
	return slices.ContainsFunc(c.indexes, func(idx Index[T]) bool { return idx.name == name })
}

// modify wraps Backend.Modify: fn turns the stored document into the new
// typed value, which is then re-encoded with fresh index entries.
func (c *Collection[T]) modify(ctx context.Context, rawID string, fn func(raw Document) (*T, error)) (*T, error) {
	hexID, ok := id.Normalize(rawID)
	if !ok {
		c.logger.Debug("ignoring malformed id", "collection", c.name, "id", rawID)
		return nil, nil
	}

	var result *T
	err := c.backend.Modify(ctx, c.name, hexID, func(old []byte) ([]byte, []IndexEntry, error) {
		raw, err := DecodeDocument(old)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		doc, err := fn(raw)
		if err != nil {
			return nil, nil, err
		}
		data, index, err := c.encode(doc)
		if err != nil {
			return nil, nil, err
		}
		result = doc
		return data, index, nil
	})
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.name, hexID, err)
	}

	c.invalidate()
	return result, nil
}

func (c *Collection[T]) encode(doc *T) ([]byte, []IndexEntry, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s: %w", c.name, err)
	}

	var index []IndexEntry
	for _, idx := range c.indexes {
		for _, v := range idx.keyGen(doc) {
			if v == "" {
				continue
			}
			index = append(index, IndexEntry{Name: idx.name, Value: v})
		}
	}
	return data, index, nil
}

func (c *Collection[T]) decode(data []byte) (*T, error) {
	doc := new(T)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return doc, nil
}

// cached reads through the cache under "<collection>|<op>|<arg>".
func (c *Collection[T]) cached(op, arg string, load func() ([]byte, error)) ([]byte, error) {
	if c.cache == nil {
		return load()
	}
	return c.cache.GetOrLoad(c.name+"|"+op+"|"+arg, load)
}

func (c *Collection[T]) invalidate() {
	if c.cache == nil {
		return
	}
	if n := c.cache.Invalidate(c.name + "|"); n > 0 {
		c.logger.Debug("cache invalidated", "collection", c.name, "entries", n)
	}
}

func identify[T any](doc *T) (Identifiable, error) {
	ident, ok := any(doc).(Identifiable)
	if !ok {
		return nil, fmt.Errorf("store: %T does not embed domain.Base", doc)
	}
	return ident, nil
}

// flattenAnd lifts the members of nested AndFilters to the top level.
func flattenAnd(filters []Filter) []Filter {
	var out []Filter
	for _, f := range filters {
		if and, ok := f.(AndFilter); ok {
			out = append(out, flattenAnd(and)...)
			continue
		}
		out = append(out, f)
	}
	return out
}

func stringValues(values []any) ([]string, bool) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
