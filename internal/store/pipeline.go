package store

import (
	"context"
	"fmt"
	"strings"
)

// Stage is one step of an aggregation pipeline. Stages run in order over
// the documents produced by the previous stage.
type Stage interface {
	apply(ctx context.Context, b Backend, docs []Document) ([]Document, error)
}

// MatchStage keeps documents matching every filter.
type MatchStage struct {
	Filters []Filter
}

// Match builds a MatchStage.
func Match(filters ...Filter) MatchStage { return MatchStage{Filters: filters} }

func (s MatchStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	q := &QuerySpec{Filters: s.Filters}
	out := docs[:0]
	for _, d := range docs {
		if q.Match(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// SortStage orders documents stably.
type SortStage struct {
	Fields []SortField
}

// Sort builds a SortStage.
func Sort(fields ...SortField) SortStage { return SortStage{Fields: fields} }

func (s SortStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	sortDocuments(docs, s.Fields)
	return docs, nil
}

// SkipStage drops the first N documents.
type SkipStage struct{ N int }

// Skip builds a SkipStage.
func Skip(n int) SkipStage { return SkipStage{N: n} }

func (s SkipStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	return window(docs, s.N, 0), nil
}

// LimitStage keeps at most N documents.
type LimitStage struct{ N int }

// Limit builds a LimitStage.
func Limit(n int) LimitStage { return LimitStage{N: n} }

func (s LimitStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	return window(docs, 0, s.N), nil
}

// GroupStage collapses documents sharing the values of By into the first
// document of each group, in input order. Values are compared structurally,
// so object fields such as a bounding box group by exact equality. When
// CountField is set, each output document records its group size there.
type GroupStage struct {
	By         []string
	CountField string
}

// GroupFirst builds a GroupStage keeping the first document per group.
func GroupFirst(by ...string) GroupStage { return GroupStage{By: by} }

func (s GroupStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	index := make(map[string]int, len(docs))
	counts := make([]int, 0)
	out := make([]Document, 0)

	for _, d := range docs {
		key := s.groupKey(d)
		if i, ok := index[key]; ok {
			counts[i]++
			continue
		}
		index[key] = len(out)
		out = append(out, d)
		counts = append(counts, 1)
	}

	if s.CountField != "" {
		for i, d := range out {
			d.Set(s.CountField, counts[i])
		}
	}
	return out, nil
}

func (s GroupStage) groupKey(d Document) string {
	parts := make([]any, len(s.By))
	for i, field := range s.By {
		parts[i], _ = d.Get(field)
	}
	return canonicalJSON(parts)
}

// LookupStage joins documents from another collection. Each input document
// gets the foreign documents whose ForeignField equals its LocalField (or
// any element of it, for array fields) stored under As. With Single set, As
// holds the first match or null instead of an array.
type LookupStage struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Single       bool
}

func (s LookupStage) apply(ctx context.Context, b Backend, docs []Document) ([]Document, error) {
	resolve, err := s.resolver(ctx, b, docs)
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		local, _ := d.Get(s.LocalField)
		keys, isArray := local.([]any)
		if !isArray {
			keys = []any{local}
		}

		var matches []any
		for _, k := range keys {
			for _, m := range resolve(k) {
				matches = append(matches, map[string]any(m))
			}
		}

		if s.Single {
			var first any
			if len(matches) > 0 {
				first = matches[0]
			}
			d[s.As] = first
			continue
		}
		if matches == nil {
			matches = []any{}
		}
		d[s.As] = matches
	}
	return docs, nil
}

// resolver returns a function mapping a local value to foreign documents.
// Joins on "id" read documents directly, anything else scans From once.
func (s LookupStage) resolver(ctx context.Context, b Backend, docs []Document) (func(any) []Document, error) {
	if s.ForeignField == "id" {
		found := make(map[string]Document)
		for _, d := range docs {
			local, _ := d.Get(s.LocalField)
			keys, isArray := local.([]any)
			if !isArray {
				keys = []any{local}
			}
			for _, k := range keys {
				id, ok := k.(string)
				if !ok || id == "" {
					continue
				}
				if _, seen := found[id]; seen {
					continue
				}
				data, err := b.Get(ctx, s.From, id)
				if err != nil {
					if IsNotFound(err) {
						found[id] = nil
						continue
					}
					return nil, fmt.Errorf("lookup %s: %w", s.From, err)
				}
				doc, err := DecodeDocument(data)
				if err != nil {
					return nil, fmt.Errorf("lookup %s: %w", s.From, err)
				}
				found[id] = doc
			}
		}
		return func(k any) []Document {
			id, _ := k.(string)
			if d := found[id]; d != nil {
				return []Document{d}
			}
			return nil
		}, nil
	}

	byKey := make(map[string][]Document)
	for data, err := range b.Scan(ctx, s.From) {
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", s.From, err)
		}
		doc, err := DecodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", s.From, err)
		}
		v, _ := doc.Get(s.ForeignField)
		vals, isArray := v.([]any)
		if !isArray {
			vals = []any{v}
		}
		for _, fv := range vals {
			k := canonicalJSON(fv)
			byKey[k] = append(byKey[k], doc)
		}
	}
	return func(k any) []Document {
		return byKey[canonicalJSON(k)]
	}, nil
}

// AddFieldsStage computes new fields from each document.
type AddFieldsStage struct {
	Fields map[string]func(Document) any
}

// AddFields builds an AddFieldsStage.
func AddFields(fields map[string]func(Document) any) AddFieldsStage {
	return AddFieldsStage{Fields: fields}
}

func (s AddFieldsStage) apply(_ context.Context, _ Backend, docs []Document) ([]Document, error) {
	for _, d := range docs {
		for path, fn := range s.Fields {
			d.Set(path, fn(d))
		}
	}
	return docs, nil
}

// RunPipeline applies stages to docs in order.
func RunPipeline(ctx context.Context, b Backend, docs []Document, stages ...Stage) ([]Document, error) {
	var err error
	for _, st := range stages {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		docs, err = st.apply(ctx, b, docs)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// describeStages renders a pipeline for debug logs.
func describeStages(stages []Stage) string {
	names := make([]string, len(stages))
	for i, st := range stages {
		name := fmt.Sprintf("%T", st)
		name = strings.TrimPrefix(name, "store.")
		names[i] = strings.TrimSuffix(name, "Stage")
	}
	return strings.Join(names, ",")
}
