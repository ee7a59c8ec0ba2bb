package store

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Filter is a predicate over documents. The set of filters is closed: build
// them with the constructors in this file.
type Filter interface {
	Match(doc Document) bool
	// key renders the filter for cache signatures.
	key() string
}

// NumberOp is a numeric comparison.
type NumberOp string

// Numeric comparison operators.
const (
	OpEq  NumberOp = "eq"
	OpNe  NumberOp = "ne"
	OpGt  NumberOp = "gt"
	OpGte NumberOp = "gte"
	OpLt  NumberOp = "lt"
	OpLte NumberOp = "lte"
)

// NumberFilter compares a numeric field. Missing and null fields never match
// except for OpNe.
type NumberFilter struct {
	Field string
	Op    NumberOp
	Value float64
}

// Match implements Filter.
func (f NumberFilter) Match(doc Document) bool {
	v, _ := doc.Get(f.Field)
	n, ok := v.(float64)
	if !ok {
		return f.Op == OpNe
	}
	switch f.Op {
	case OpEq:
		return n == f.Value
	case OpNe:
		return n != f.Value
	case OpGt:
		return n > f.Value
	case OpGte:
		return n >= f.Value
	case OpLt:
		return n < f.Value
	case OpLte:
		return n <= f.Value
	}
	return false
}

func (f NumberFilter) key() string {
	return f.Field + " " + string(f.Op) + " " + strconv.FormatFloat(f.Value, 'g', -1, 64)
}

// StringOp is a string comparison.
type StringOp string

// String comparison operators.
const (
	OpStrEq    StringOp = "eq"
	OpStrNe    StringOp = "ne"
	OpContains StringOp = "contains"
	OpPrefix   StringOp = "prefix"
)

// StringFilter compares a string field. With Fold set the comparison is
// case-insensitive under Unicode case folding. Array fields match when any
// element matches.
type StringFilter struct {
	Field string
	Op    StringOp
	Value string
	Fold  bool
}

var folder = cases.Fold()

// Match implements Filter.
func (f StringFilter) Match(doc Document) bool {
	v, _ := doc.Get(f.Field)
	if arr, ok := v.([]any); ok && f.Op != OpStrNe {
		for _, e := range arr {
			if s, ok := e.(string); ok && f.matchString(s) {
				return true
			}
		}
		return false
	}

	s, ok := v.(string)
	if !ok {
		return f.Op == OpStrNe
	}
	return f.matchString(s)
}

func (f StringFilter) matchString(s string) bool {
	want := f.Value
	if f.Fold {
		s, want = folder.String(s), folder.String(want)
	}
	switch f.Op {
	case OpStrEq:
		return s == want
	case OpStrNe:
		return s != want
	case OpContains:
		return strings.Contains(s, want)
	case OpPrefix:
		return strings.HasPrefix(s, want)
	}
	return false
}

func (f StringFilter) key() string {
	fold := ""
	if f.Fold {
		fold = "/i"
	}
	return f.Field + " " + string(f.Op) + fold + " " + strconv.Quote(f.Value)
}

// ListOp is a membership test.
type ListOp string

// Membership operators.
const (
	OpIn  ListOp = "in"
	OpNin ListOp = "nin"
	OpAll ListOp = "all"
)

// ListFilter tests a field against a set of values. For array fields OpIn
// matches when any element is in Values and OpAll when every value is
// present in the array.
type ListFilter struct {
	Field  string
	Op     ListOp
	Values []any
}

// Match implements Filter.
func (f ListFilter) Match(doc Document) bool {
	v, _ := doc.Get(f.Field)
	elems, isArray := v.([]any)
	if !isArray {
		elems = []any{v}
	}

	contains := func(x any) bool {
		return slices.ContainsFunc(f.Values, func(want any) bool { return valuesEqual(x, want) })
	}

	switch f.Op {
	case OpIn:
		return slices.ContainsFunc(elems, contains)
	case OpNin:
		return !slices.ContainsFunc(elems, contains)
	case OpAll:
		if !isArray || len(f.Values) == 0 {
			return false
		}
		for _, want := range f.Values {
			if !slices.ContainsFunc(elems, func(x any) bool { return valuesEqual(x, want) }) {
				return false
			}
		}
		return true
	}
	return false
}

func (f ListFilter) key() string {
	return f.Field + " " + string(f.Op) + " " + canonicalJSON(f.Values)
}

// ValueFilter matches a field deeply equal to Value, including objects.
type ValueFilter struct {
	Field string
	Value any
}

// Match implements Filter.
func (f ValueFilter) Match(doc Document) bool {
	v, ok := doc.Get(f.Field)
	if !ok {
		return f.Value == nil
	}
	if arr, isArray := v.([]any); isArray && kindRank(f.Value) != 4 {
		return slices.ContainsFunc(arr, func(x any) bool { return valuesEqual(x, f.Value) })
	}
	return valuesEqual(v, f.Value)
}

func (f ValueFilter) key() string {
	return f.Field + " = " + canonicalJSON(f.Value)
}

// ExistsFilter matches documents where the field is present and not null
// (or, with Exists false, absent or null).
type ExistsFilter struct {
	Field  string
	Exists bool
}

// Match implements Filter.
func (f ExistsFilter) Match(doc Document) bool {
	v, ok := doc.Get(f.Field)
	return (ok && v != nil) == f.Exists
}

func (f ExistsFilter) key() string {
	return fmt.Sprintf("%s exists %t", f.Field, f.Exists)
}

// AndFilter matches when every filter matches.
type AndFilter []Filter

// Match implements Filter.
func (f AndFilter) Match(doc Document) bool {
	for _, sub := range f {
		if !sub.Match(doc) {
			return false
		}
	}
	return true
}

func (f AndFilter) key() string { return joinKeys("and", f) }

// OrFilter matches when any filter matches.
type OrFilter []Filter

// Match implements Filter.
func (f OrFilter) Match(doc Document) bool {
	for _, sub := range f {
		if sub.Match(doc) {
			return true
		}
	}
	return false
}

func (f OrFilter) key() string { return joinKeys("or", f) }

// NotFilter inverts a filter.
type NotFilter struct {
	Filter Filter
}

// Match implements Filter.
func (f NotFilter) Match(doc Document) bool { return !f.Filter.Match(doc) }

func (f NotFilter) key() string { return "not(" + f.Filter.key() + ")" }

func joinKeys(op string, filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = f.key()
	}
	return op + "(" + strings.Join(parts, "; ") + ")"
}

// Eq matches field == value. Strings, numbers and bools get their typed
// filter, anything else compares structurally.
func Eq(field string, value any) Filter {
	switch v := normalizeValue(value).(type) {
	case string:
		return StringFilter{Field: field, Op: OpStrEq, Value: v}
	case float64:
		return NumberFilter{Field: field, Op: OpEq, Value: v}
	default:
		return ValueFilter{Field: field, Value: v}
	}
}

// Ne matches field != value, including documents without the field.
func Ne(field string, value any) Filter {
	switch v := normalizeValue(value).(type) {
	case string:
		return StringFilter{Field: field, Op: OpStrNe, Value: v}
	case float64:
		return NumberFilter{Field: field, Op: OpNe, Value: v}
	default:
		return NotFilter{Filter: ValueFilter{Field: field, Value: v}}
	}
}

// Gt matches field > value.
func Gt(field string, value float64) Filter { return NumberFilter{field, OpGt, value} }

// Gte matches field >= value.
func Gte(field string, value float64) Filter { return NumberFilter{field, OpGte, value} }

// Lt matches field < value.
func Lt(field string, value float64) Filter { return NumberFilter{field, OpLt, value} }

// Lte matches field <= value.
func Lte(field string, value float64) Filter { return NumberFilter{field, OpLte, value} }

// In matches when the field (or any element of an array field) equals one of values.
func In[V any](field string, values ...V) Filter {
	return ListFilter{Field: field, Op: OpIn, Values: anySlice(values)}
}

// NotIn is the negation of In.
func NotIn[V any](field string, values ...V) Filter {
	return ListFilter{Field: field, Op: OpNin, Values: anySlice(values)}
}

// All matches array fields containing every one of values.
func All[V any](field string, values ...V) Filter {
	return ListFilter{Field: field, Op: OpAll, Values: anySlice(values)}
}

// Contains matches string fields containing substr, case-insensitively when fold is set.
func Contains(field, substr string, fold bool) Filter {
	return StringFilter{Field: field, Op: OpContains, Value: substr, Fold: fold}
}

// HasPrefix matches string fields starting with prefix.
func HasPrefix(field, prefix string) Filter {
	return StringFilter{Field: field, Op: OpPrefix, Value: prefix}
}

// Exists matches documents with a non-null field.
func Exists(field string) Filter { return ExistsFilter{Field: field, Exists: true} }

// Missing matches documents where the field is absent or null.
func Missing(field string) Filter { return ExistsFilter{Field: field, Exists: false} }

// And combines filters conjunctively.
func And(filters ...Filter) Filter { return AndFilter(filters) }

// Or combines filters disjunctively.
func Or(filters ...Filter) Filter { return OrFilter(filters) }

// Not inverts a filter.
func Not(f Filter) Filter { return NotFilter{Filter: f} }

func anySlice[V any](values []V) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = normalizeValue(v)
	}
	return out
}

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Asc sorts ascending by field.
func Asc(field string) SortField { return SortField{Field: field} }

// Desc sorts descending by field.
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// QuerySpec selects, orders and windows documents. All filters must match.
// A zero Limit means no limit.
type QuerySpec struct {
	Filters []Filter
	Sort    []SortField
	Skip    int
	Limit   int
}

// Query starts a QuerySpec with the given filters.
func Query(filters ...Filter) *QuerySpec {
	return &QuerySpec{Filters: filters}
}

// Where adds filters.
func (q *QuerySpec) Where(filters ...Filter) *QuerySpec {
	q.Filters = append(q.Filters, filters...)
	return q
}

// OrderBy appends sort keys.
func (q *QuerySpec) OrderBy(fields ...SortField) *QuerySpec {
	q.Sort = append(q.Sort, fields...)
	return q
}

// Page sets skip and limit.
func (q *QuerySpec) Page(skip, limit int) *QuerySpec {
	q.Skip = skip
	q.Limit = limit
	return q
}

// Match reports whether doc satisfies every filter.
func (q *QuerySpec) Match(doc Document) bool {
	if q == nil {
		return true
	}
	for _, f := range q.Filters {
		if !f.Match(doc) {
			return false
		}
	}
	return true
}

// Key renders a stable signature for caching.
func (q *QuerySpec) Key() string {
	if q == nil {
		return "*"
	}
	var b strings.Builder
	b.WriteString(AndFilter(q.Filters).key())
	for _, s := range q.Sort {
		b.WriteString(" sort:")
		b.WriteString(s.Field)
		if s.Desc {
			b.WriteString(":desc")
		}
	}
	fmt.Fprintf(&b, " skip:%d limit:%d", q.Skip, q.Limit)
	return b.String()
}

// sortDocuments orders docs in place, stably, by the sort keys. Missing
// fields sort as null.
func sortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b Document) int {
		for _, f := range fields {
			va, _ := a.Get(f.Field)
			vb, _ := b.Get(f.Field)
			c := compareValues(va, vb)
			if f.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// window applies skip and limit.
func window[E any](items []E, skip, limit int) []E {
	if skip > 0 {
		if skip >= len(items) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
