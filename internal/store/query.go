package store

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Apply evaluates the query against a full collection load: filter by
// the predicate conjunction, then order. Ties and missing sort fields
// fall back to document id so the result is deterministic for a given
// input set.
func (q Query) Apply(docs []Document) Snapshot {
	out := make(Snapshot, 0, len(docs))
	for _, doc := range docs {
		if q.matches(doc) {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != nil {
			a, aok := out[i].Fields[q.OrderBy.Field]
			b, bok := out[j].Fields[q.OrderBy.Field]
			if aok && bok {
				if c, ok := compareValues(a, b); ok && c != 0 {
					if q.OrderBy.Desc {
						return c > 0
					}
					return c < 0
				}
			} else if aok != bok {
				// Documents missing the sort key go last.
				return aok
			}
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (q Query) matches(doc Document) bool {
	for _, w := range q.Wheres {
		value, ok := doc.Fields[w.Field]
		if !ok {
			return false
		}
		switch w.Op {
		case OpEq:
			if c, ok := compareValues(value, w.Value); !ok || c != 0 {
				return false
			}
		case OpGte:
			if c, ok := compareValues(value, w.Value); !ok || c < 0 {
				return false
			}
		case OpLte:
			if c, ok := compareValues(value, w.Value); !ok || c > 0 {
				return false
			}
		case OpIn:
			if !valueIn(value, w.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valueIn(value, set any) bool {
	rv := reflect.ValueOf(set)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if c, ok := compareValues(value, rv.Index(i).Interface()); ok && c == 0 {
			return true
		}
	}
	return false
}

// compareValues orders two field values. Numbers compare numerically,
// strings lexically, except that two RFC 3339 strings compare as
// instants (JSON timestamps with differing fractional precision would
// otherwise misorder).
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := toString(a)
	bs, bok := toString(b)
	if !aok || !bok {
		return 0, false
	}
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt), true
		}
	}
	return strings.Compare(as, bs), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String(), true
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano), true
	}
	return "", false
}
