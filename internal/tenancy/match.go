package tenancy

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Row is a record flattened to column values, used to evaluate a Scoped
// query in process.
type Row map[string]any

// Match reports whether row satisfies every condition of the query.
func (s Scoped) Match(row Row, searchColumns []string) bool {
	for _, f := range s.Conditions() {
		if !matchFilter(f, row[f.Field]) {
			return false
		}
	}
	if s.search == "" || len(searchColumns) == 0 {
		return true
	}
	needle := strings.ToLower(s.search)
	for _, c := range searchColumns {
		if strings.Contains(strings.ToLower(text(row[c])), needle) {
			return true
		}
	}
	return false
}

func matchFilter(f Filter, v any) bool {
	switch f.Op {
	case OpIn:
		values, _ := f.Value.([]string)
		got := text(v)
		for _, want := range values {
			if got == want {
				return true
			}
		}
		return false
	case OpILike:
		return strings.Contains(strings.ToLower(text(v)), strings.ToLower(text(f.Value)))
	default:
		return text(v) == text(f.Value)
	}
}

// Select filters, orders and pages rows, returning the page and the total
// number of matches.
func (s Scoped) Select(rows []Row, searchColumns []string) ([]Row, int) {
	matched := make([]Row, 0, len(rows))
	for _, r := range rows {
		if s.Match(r, searchColumns) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return s.less(matched[i], matched[j])
	})
	total := len(matched)
	start := s.page.Offset()
	if start < 0 || start >= total {
		return []Row{}, total
	}
	end := start + s.page.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total
}

func (s Scoped) less(a, b Row) bool {
	c := compare(a[s.sort.Field], b[s.sort.Field])
	if c == 0 {
		c = compare(a[ColumnID], b[ColumnID])
	}
	if s.sort.Desc {
		return c > 0
	}
	return c < 0
}

func compare(a, b any) int {
	a, b = deref(a), deref(b)
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return cmpOrdered(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmpOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmpOrdered(av, bv)
		}
	}
	if a == nil && b != nil {
		return -1
	}
	if b == nil && a != nil {
		return 1
	}
	return strings.Compare(text(a), text(b))
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func text(v any) string {
	v = deref(v)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
