// Package table renders admin collections as sortable tables.
//
// Filtering is not done here. Handlers pass the search term to the backend and hand the returned rows to Rows,
// which only orders them.
package table

import (
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Column describes one column of rows of type R.
type Column[R any] struct {
	Key      string
	Label    string
	Sortable bool
	// Value returns the native value used for ordering and for the default cell text.
	Value func(R) any
	// Render overrides the cell markup.
	Render func(R) template.HTML
}

// SortState is the single active sort. An empty Key means rows keep the order they came in.
type SortState struct {
	Key string
	Dir Direction
}

// Table binds columns to a sort state.
type Table[R any] struct {
	Columns []Column[R]
	Sort    SortState
}

func New[R any](columns ...Column[R]) *Table[R] {
	return &Table[R]{Columns: columns}
}

// Column returns the column with key.
func (t *Table[R]) Column(key string) (Column[R], bool) {
	for _, c := range t.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[R]{}, false
}

// Click handles a header click: the same column flips direction, another sortable column starts ascending.
// Clicks on unknown or non-sortable columns are ignored.
func (t *Table[R]) Click(key string) {
	col, ok := t.Column(key)
	if !ok || !col.Sortable {
		return
	}

	if t.Sort.Key == key {
		if t.Sort.Dir == Asc {
			t.Sort.Dir = Desc
		} else {
			t.Sort.Dir = Asc
		}
		return
	}

	t.Sort = SortState{Key: key, Dir: Asc}
}

// NextSort is the state a click on key would produce, for header links.
func (t *Table[R]) NextSort(key string) SortState {
	next := Table[R]{Columns: t.Columns, Sort: t.Sort}
	next.Click(key)
	return next.Sort
}

// Rows returns a sorted copy of rows. Equal values keep their relative order.
func (t *Table[R]) Rows(rows []R) []R {
	out := slices.Clone(rows)

	col, ok := t.Column(t.Sort.Key)
	if !ok || !col.Sortable || col.Value == nil {
		return out
	}

	slices.SortStableFunc(out, func(a, b R) int {
		c := Compare(col.Value(a), col.Value(b))
		if t.Sort.Dir == Desc {
			return -c
		}
		return c
	})

	return out
}

// Cell renders the cell of row in col.
func (t *Table[R]) Cell(col Column[R], row R) template.HTML {
	if col.Render != nil {
		return col.Render(row)
	}
	if col.Value == nil {
		return ""
	}
	return template.HTML(template.HTMLEscapeString(Text(col.Value(row))))
}

// ParseSort reads ?sort=&dir= into the table. Unknown or non-sortable keys reset the sort.
func (t *Table[R]) ParseSort(q url.Values) {
	key := q.Get("sort")
	col, ok := t.Column(key)
	if !ok || !col.Sortable {
		t.Sort = SortState{}
		return
	}

	dir := Asc
	if strings.EqualFold(q.Get("dir"), string(Desc)) {
		dir = Desc
	}
	t.Sort = SortState{Key: key, Dir: dir}
}

// Query encodes s into base, keeping every other parameter such as the search term.
func (s SortState) Query(base url.Values) string {
	q := url.Values{}
	for k, v := range base {
		q[k] = slices.Clone(v)
	}

	if s.Key == "" {
		q.Del("sort")
		q.Del("dir")
	} else {
		q.Set("sort", s.Key)
		q.Set("dir", string(s.Dir))
	}

	return q.Encode()
}

// Text formats a value for display.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case *time.Time:
		if x == nil {
			return ""
		}
		return Text(*x)
	case bool:
		if x {
			return "예"
		}
		return "아니오"
	default:
		return fmt.Sprint(x)
	}
}
