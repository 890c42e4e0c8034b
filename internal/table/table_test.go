package table

import (
	"html/template"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   int
	Name string
}

func nameTable() *Table[row] {
	return New(
		Column[row]{Key: "id", Label: "ID", Sortable: true, Value: func(r row) any { return r.ID }},
		Column[row]{Key: "name", Label: "이름", Sortable: true, Value: func(r row) any { return r.Name }},
		Column[row]{Key: "action", Label: "", Render: func(r row) template.HTML { return "<button>확인</button>" }},
	)
}

func names(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestTable_ClickTogglesDirection(t *testing.T) {
	tbl := nameTable()
	rows := []row{{ID: 1, Name: "B"}, {ID: 2, Name: "A"}}

	tbl.Click("name")
	assert.Equal(t, []string{"A", "B"}, names(tbl.Rows(rows)))

	tbl.Click("name")
	assert.Equal(t, []string{"B", "A"}, names(tbl.Rows(rows)))

	tbl.Click("id")
	assert.Equal(t, SortState{Key: "id", Dir: Asc}, tbl.Sort)
	assert.Equal(t, []string{"B", "A"}, names(tbl.Rows(rows)))

	// input untouched
	assert.Equal(t, "B", rows[0].Name)
}

func TestTable_IgnoresNonSortableColumns(t *testing.T) {
	tbl := nameTable()
	tbl.Click("action")
	assert.Equal(t, SortState{}, tbl.Sort)

	tbl.Click("missing")
	assert.Equal(t, SortState{}, tbl.Sort)
}

func TestTable_StableSort(t *testing.T) {
	tbl := nameTable()
	rows := []row{{ID: 3, Name: "A"}, {ID: 1, Name: "B"}, {ID: 2, Name: "A"}}

	tbl.Click("name")
	sorted := tbl.Rows(rows)
	assert.Equal(t, []int{3, 2, 1}, []int{sorted[0].ID, sorted[1].ID, sorted[2].ID})

	tbl.Click("name")
	sorted = tbl.Rows(rows)
	assert.Equal(t, []int{1, 3, 2}, []int{sorted[0].ID, sorted[1].ID, sorted[2].ID})
}

func TestTable_ParseSortAndQuery(t *testing.T) {
	tbl := nameTable()

	tbl.ParseSort(url.Values{"sort": {"name"}, "dir": {"desc"}})
	assert.Equal(t, SortState{Key: "name", Dir: Desc}, tbl.Sort)

	tbl.ParseSort(url.Values{"sort": {"action"}})
	assert.Equal(t, SortState{}, tbl.Sort)

	base := url.Values{"q": {"민수"}}
	q := SortState{Key: "name", Dir: Asc}.Query(base)
	parsed, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "민수", parsed.Get("q"))
	assert.Equal(t, "name", parsed.Get("sort"))
	assert.Equal(t, "asc", parsed.Get("dir"))
	assert.Empty(t, base.Get("sort"))

	tbl.Sort = SortState{Key: "name", Dir: Asc}
	assert.Equal(t, SortState{Key: "name", Dir: Desc}, tbl.NextSort("name"))
	assert.Equal(t, SortState{Key: "name", Dir: Asc}, tbl.Sort)
}

func TestTable_Cell(t *testing.T) {
	tbl := nameTable()
	r := row{ID: 1, Name: "<b>"}

	assert.Equal(t, template.HTML("&lt;b&gt;"), tbl.Cell(tbl.Columns[1], r))
	assert.Equal(t, template.HTML("<button>확인</button>"), tbl.Cell(tbl.Columns[2], r))
}

func TestCompare(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	two := 2

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"strings", "a", "b", -1},
		{"ints", 10, 2, 1},
		{"mixed numbers", 1.5, 2, -1},
		{"bools", false, true, -1},
		{"times", later, now, 1},
		{"time pointers", &now, &later, -1},
		{"nil first", nil, "a", -1},
		{"nil pointer first", (*time.Time)(nil), now, -1},
		{"int pointer", &two, 2, 0},
		{"mixed kinds by text", "10", 9, -1},
		{"equal", "x", "x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}
