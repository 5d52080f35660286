package resilient

import (
	"reflect"
	"testing"
)

func TestRowGet(t *testing.T) {
	row := Row{
		columns: []string{"user_id", "nickname", "coins"},
		values:  []any{int64(42), "dax", int32(100)},
	}

	v, ok := row.Get("nickname")
	if !ok {
		t.Fatal("Expected the nickname column to exist")
	}
	if v != "dax" {
		t.Errorf("Expected 'dax', got %v", v)
	}

	if _, ok := row.Get("missing"); ok {
		t.Error("Expected a miss for an unknown column")
	}
}

func TestRowGetDuplicateColumnsKeepFirst(t *testing.T) {
	// SELECT a.id, b.id yields two columns named id.
	row := Row{
		columns: []string{"id", "id"},
		values:  []any{int64(1), int64(2)},
	}

	v, ok := row.Get("id")
	if !ok || v != int64(1) {
		t.Errorf("Expected the first id column (1), got %v (ok=%v)", v, ok)
	}

	m := row.Map()
	if len(m) != 1 || m["id"] != int64(1) {
		t.Errorf("Expected map to keep the first id column, got %v", m)
	}
}

func TestRowMapAndOrder(t *testing.T) {
	row := Row{
		columns: []string{"b", "a"},
		values:  []any{2, 1},
	}

	if got := row.Columns(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Expected select-list order preserved, got %v", got)
	}
	if got := row.Values(); !reflect.DeepEqual(got, []any{2, 1}) {
		t.Errorf("Expected values in select-list order, got %v", got)
	}

	want := map[string]any{"a": 1, "b": 2}
	if got := row.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestRowEmpty(t *testing.T) {
	var row Row

	if len(row.Columns()) != 0 || len(row.Values()) != 0 {
		t.Error("Expected a zero row to have no columns or values")
	}
	if got := row.Map(); len(got) != 0 {
		t.Errorf("Expected an empty map, got %v", got)
	}
}
