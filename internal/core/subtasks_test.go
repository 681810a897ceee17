package core

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/joinboard/join/pkg/models"
)

func withFixedMillis(t *testing.T, ms int64) {
	t.Helper()
	prev := nowMillis
	nowMillis = func() int64 { return ms }
	t.Cleanup(func() { nowMillis = prev })
}

func decodeAny(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decoding %s: %v", s, err)
	}
	return v
}

func TestNormalizeSubtasks_Nil(t *testing.T) {
	got := NormalizeSubtasks(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", got)
	}
}

func TestNormalizeSubtasks_StringArray(t *testing.T) {
	withFixedMillis(t, 1700000000000)

	got := NormalizeSubtasks(decodeAny(t, `["a","b"]`))
	want := models.SubtaskMap{
		"subtask-0-1700000000000": {Title: "a"},
		"subtask-1-1700000000000": {Title: "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeSubtasks_ObjectArrayKeepsIDs(t *testing.T) {
	withFixedMillis(t, 5)

	got := NormalizeSubtasks(decodeAny(t, `[{"id":"s1","title":"a","completed":true,"isEditing":true},{"title":"b"},{"id":7,"title":"c"}]`))
	want := models.SubtaskMap{
		"s1":          {Title: "a", Completed: true},
		"subtask-1-5": {Title: "b"},
		"7":           {Title: "c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeSubtasks_SparseArraySkipsHoles(t *testing.T) {
	withFixedMillis(t, 9)

	got := NormalizeSubtasks(decodeAny(t, `[null,"b",null,{"title":"d"}]`))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %+v", got)
	}
	if got["subtask-1-9"].Title != "b" || got["subtask-3-9"].Title != "d" {
		t.Errorf("unexpected keys: %+v", got)
	}
}

func TestNormalizeSubtasks_Mapping(t *testing.T) {
	got := NormalizeSubtasks(decodeAny(t, `{"k1":"a","k2":{"title":"b","completed":true},"k3":{"title":"c"}}`))
	want := models.SubtaskMap{
		"k1": {Title: "a"},
		"k2": {Title: "b", Completed: true},
		"k3": {Title: "c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeSubtasks_BareString(t *testing.T) {
	withFixedMillis(t, 1)

	got := NormalizeSubtasks("only one")
	want := models.SubtaskMap{"subtask-0-1": {Title: "only one"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeSubtasks_TypedMapDropsEditingFlag(t *testing.T) {
	in := models.SubtaskMap{"a": {Title: "x", Completed: true, IsEditing: true}}
	got := NormalizeSubtasks(in)
	if got["a"].IsEditing {
		t.Errorf("IsEditing must be cleared")
	}
	if !got["a"].Completed {
		t.Errorf("Completed must be kept")
	}
	in["a"] = models.Subtask{Title: "changed"}
	if got["a"].Title != "x" {
		t.Errorf("result aliases the input map")
	}
}

func TestNormalizeSubtasks_UnknownShape(t *testing.T) {
	if got := NormalizeSubtasks(42.0); len(got) != 0 {
		t.Errorf("expected empty map for number, got %+v", got)
	}
}

func TestSubtasksFromTitles(t *testing.T) {
	got := subtasksFromTitles([]string{"draft", "  ", " review "})
	want := models.SubtaskMap{
		"0": {Title: "draft"},
		"1": {Title: "review"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSubtaskMap_SortedIDs(t *testing.T) {
	m := models.SubtaskMap{"10": {}, "2": {}, "b": {}, "a": {}, "1767225600000": {}}
	got := m.SortedIDs()
	want := []string{"2", "10", "1767225600000", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
