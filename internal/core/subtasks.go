package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joinboard/join/pkg/models"
)

// nowMillis is the timestamp source for synthetic ids. Tests replace it.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// NormalizeSubtasks converts any subtask representation written by old or new
// clients into the canonical keyed map. Accepted inputs are nil, a bare
// string, a sequence of strings or objects (as decoded from JSON or typed) and
// a mapping of id to string or object. Unknown shapes yield an empty map.
//
// Sequence elements keep their own "id" when present; otherwise they get
// "subtask-<index>-<unix millis>". Nil elements (holes in sparse arrays) are
// skipped. The function is idempotent on its own output.
func NormalizeSubtasks(raw any) models.SubtaskMap {
	out := make(models.SubtaskMap)

	switch v := raw.(type) {
	case nil:
	case models.SubtaskMap:
		for id, st := range v {
			out[id] = models.Subtask{Title: st.Title, Completed: st.Completed}
		}
	case map[string]models.Subtask:
		return NormalizeSubtasks(models.SubtaskMap(v))
	case map[string]string:
		for id, title := range v {
			out[id] = models.Subtask{Title: title}
		}
	case map[string]any:
		for id, elem := range v {
			if st, ok := subtaskFromValue(elem); ok {
				out[id] = st
			}
		}
	case string:
		return NormalizeSubtasks([]any{v})
	case []string:
		seq := make([]any, len(v))
		for i, s := range v {
			seq[i] = s
		}
		return NormalizeSubtasks(seq)
	case []models.Subtask:
		seq := make([]any, len(v))
		for i, st := range v {
			seq[i] = st
		}
		return NormalizeSubtasks(seq)
	case []any:
		stamp := nowMillis()
		for i, elem := range v {
			st, ok := subtaskFromValue(elem)
			if !ok {
				continue
			}
			id := elementID(elem)
			if id == "" {
				id = fmt.Sprintf("subtask-%d-%d", i, stamp)
			}
			out[id] = st
		}
	}

	return out
}

// subtaskFromValue converts a single sequence element or map value.
func subtaskFromValue(v any) (models.Subtask, bool) {
	switch e := v.(type) {
	case string:
		return models.Subtask{Title: e}, true
	case models.Subtask:
		return models.Subtask{Title: e.Title, Completed: e.Completed}, true
	case map[string]any:
		st := models.Subtask{}
		if title, ok := e["title"].(string); ok {
			st.Title = title
		}
		if done, ok := e["completed"].(bool); ok {
			st.Completed = done
		}
		return st, true
	}
	return models.Subtask{}, false
}

// elementID returns the id carried by an object element, if any.
func elementID(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch id := obj["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

// subtasksFromTitles builds the subtasks of a new task from a plain list of
// titles, keyed by position. Blank titles are dropped before keys are assigned.
func subtasksFromTitles(titles []string) models.SubtaskMap {
	out := make(models.SubtaskMap, len(titles))
	n := 0
	for _, title := range titles {
		if isBlank(title) {
			continue
		}
		out[strconv.Itoa(n)] = models.Subtask{Title: strings.TrimSpace(title)}
		n++
	}
	return out
}
