package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/joinboard/join/pkg/models"
)

// taskDocument is the stored shape of a task. Subtasks and assignedContacts
// are decoded loosely because clients wrote them as arrays, maps or strings.
type taskDocument struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	DueDate          string          `json:"dueDate"`
	Priority         models.Priority `json:"priority"`
	Category         models.Category `json:"category"`
	Stage            models.Stage    `json:"stage"`
	AssignedContacts any             `json:"assignedContacts"`
	Subtasks         any             `json:"subtasks"`
}

func (d taskDocument) toTask(id string) models.Task {
	return models.Task{
		ID:               id,
		Title:            d.Title,
		Description:      d.Description,
		DueDate:          d.DueDate,
		Priority:         d.Priority,
		Category:         d.Category,
		Stage:            d.Stage,
		AssignedContacts: contactRefsFrom(d.AssignedContacts),
		Subtasks:         NormalizeSubtasks(d.Subtasks),
	}
}

// wireTask prepares a task for a full-document write: no nil collections and
// no transient subtask flags.
func wireTask(t models.Task) models.Task {
	out := t.Clone()
	if out.AssignedContacts == nil {
		out.AssignedContacts = []models.ContactRef{}
	}
	if out.Subtasks == nil {
		out.Subtasks = models.SubtaskMap{}
	}
	return out
}

// decodeCollection splits a collection node into its children. The store
// returns collections whose keys are all small integers as JSON arrays, so
// both shapes are accepted; null children are dropped.
func decodeCollection(raw json.RawMessage) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for k, v := range obj {
			if !isNullJSON(v) {
				out[k] = v
			}
		}
		return out, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		for i, v := range arr {
			if !isNullJSON(v) {
				out[strconv.Itoa(i)] = v
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("decoding collection: expected object or array")
}

func isNullJSON(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// decodeTasks converts the tasks collection into tasks ordered by id. Children
// that do not decode are reported in skipped instead of failing the load.
func decodeTasks(raw json.RawMessage) (tasks []models.Task, skipped []string, err error) {
	children, err := decodeCollection(raw)
	if err != nil {
		return nil, nil, err
	}
	tasks = make([]models.Task, 0, len(children))
	for id, body := range children {
		var doc taskDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			skipped = append(skipped, id)
			continue
		}
		tasks = append(tasks, doc.toTask(id))
	}
	sort.Slice(tasks, func(i, j int) bool { return models.LessID(tasks[i].ID, tasks[j].ID) })
	sort.Strings(skipped)
	return tasks, skipped, nil
}

// decodeContacts converts the contacts collection into contacts sorted by name.
func decodeContacts(raw json.RawMessage) (contacts []models.Contact, skipped []string, err error) {
	children, err := decodeCollection(raw)
	if err != nil {
		return nil, nil, err
	}
	contacts = make([]models.Contact, 0, len(children))
	for id, body := range children {
		var c models.Contact
		if err := json.Unmarshal(body, &c); err != nil {
			skipped = append(skipped, id)
			continue
		}
		c.ID = id
		if c.Initials == "" {
			c.Initials = models.Initials(c.Name)
		}
		contacts = append(contacts, c)
	}
	sortContacts(contacts)
	sort.Strings(skipped)
	return contacts, skipped, nil
}

// contactRefsFrom reads assignedContacts written either as an array or as a
// keyed map. Entries without a name are dropped; later duplicates of a name
// are ignored.
func contactRefsFrom(raw any) []models.ContactRef {
	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return models.LessID(keys[i], keys[j]) })
		for _, k := range keys {
			elems = append(elems, v[k])
		}
	}

	refs := make([]models.ContactRef, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	for _, elem := range elems {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		ref := models.ContactRef{}
		ref.Name, _ = obj["name"].(string)
		ref.Color, _ = obj["color"].(string)
		ref.Initials, _ = obj["initials"].(string)
		if ref.Name == "" {
			continue
		}
		if _, dup := seen[ref.Name]; dup {
			continue
		}
		seen[ref.Name] = struct{}{}
		if ref.Initials == "" {
			ref.Initials = models.Initials(ref.Name)
		}
		refs = append(refs, ref)
	}
	return refs
}
