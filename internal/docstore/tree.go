// Package docstore is a small in-process document store that speaks the
// subset of the Firebase Realtime Database REST protocol the board client
// uses, so the client can run without a hosted database.
package docstore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Tree is a JSON document tree addressed by slash-separated paths. Values are
// the types produced by encoding/json: map[string]any, []any, string,
// float64, bool and nil. Writing nil, or an empty object, removes the node,
// and parents left empty are pruned.
type Tree struct {
	mu     sync.RWMutex
	root   map[string]any
	newKey func() string
}

// NewTree returns an empty tree. Generated keys are UUIDv7 strings, which sort
// by creation time.
func NewTree() *Tree {
	return &Tree{
		root:   make(map[string]any),
		newKey: newKey,
	}
}

// withRoot returns a separate tree holding a copy of root that generates keys
// the same way as t.
func (t *Tree) withRoot(root map[string]any) *Tree {
	w := &Tree{root: make(map[string]any), newKey: t.newKey}
	w.Restore(root)
	return w
}

func newKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Get returns a copy of the value at path, or nil.
func (t *Tree) Get(path string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var cur any = t.root
	for _, p := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[p]; !ok {
			return nil
		}
	}
	if m, ok := cur.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	return deepCopy(cur)
}

// Set replaces the value at path. Setting the root requires an object.
func (t *Tree) Set(path string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setLocked(splitPath(path), deepCopy(value))
}

func (t *Tree) setLocked(parts []string, value any) error {
	if len(parts) == 0 {
		switch v := value.(type) {
		case nil:
			t.root = make(map[string]any)
		case map[string]any:
			t.root = v
		default:
			return fmt.Errorf("setting root: value must be an object, got %T", value)
		}
		return nil
	}

	if isEmpty(value) {
		t.deleteLocked(parts)
		return nil
	}

	cur := t.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

func (t *Tree) deleteLocked(parts []string) {
	chain := []map[string]any{t.root}
	cur := t.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		chain = append(chain, next)
		cur = next
	}
	delete(cur, parts[len(parts)-1])

	for i := len(chain) - 1; i > 0; i-- {
		if len(chain[i]) > 0 {
			break
		}
		delete(chain[i-1], parts[i-1])
	}
}

// Push stores value under a newly generated child key of path and returns the key.
func (t *Tree) Push(path string, value any) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.newKey()
	if err := t.setLocked(append(splitPath(path), key), deepCopy(value)); err != nil {
		return "", err
	}
	return key, nil
}

// Update writes each child of fields below path, leaving other children alone.
func (t *Tree) Update(path string, fields map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	base := splitPath(path)
	for k, v := range fields {
		child := append(append([]string{}, base...), splitPath(k)...)
		if err := t.setLocked(child, deepCopy(v)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the node at path.
func (t *Tree) Delete(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if parts := splitPath(path); len(parts) > 0 {
		t.deleteLocked(parts)
	} else {
		t.root = make(map[string]any)
	}
}

// Snapshot returns a deep copy of the whole tree.
func (t *Tree) Snapshot() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return deepCopy(t.root).(map[string]any)
}

// Restore replaces the whole tree.
func (t *Tree) Restore(root map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if root == nil {
		root = make(map[string]any)
	}
	t.root = deepCopy(root).(map[string]any)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	}
	return v
}
