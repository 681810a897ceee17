package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Snapshotter persists the whole tree between runs. Several processes may
// share one snapshot, so writers go through Transact.
type Snapshotter interface {
	Load() (map[string]any, error)
	Save(root map[string]any) error
	// Transact loads the current root, passes it to fn and saves what fn
	// returns, holding the snapshot's write lock throughout. fn receives nil
	// when nothing has been persisted yet. An error from fn is returned
	// unchanged and nothing is saved.
	Transact(fn func(root map[string]any) (map[string]any, error)) error
	Close() error
}

// NewSnapshotter returns the snapshotter for kind: "yaml", "sqlite" or
// "none". A "none" snapshotter keeps nothing.
func NewSnapshotter(kind, path string) (Snapshotter, error) {
	switch kind {
	case "", "none":
		return &memSnapshot{}, nil
	case "yaml":
		if path == "" {
			return nil, fmt.Errorf("creating yaml snapshot: path must not be empty")
		}
		return &yamlSnapshot{path: path}, nil
	case "sqlite":
		return newSQLiteSnapshot(path)
	}
	return nil, fmt.Errorf("creating snapshot: unknown kind %q", kind)
}

// memSnapshot persists nothing. Transact only serializes writers.
type memSnapshot struct {
	mu sync.Mutex
}

func (*memSnapshot) Load() (map[string]any, error) { return nil, nil }
func (*memSnapshot) Save(map[string]any) error     { return nil }
func (*memSnapshot) Close() error                  { return nil }

func (m *memSnapshot) Transact(fn func(map[string]any) (map[string]any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := fn(nil)
	return err
}

// yamlSnapshot writes the tree as a single YAML document.
type yamlSnapshot struct {
	path string
}

func (s *yamlSnapshot) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
	}
	if raw == nil {
		return nil, nil
	}
	root, ok := normalizeYAML(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parsing snapshot %s: top level must be a mapping", s.path)
	}
	return root, nil
}

// Save replaces the snapshot with root.
func (s *yamlSnapshot) Save(root map[string]any) error {
	return s.Transact(func(map[string]any) (map[string]any, error) { return root, nil })
}

// Transact holds the snapshot's lock file while it reloads the file, applies
// fn and renames a temporary file over the snapshot.
func (s *yamlSnapshot) Transact(fn func(map[string]any) (map[string]any, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	current, err := s.Load()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func (s *yamlSnapshot) Close() error { return nil }

// normalizeYAML converts mappings with non-string keys into string-keyed maps
// so the tree only ever holds JSON-compatible values.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeYAML(val)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range x {
			x[i] = normalizeYAML(val)
		}
		return x
	}
	return v
}
