package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

// Local reads and writes a Tree in-process. It has the same Get, Create, Put
// and Delete surface as the REST client, so the board can run straight
// against a snapshot file without a listening server.
type Local struct {
	tree     *Tree
	snapshot Snapshotter
	log      *log.Logger
}

// OpenLocal restores a tree from snap. Every write reloads the snapshot,
// applies its change and saves it before returning. A nil snap keeps the tree
// in memory only.
func OpenLocal(snap Snapshotter, logger *log.Logger) (*Local, error) {
	if snap == nil {
		snap = &memSnapshot{}
	}
	if logger == nil {
		logger = log.Default()
	}
	root, err := snap.Load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	tree := NewTree()
	tree.Restore(root)
	return &Local{tree: tree, snapshot: snap, log: logger}, nil
}

// NewLocal wraps an existing tree without persistence.
func NewLocal(tree *Tree) *Local {
	return &Local{tree: tree, snapshot: &memSnapshot{}, log: log.Default()}
}

// Tree returns the underlying tree.
func (l *Local) Tree() *Tree { return l.tree }

// Get reloads the tree from the snapshot, so writes made by other processes
// sharing it are visible.
func (l *Local) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := refresh(l.tree, l.snapshot); err != nil {
		return nil, err
	}
	v := l.tree.Get(path)
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", path, err)
	}
	return data, nil
}

func (l *Local) Create(ctx context.Context, path string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := toTreeValue(doc)
	if err != nil {
		return "", err
	}
	var key string
	err = l.commit(func(t *Tree) error {
		var err error
		key, err = t.Push(path, v)
		return err
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (l *Local) Put(ctx context.Context, path string, doc any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := toTreeValue(doc)
	if err != nil {
		return nil, err
	}
	if err := l.commit(func(t *Tree) error { return t.Set(path, v) }); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (l *Local) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.commit(func(t *Tree) error {
		t.Delete(path)
		return nil
	})
}

// Close releases the snapshot.
func (l *Local) Close() error {
	return l.snapshot.Close()
}

func (l *Local) commit(mutate func(*Tree) error) error {
	if err := commit(l.tree, l.snapshot, mutate); err != nil {
		l.log.Error("writing document", "err", err)
		return err
	}
	return nil
}

// commit applies mutate to a copy of the freshest persisted tree, saves the
// result and installs it as tree, all under the snapshot's write lock. When
// nothing is persisted the live tree is the freshest copy. Writers sharing a
// snapshot only overwrite each other on the same path.
func commit(tree *Tree, snap Snapshotter, mutate func(*Tree) error) error {
	return snap.Transact(func(root map[string]any) (map[string]any, error) {
		if root == nil {
			root = tree.Snapshot()
		}
		work := tree.withRoot(root)
		if err := mutate(work); err != nil {
			return nil, err
		}
		next := work.Snapshot()
		tree.Restore(next)
		return next, nil
	})
}

// refresh replaces tree with the persisted root, if there is one.
func refresh(tree *Tree, snap Snapshotter) error {
	root, err := snap.Load()
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if root != nil {
		tree.Restore(root)
	}
	return nil
}

// toTreeValue converts doc into the generic JSON shapes a Tree stores.
func toTreeValue(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return v, nil
}
