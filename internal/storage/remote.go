// Package storage provides the client for the path-addressed JSON document
// store that holds tasks and contacts.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrRequestFailed is wrapped by every error caused by a failed store call:
// transport errors, non-2xx responses and undecodable bodies.
var ErrRequestFailed = errors.New("store request failed")

// RemoteStore is a generic CRUD surface over a path-addressed JSON document
// store. Paths are slash separated without a leading slash, e.g. "tasks/123".
type RemoteStore interface {
	// Get returns the JSON stored at path, or nil if nothing is stored there.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Create appends doc under path and returns the key assigned by the store.
	Create(ctx context.Context, path string, doc any) (string, error)
	// Put replaces whatever is stored at path with doc.
	Put(ctx context.Context, path string, doc any) (json.RawMessage, error)
	// Delete removes the node at path.
	Delete(ctx context.Context, path string) error
}

// CleanPath trims surrounding slashes and whitespace from a store path.
func CleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
