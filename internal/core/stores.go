package core

import (
	"context"
	"encoding/json"
)

// DocumentStore is the path-addressed CRUD surface the repositories need.
// storage.RemoteStore satisfies it; defining it here keeps core independent
// of the storage package.
type DocumentStore interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Create(ctx context.Context, path string, doc any) (string, error)
	Put(ctx context.Context, path string, doc any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) error
}

// Store paths used by the board.
const (
	tasksPath    = "tasks"
	contactsPath = "contacts"
)

func taskPath(id string) string {
	return tasksPath + "/" + id
}

func contactPath(id string) string {
	return contactsPath + "/" + id
}

// EventLogger records board events such as task.created or task.moved. It is
// the subset of the observability event log that core services need.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
