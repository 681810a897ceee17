package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory two-level document tree: collection -> key -> body.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]json.RawMessage
	rawRoot map[string]json.RawMessage // overrides Get of a whole collection
	fail    map[string]bool            // op name -> fail
	puts    []string
	deletes []string
	nextKey int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    make(map[string]map[string]json.RawMessage),
		rawRoot: make(map[string]json.RawMessage),
		fail:    make(map[string]bool),
	}
}

func (s *fakeStore) seed(collection, key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	s.docs[collection][key] = json.RawMessage(body)
}

func (s *fakeStore) doc(collection, key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.docs[collection][key]
	if !ok {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false
	}
	return out, true
}

func split(path string) (string, string) {
	collection, key, _ := strings.Cut(path, "/")
	return collection, key
}

func (s *fakeStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail["get"] {
		return nil, errStoreDown
	}
	collection, key := split(path)
	if key != "" {
		return s.docs[collection][key], nil
	}
	if raw, ok := s.rawRoot[collection]; ok {
		return raw, nil
	}
	if len(s.docs[collection]) == 0 {
		return nil, nil
	}
	return json.Marshal(s.docs[collection])
}

func (s *fakeStore) Create(_ context.Context, path string, doc any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail["create"] {
		return "", errStoreDown
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	s.nextKey++
	key := "-K" + strconv.Itoa(s.nextKey)
	if s.docs[path] == nil {
		s.docs[path] = make(map[string]json.RawMessage)
	}
	s.docs[path][key] = body
	return key, nil
}

func (s *fakeStore) Put(_ context.Context, path string, doc any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail["put"] {
		return nil, errStoreDown
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	collection, key := split(path)
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]json.RawMessage)
	}
	s.docs[collection][key] = body
	s.puts = append(s.puts, path)
	return body, nil
}

func (s *fakeStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail["delete"] {
		return errStoreDown
	}
	collection, key := split(path)
	delete(s.docs[collection], key)
	s.deletes = append(s.deletes, path)
	return nil
}

func (s *fakeStore) setFail(op string, fail bool) {
	s.mu.Lock()
	s.fail[op] = fail
	s.mu.Unlock()
}

// recordingEvents captures LogEvent calls.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.data = append(r.data, data)
	return nil
}

func (r *recordingEvents) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// fixedIDs hands out ids from a list, then falls back to a counter.
type fixedIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (f *fixedIDs) NewID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) > 0 {
		id := f.ids[0]
		f.ids = f.ids[1:]
		return id
	}
	f.n++
	return "gen-" + strconv.Itoa(f.n)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestRepo(store *fakeStore, ids ...string) (TaskRepository, *recordingEvents) {
	events := &recordingEvents{}
	repo := NewTaskRepository(store, &fixedIDs{ids: ids}, events, quietLogger())
	repo.(*taskRepository).now = func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	return repo, events
}
