package core

import (
	"sync"

	"github.com/joinboard/join/pkg/models"
)

// Badge caps per surface. The add-task form shows fewer badges than the board
// cards and the detail overlay.
const (
	FormBadgeLimit  = 4
	BoardBadgeLimit = 5
)

// ContactSelection is the ordered set of contacts picked while composing or
// editing a task. Entries are unique by name and keep first-insertion order.
type ContactSelection struct {
	mu   sync.Mutex
	refs []models.ContactRef
}

// NewContactSelection returns an empty selection.
func NewContactSelection() *ContactSelection {
	return &ContactSelection{}
}

// Add appends ref unless a contact with the same name is already selected.
func (s *ContactSelection) Add(ref models.ContactRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(ref.Name) >= 0 {
		return
	}
	if ref.Initials == "" {
		ref.Initials = models.Initials(ref.Name)
	}
	s.refs = append(s.refs, ref)
}

// Remove drops the contact with the given name, if present.
func (s *ContactSelection) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(name); i >= 0 {
		s.refs = append(s.refs[:i], s.refs[i+1:]...)
	}
}

// Toggle adds or removes ref following a checkbox state.
func (s *ContactSelection) Toggle(ref models.ContactRef, selected bool) {
	if selected {
		s.Add(ref)
		return
	}
	s.Remove(ref.Name)
}

func (s *ContactSelection) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(name) >= 0
}

// List returns a copy of the selection in order.
func (s *ContactSelection) List() []models.ContactRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ContactRef{}, s.refs...)
}

func (s *ContactSelection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Reset clears the selection. Called when a form resets or a task is created.
func (s *ContactSelection) Reset() {
	s.mu.Lock()
	s.refs = nil
	s.mu.Unlock()
}

// Badges returns the first limit entries and the "+K" overflow count.
func (s *ContactSelection) Badges(limit int) ([]models.ContactRef, int) {
	return Badges(s.List(), limit)
}

// Badges splits refs into the visible badges and the overflow count.
func Badges(refs []models.ContactRef, limit int) ([]models.ContactRef, int) {
	if limit < 0 {
		limit = 0
	}
	if len(refs) <= limit {
		return append([]models.ContactRef{}, refs...), 0
	}
	return append([]models.ContactRef{}, refs[:limit]...), len(refs) - limit
}

func (s *ContactSelection) indexOf(name string) int {
	for i, r := range s.refs {
		if r.Name == name {
			return i
		}
	}
	return -1
}
