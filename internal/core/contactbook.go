package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/joinboard/join/pkg/models"
)

// ContactBook manages the contacts collection. Tasks embed contacts by value,
// so editing or deleting a contact never touches existing tasks.
type ContactBook interface {
	LoadAll(ctx context.Context) []models.Contact
	Create(ctx context.Context, draft ContactDraft) (*models.Contact, error)
	Update(ctx context.Context, contact models.Contact) error
	Delete(ctx context.Context, contactID string) error
	Get(contactID string) (models.Contact, bool)
	FindByName(name string) (models.Contact, bool)
	All() []models.Contact
	// Grouped returns contacts bucketed by the first letter of their name,
	// in letter order, as the contacts page lists them.
	Grouped() []ContactGroup
}

// ContactGroup is one letter section of the contact list.
type ContactGroup struct {
	Letter   string
	Contacts []models.Contact
}

type contactBook struct {
	store  DocumentStore
	events EventLogger
	log    *log.Logger
	color  func() string

	mu       sync.RWMutex
	contacts []models.Contact
}

// NewContactBook creates a ContactBook. events and logger may be nil.
func NewContactBook(store DocumentStore, events EventLogger, logger *log.Logger) ContactBook {
	if logger == nil {
		logger = log.Default()
	}
	return &contactBook{
		store:  store,
		events: events,
		log:    logger,
		color:  models.RandomColor,
	}
}

func (b *contactBook) LoadAll(ctx context.Context) []models.Contact {
	raw, err := b.store.Get(ctx, contactsPath)
	if err != nil {
		b.log.Error("loading contacts", "err", err)
		b.emit("store.failed", map[string]any{"op": "load_contacts", "error": err.Error()})
		b.replace(nil)
		return nil
	}
	contacts, skipped, err := decodeContacts(raw)
	if err != nil {
		b.log.Error("decoding contacts", "err", err)
		b.replace(nil)
		return nil
	}
	if len(skipped) > 0 {
		b.log.Warn("skipped undecodable contacts", "ids", skipped)
	}
	b.replace(contacts)
	return b.All()
}

func (b *contactBook) replace(contacts []models.Contact) {
	b.mu.Lock()
	b.contacts = contacts
	b.mu.Unlock()
}

// Create validates the draft, assigns initials and a palette color, and posts
// the contact. The store-generated key becomes the contact id.
func (b *contactBook) Create(ctx context.Context, draft ContactDraft) (*models.Contact, error) {
	if err := ValidateContactDraft(draft); err != nil {
		return nil, err
	}

	name := strings.Join(strings.Fields(draft.Name), " ")
	c := models.Contact{
		Name:     name,
		Email:    strings.TrimSpace(draft.Email),
		Phone:    strings.TrimSpace(draft.Phone),
		Color:    b.color(),
		Initials: models.Initials(name),
	}

	key, err := b.store.Create(ctx, contactsPath, c)
	if err != nil {
		b.log.Error("creating contact", "name", c.Name, "err", err)
		b.emit("store.failed", map[string]any{"op": "create_contact", "error": err.Error()})
		return nil, networkError("creating contact", err)
	}
	c.ID = key

	b.mu.Lock()
	b.contacts = append(b.contacts, c)
	sortContacts(b.contacts)
	b.mu.Unlock()

	b.emit("contact.created", map[string]any{"contact_id": c.ID, "name": c.Name})
	return &c, nil
}

// Update replaces a contact. Its color is kept from the stored record.
func (b *contactBook) Update(ctx context.Context, contact models.Contact) error {
	existing, ok := b.Get(contact.ID)
	if !ok {
		return nil
	}
	if err := ValidateContactDraft(ContactDraft{Name: contact.Name, Email: contact.Email}); err != nil {
		return err
	}
	contact.Color = existing.Color
	contact.Initials = models.Initials(contact.Name)

	if _, err := b.store.Put(ctx, contactPath(contact.ID), contact); err != nil {
		b.log.Error("updating contact", "id", contact.ID, "err", err)
		b.emit("store.failed", map[string]any{"op": "update_contact", "contact_id": contact.ID, "error": err.Error()})
		return networkError("updating contact", err)
	}

	b.mu.Lock()
	if i := b.indexOf(contact.ID); i >= 0 {
		b.contacts[i] = contact
		sortContacts(b.contacts)
	}
	b.mu.Unlock()
	return nil
}

func (b *contactBook) Delete(ctx context.Context, contactID string) error {
	if _, ok := b.Get(contactID); !ok {
		return nil
	}
	if err := b.store.Delete(ctx, contactPath(contactID)); err != nil {
		b.log.Error("deleting contact", "id", contactID, "err", err)
		b.emit("store.failed", map[string]any{"op": "delete_contact", "contact_id": contactID, "error": err.Error()})
		return networkError("deleting contact", err)
	}

	b.mu.Lock()
	if i := b.indexOf(contactID); i >= 0 {
		b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
	}
	b.mu.Unlock()

	b.emit("contact.deleted", map[string]any{"contact_id": contactID})
	return nil
}

func (b *contactBook) Get(contactID string) (models.Contact, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.indexOf(contactID); i >= 0 {
		return b.contacts[i], true
	}
	return models.Contact{}, false
}

// FindByName matches case-insensitively on the full name.
func (b *contactBook) FindByName(name string) (models.Contact, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.contacts {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return models.Contact{}, false
}

func (b *contactBook) All() []models.Contact {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.Contact{}, b.contacts...)
}

func (b *contactBook) Grouped() []ContactGroup {
	var groups []ContactGroup
	for _, c := range b.All() {
		letter := groupLetter(c.Name)
		if n := len(groups); n > 0 && groups[n-1].Letter == letter {
			groups[n-1].Contacts = append(groups[n-1].Contacts, c)
			continue
		}
		groups = append(groups, ContactGroup{Letter: letter, Contacts: []models.Contact{c}})
	}
	return groups
}

func (b *contactBook) indexOf(id string) int {
	for i, c := range b.contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (b *contactBook) emit(eventType string, data map[string]any) {
	if b.events == nil {
		return
	}
	if err := b.events.LogEvent(eventType, data); err != nil {
		b.log.Warn("recording event", "type", eventType, "err", err)
	}
}

func groupLetter(name string) string {
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
		break
	}
	return "#"
}

// sortContacts orders contacts by name ignoring case, then by id.
func sortContacts(cs []models.Contact) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := strings.ToLower(cs[i].Name), strings.ToLower(cs[j].Name)
		if a != b {
			return a < b
		}
		return cs[i].ID < cs[j].ID
	})
}
