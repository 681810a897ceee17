package core

import (
	"context"
	"errors"
	"testing"

	"github.com/joinboard/join/pkg/models"
)

func newTestBook(store *fakeStore) ContactBook {
	b := NewContactBook(store, &recordingEvents{}, quietLogger())
	b.(*contactBook).color = func() string { return "#6E52FF" }
	return b
}

func TestContactBook_CreateAssignsKeyInitialsAndColor(t *testing.T) {
	store := newFakeStore()
	b := newTestBook(store)

	c, err := b.Create(context.Background(), ContactDraft{Name: " anna   maria berg ", Email: "anna@example.com", Phone: "+49 1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID != "-K1" {
		t.Errorf("id = %q, want store key", c.ID)
	}
	if c.Name != "anna maria berg" || c.Initials != "AMB" || c.Color != "#6E52FF" {
		t.Errorf("contact = %+v", c)
	}
	doc, ok := store.doc("contacts", "-K1")
	if !ok || doc["email"] != "anna@example.com" {
		t.Errorf("stored = %v", doc)
	}
}

func TestContactBook_CreateValidates(t *testing.T) {
	b := newTestBook(newFakeStore())

	_, err := b.Create(context.Background(), ContactDraft{Name: "Anna", Email: "not-an-email"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	_, err = b.Create(context.Background(), ContactDraft{Email: "a@b.c"})
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestContactBook_LoadAllSortsAndGroups(t *testing.T) {
	store := newFakeStore()
	store.seed("contacts", "c1", `{"name":"ben cole","email":"b@x.io","phone":"","color":"#FF7A00"}`)
	store.seed("contacts", "c2", `{"name":"Anna Berg","email":"a@x.io","phone":"","color":"#FF5EB3","initials":"AB"}`)
	store.seed("contacts", "c3", `{"name":"Bea Dorn","email":"d@x.io","phone":"","color":"#00BEE8"}`)
	b := newTestBook(store)

	all := b.LoadAll(context.Background())
	if len(all) != 3 || all[0].Name != "Anna Berg" || all[1].Name != "Bea Dorn" {
		t.Fatalf("order = %+v", all)
	}
	if all[2].Initials != "BC" {
		t.Errorf("initials not derived: %+v", all[2])
	}

	groups := b.Grouped()
	if len(groups) != 2 || groups[0].Letter != "A" || groups[1].Letter != "B" || len(groups[1].Contacts) != 2 {
		t.Errorf("groups = %+v", groups)
	}
}

func TestContactBook_UpdateKeepsColor(t *testing.T) {
	store := newFakeStore()
	store.seed("contacts", "c1", `{"name":"Ben Cole","email":"b@x.io","phone":"","color":"#FF7A00"}`)
	b := newTestBook(store)
	b.LoadAll(context.Background())

	err := b.Update(context.Background(), models.Contact{ID: "c1", Name: "Ben Carter", Email: "ben@x.io", Color: "#000000"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := b.Get("c1")
	if got.Color != "#FF7A00" || got.Initials != "BC" || got.Email != "ben@x.io" {
		t.Errorf("contact = %+v", got)
	}
}

func TestContactBook_DeleteAndFind(t *testing.T) {
	store := newFakeStore()
	store.seed("contacts", "c1", `{"name":"Ben Cole","email":"b@x.io","phone":"","color":"#FF7A00"}`)
	b := newTestBook(store)
	b.LoadAll(context.Background())

	if _, ok := b.FindByName("ben cole"); !ok {
		t.Fatal("FindByName should ignore case")
	}
	if err := b.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(b.All()) != 0 {
		t.Errorf("contact still cached")
	}
	if err := b.Delete(context.Background(), "c1"); err != nil {
		t.Errorf("deleting a missing contact should be a no-op, got %v", err)
	}
}

func TestContactBook_CreateNetworkFailure(t *testing.T) {
	store := newFakeStore()
	store.setFail("create", true)
	b := newTestBook(store)

	if _, err := b.Create(context.Background(), ContactDraft{Name: "Anna", Email: "a@x.io"}); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if len(b.All()) != 0 {
		t.Errorf("failed create must not cache the contact")
	}
}

func TestContactBook_StoreFailuresAreRecorded(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.seed("contacts", "c1", `{"name":"Anna Berg","email":"anna@example.com","color":"#FF7A00"}`)
	events := &recordingEvents{}
	b := NewContactBook(store, events, quietLogger())
	b.LoadAll(ctx)

	store.setFail("put", true)
	if err := b.Update(ctx, models.Contact{ID: "c1", Name: "Anna Lind", Email: "anna@example.com"}); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork from Update, got %v", err)
	}
	store.setFail("delete", true)
	if err := b.Delete(ctx, "c1"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork from Delete, got %v", err)
	}
	store.setFail("create", true)
	if _, err := b.Create(ctx, ContactDraft{Name: "Bo Chen", Email: "bo@example.com"}); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork from Create, got %v", err)
	}
	store.setFail("get", true)
	b.LoadAll(ctx)

	var ops []string
	for i, e := range events.events {
		if e == "store.failed" {
			ops = append(ops, events.data[i]["op"].(string))
		}
	}
	want := []string{"update_contact", "delete_contact", "create_contact", "load_contacts"}
	if len(ops) != len(want) {
		t.Fatalf("store.failed ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("store.failed op %d = %q, want %q", i, ops[i], want[i])
		}
	}
}
