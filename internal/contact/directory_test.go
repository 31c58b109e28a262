package contact

import (
	"context"
	"errors"
	"testing"
	"time"

	"warelay/internal/domain"
	"warelay/internal/store"
)

type fakeStore struct {
	byPhone map[string]store.Contact
}

func newFakeStore() *fakeStore {
	return &fakeStore{byPhone: map[string]store.Contact{}}
}

func (f *fakeStore) InsertContact(ctx context.Context, in store.ContactInsert) (bool, error) {
	if _, ok := f.byPhone[in.Phone]; ok {
		return false, nil
	}
	f.byPhone[in.Phone] = store.Contact{
		ID: in.ID, Phone: in.Phone, Name: in.Name, Tags: in.Tags,
		CustomFields: in.CustomFields, Owner: in.Owner,
		CreatedAt: in.Now, UpdatedAt: in.Now,
	}
	return true, nil
}

func (f *fakeStore) GetContactByPhone(ctx context.Context, phone string) (store.Contact, bool, error) {
	c, ok := f.byPhone[phone]
	return c, ok, nil
}

func (f *fakeStore) GetContact(ctx context.Context, id string) (store.Contact, bool, error) {
	for _, c := range f.byPhone {
		if c.ID == id {
			return c, true, nil
		}
	}
	return store.Contact{}, false, nil
}

func (f *fakeStore) SetContactBlocked(ctx context.Context, id string, blocked bool, now time.Time) (bool, error) {
	for phone, c := range f.byPhone {
		if c.ID == id {
			c.Blocked = blocked
			c.UpdatedAt = now
			f.byPhone[phone] = c
			return true, nil
		}
	}
	return false, nil
}

func newDirectory(s Store) *Directory {
	n := 0
	return &Directory{
		Store: s,
		IDGen: func() string { n++; return "ct_" + string(rune('a'+n)) },
		Now:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCreateDuplicateNormalizedPhoneConflicts(t *testing.T) {
	d := newDirectory(newFakeStore())
	ctx := context.Background()

	if _, err := d.Create(ctx, CreateParams{Phone: "+91 98765 43210", Name: "A"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// different raw form, same normalized number
	_, err := d.Create(ctx, CreateParams{Phone: "919876543210", Name: "B"})
	if !errors.Is(err, domain.ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestCreateInvalidPhone(t *testing.T) {
	d := newDirectory(newFakeStore())
	_, err := d.Create(context.Background(), CreateParams{Phone: "12345", Name: "A"})
	if !errors.Is(err, domain.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestFindOrCreateFirstSight(t *testing.T) {
	d := newDirectory(newFakeStore())
	ctx := context.Background()

	c, created, err := d.FindOrCreateByPhone(ctx, "9182919959 ", "Bob", []string{"whatsapp-inbound"})
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if !created {
		t.Fatal("expected contact to be created")
	}
	if c.Phone != "+9182919959" {
		t.Fatalf("expected normalized phone, got %q", c.Phone)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "whatsapp-inbound" {
		t.Fatalf("expected source tag, got %v", c.Tags)
	}

	c2, created, err := d.FindOrCreateByPhone(ctx, "+9182919959", "Bob Again", nil)
	if err != nil {
		t.Fatalf("second find or create: %v", err)
	}
	if created {
		t.Fatal("expected existing contact on second call")
	}
	if c2.ID != c.ID {
		t.Fatalf("expected same contact, got %s vs %s", c2.ID, c.ID)
	}
}

func TestGetByPhoneNormalizesLookup(t *testing.T) {
	d := newDirectory(newFakeStore())
	ctx := context.Background()

	if _, err := d.Create(ctx, CreateParams{Phone: "+15550001234", Name: "A"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	c, err := d.GetByPhone(ctx, "1 (555) 000-1234")
	if err != nil {
		t.Fatalf("get by raw phone: %v", err)
	}
	if c.Phone != "+15550001234" {
		t.Fatalf("unexpected phone %q", c.Phone)
	}

	if _, err := d.GetByPhone(ctx, "+19990000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetBlocked(t *testing.T) {
	d := newDirectory(newFakeStore())
	ctx := context.Background()

	c, err := d.Create(ctx, CreateParams{Phone: "+15550001234", Name: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := d.SetBlocked(ctx, c.ID, true); err != nil {
		t.Fatalf("block: %v", err)
	}
	got, err := d.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Blocked {
		t.Fatal("contact not blocked")
	}

	if err := d.SetBlocked(ctx, c.ID, false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	got, _ = d.Get(ctx, c.ID)
	if got.Blocked {
		t.Fatal("contact still blocked")
	}

	if err := d.SetBlocked(ctx, "ct_missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
