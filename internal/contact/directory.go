// Package contact is the directory of messaging contacts. Identity is the
// normalized phone number and nothing else.
package contact

import (
	"context"
	"errors"
	"time"

	"warelay/internal/domain"
	"warelay/internal/phone"
	"warelay/internal/store"
)

type Store interface {
	InsertContact(ctx context.Context, in store.ContactInsert) (bool, error)
	GetContactByPhone(ctx context.Context, phone string) (store.Contact, bool, error)
	GetContact(ctx context.Context, id string) (store.Contact, bool, error)
	SetContactBlocked(ctx context.Context, id string, blocked bool, now time.Time) (bool, error)
}

type Directory struct {
	Store Store
	IDGen func() string
	Now   func() time.Time
}

type CreateParams struct {
	Phone        string
	Name         string
	Tags         []string
	CustomFields map[string]string
	Owner        string
}

// Create inserts a new contact. The normalized phone must be unused;
// a second contact normalizing to the same value is a conflict.
func (d *Directory) Create(ctx context.Context, p CreateParams) (store.Contact, error) {
	norm := phone.Normalize(p.Phone)
	if !phone.IsValid(norm) {
		return store.Contact{}, domain.ErrInvalidPhone
	}

	in := store.ContactInsert{
		ID:           d.IDGen(),
		Phone:        norm,
		Name:         p.Name,
		Tags:         p.Tags,
		CustomFields: p.CustomFields,
		Owner:        p.Owner,
		Now:          d.Now(),
	}
	inserted, err := d.Store.InsertContact(ctx, in)
	if err != nil {
		return store.Contact{}, err
	}
	if !inserted {
		return store.Contact{}, domain.ErrDuplicatePhone
	}

	c, found, err := d.Store.GetContactByPhone(ctx, norm)
	if err != nil {
		return store.Contact{}, err
	}
	if !found {
		return store.Contact{}, errors.New("contact vanished after insert")
	}
	return c, nil
}

func (d *Directory) GetByPhone(ctx context.Context, raw string) (store.Contact, error) {
	c, found, err := d.Store.GetContactByPhone(ctx, phone.Normalize(raw))
	if err != nil {
		return store.Contact{}, err
	}
	if !found {
		return store.Contact{}, domain.ErrNotFound
	}
	return c, nil
}

func (d *Directory) Get(ctx context.Context, id string) (store.Contact, error) {
	c, found, err := d.Store.GetContact(ctx, id)
	if err != nil {
		return store.Contact{}, err
	}
	if !found {
		return store.Contact{}, domain.ErrNotFound
	}
	return c, nil
}

// SetBlocked flips the block flag. Blocked contacts are rejected at send
// time; inbound traffic is still recorded.
func (d *Directory) SetBlocked(ctx context.Context, id string, blocked bool) error {
	updated, err := d.Store.SetContactBlocked(ctx, id, blocked, d.Now())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

// FindOrCreateByPhone resolves a raw phone to a contact, creating one on
// first sight. The returned bool reports whether a contact was created.
// Losing the insert race to a concurrent caller is not an error; the
// winner's row is returned.
func (d *Directory) FindOrCreateByPhone(ctx context.Context, raw, name string, tags []string) (store.Contact, bool, error) {
	norm := phone.Normalize(raw)
	if !phone.IsValid(norm) {
		return store.Contact{}, false, domain.ErrInvalidPhone
	}

	if c, found, err := d.Store.GetContactByPhone(ctx, norm); err != nil {
		return store.Contact{}, false, err
	} else if found {
		return c, false, nil
	}

	inserted, err := d.Store.InsertContact(ctx, store.ContactInsert{
		ID:    d.IDGen(),
		Phone: norm,
		Name:  name,
		Tags:  tags,
		Now:   d.Now(),
	})
	if err != nil {
		return store.Contact{}, false, err
	}

	c, found, err := d.Store.GetContactByPhone(ctx, norm)
	if err != nil {
		return store.Contact{}, false, err
	}
	if !found {
		return store.Contact{}, false, errors.New("contact vanished after insert")
	}
	return c, inserted, nil
}
