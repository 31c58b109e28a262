// Package conversation owns the per-contact session lifecycle: a contact
// has at most one live conversation, and the 24-hour messaging window
// decides whether free-form sends are allowed.
package conversation

import (
	"context"
	"time"

	"warelay/internal/domain"
	"warelay/internal/store"
)

// WindowDuration is the vendor's session-message policy window, measured
// from the last inbound message.
const WindowDuration = 24 * time.Hour

type Store interface {
	ActiveConversationByContact(ctx context.Context, contactID string) (store.Conversation, bool, error)
	LatestClosedConversationByContact(ctx context.Context, contactID string) (store.Conversation, bool, error)
	InsertConversation(ctx context.Context, in store.ConversationInsert) error
	ReopenConversation(ctx context.Context, id string, now time.Time) error
	SetConversationStatus(ctx context.Context, id, status string, now time.Time) error
	GetConversation(ctx context.Context, id string) (store.Conversation, bool, error)
	RecordInbound(ctx context.Context, convID string, ts, now time.Time) error
	MarkConversationRead(ctx context.Context, id string, now time.Time) error
	SetLastInboundAt(ctx context.Context, id string, ts, now time.Time) error
	LatestInboundAt(ctx context.Context, convID string) (time.Time, bool, error)
}

// Resolution reports how FindOrCreate satisfied the request. Callers use
// it for logging and metrics, never for business branching.
type Resolution string

const (
	ResolvedExisting Resolution = "existing"
	ResolvedReopened Resolution = "reopened"
	ResolvedCreated  Resolution = "created"
)

type Service struct {
	Store Store
	IDGen func() string
	Now   func() time.Time
}

// FindOrCreate returns the contact's single live conversation: an existing
// open/pending one untouched, the most recently closed one reopened, or a
// brand new one in open state.
func (s *Service) FindOrCreate(ctx context.Context, contactID string) (store.Conversation, Resolution, error) {
	if c, found, err := s.Store.ActiveConversationByContact(ctx, contactID); err != nil {
		return store.Conversation{}, "", err
	} else if found {
		return c, ResolvedExisting, nil
	}

	now := s.Now()

	if c, found, err := s.Store.LatestClosedConversationByContact(ctx, contactID); err != nil {
		return store.Conversation{}, "", err
	} else if found {
		if err := s.Store.ReopenConversation(ctx, c.ID, now); err != nil {
			return store.Conversation{}, "", err
		}
		c.Status = string(domain.ConversationOpen)
		c.UnreadCount = 0
		c.LastMessageAt = &now
		c.UpdatedAt = now
		return c, ResolvedReopened, nil
	}

	in := store.ConversationInsert{
		ID:        s.IDGen(),
		ContactID: contactID,
		Status:    string(domain.ConversationOpen),
		Now:       now,
	}
	if err := s.Store.InsertConversation(ctx, in); err != nil {
		return store.Conversation{}, "", err
	}
	return store.Conversation{
		ID:            in.ID,
		ContactID:     contactID,
		Status:        in.Status,
		LastMessageAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, ResolvedCreated, nil
}

// SetStatus is the administrative override; no side effects beyond the
// status itself.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.ConversationStatus) error {
	if !status.Valid() {
		return domain.ErrMissingFields
	}
	if _, found, err := s.Store.GetConversation(ctx, id); err != nil {
		return err
	} else if !found {
		return domain.ErrNotFound
	}
	return s.Store.SetConversationStatus(ctx, id, string(status), s.Now())
}

// RecordInbound registers an inbound message: unread goes up by one and
// the inbound watermark only ever moves forward.
func (s *Service) RecordInbound(ctx context.Context, convID string, ts time.Time) error {
	return s.Store.RecordInbound(ctx, convID, ts, s.Now())
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	if _, found, err := s.Store.GetConversation(ctx, id); err != nil {
		return err
	} else if !found {
		return domain.ErrNotFound
	}
	return s.Store.MarkConversationRead(ctx, id, s.Now())
}

// Window reports whether the conversation may carry free-form session
// messages. When the watermark was never set it is backfilled from the
// most recent inbound message; with no inbound traffic at all the window
// is closed and only templates go out.
func (s *Service) Window(ctx context.Context, convID string) (domain.WindowStatus, error) {
	c, found, err := s.Store.GetConversation(ctx, convID)
	if err != nil {
		return domain.WindowStatus{}, err
	}
	if !found {
		return domain.WindowStatus{}, domain.ErrNotFound
	}

	last := c.LastInboundMessageAt
	if last == nil {
		ts, found, err := s.Store.LatestInboundAt(ctx, convID)
		if err != nil {
			return domain.WindowStatus{}, err
		}
		if !found {
			return domain.WindowStatus{CanSendRegularMessages: false}, nil
		}
		if err := s.Store.SetLastInboundAt(ctx, convID, ts, s.Now()); err != nil {
			return domain.WindowStatus{}, err
		}
		last = &ts
	}

	elapsed := s.Now().Sub(*last)
	if elapsed > WindowDuration {
		return domain.WindowStatus{CanSendRegularMessages: false}, nil
	}
	remaining := (WindowDuration - elapsed).Hours()
	return domain.WindowStatus{CanSendRegularMessages: true, HoursRemaining: &remaining}, nil
}
