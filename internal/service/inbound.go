package service

import (
	"context"
	"time"

	"warelay/internal/conversation"
	"warelay/internal/domain"
	"warelay/internal/observability"
	"warelay/internal/store"
)

type InboundStore interface {
	InsertMessage(ctx context.Context, in store.MessageInsert) error
}

type InboundContacts interface {
	FindOrCreateByPhone(ctx context.Context, raw, name string, tags []string) (store.Contact, bool, error)
}

type InboundConversations interface {
	FindOrCreate(ctx context.Context, contactID string) (store.Conversation, conversation.Resolution, error)
	RecordInbound(ctx context.Context, convID string, ts time.Time) error
}

// Inbound processes customer-originated messages arriving on the vendor
// webhook. Unknown senders get a contact created on first sight.
type Inbound struct {
	Store         InboundStore
	Contacts      InboundContacts
	Conversations InboundConversations
	MsgID         func() string
	Now           func() time.Time
}

func (h *Inbound) Handle(ctx context.Context, in domain.InboundMessage) (store.Message, error) {
	if err := in.Validate(); err != nil {
		return store.Message{}, err
	}
	ts, err := in.ParseTimestamp()
	if err != nil {
		return store.Message{}, err
	}

	phone := in.Mobile
	if phone == "" {
		phone = in.WaNumber
	}
	c, created, err := h.Contacts.FindOrCreateByPhone(ctx, phone, in.Name, []string{"whatsapp-inbound"})
	if err != nil {
		return store.Message{}, err
	}
	if created {
		observability.WebhookEvents.WithLabelValues("contact_created", "ok").Inc()
	}

	conv, res, err := h.Conversations.FindOrCreate(ctx, c.ID)
	if err != nil {
		return store.Message{}, err
	}
	observability.ConversationResolutions.WithLabelValues(string(res)).Inc()

	now := h.Now()
	msg := store.MessageInsert{
		ID:             h.MsgID(),
		ConversationID: conv.ID,
		ContactID:      c.ID,
		Direction:      string(domain.DirectionInbound),
		Type:           in.Type,
		Body:           in.Text,
		MediaURL:       in.Image,
		Status:         string(domain.StatusDelivered),
		Timestamp:      ts,
		Now:            now,
	}
	if err := h.Store.InsertMessage(ctx, msg); err != nil {
		return store.Message{}, err
	}
	if err := h.Conversations.RecordInbound(ctx, conv.ID, ts); err != nil {
		return store.Message{}, err
	}

	return store.Message{
		ID: msg.ID, ConversationID: conv.ID, ContactID: c.ID,
		Direction: msg.Direction, Type: msg.Type, Body: in.Text,
		MediaURL: in.Image, Status: msg.Status, Timestamp: ts,
	}, nil
}
