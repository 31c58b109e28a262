package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"warelay/internal/conversation"
	"warelay/internal/domain"
	"warelay/internal/store"
)

type fakeInboundContacts struct {
	created []string
}

func (f *fakeInboundContacts) FindOrCreateByPhone(_ context.Context, raw, name string, _ []string) (store.Contact, bool, error) {
	f.created = append(f.created, raw)
	return store.Contact{ID: "ct_in", Phone: raw, Name: name}, true, nil
}

type fakeInboundConvs struct {
	recorded []time.Time
}

func (f *fakeInboundConvs) FindOrCreate(context.Context, string) (store.Conversation, conversation.Resolution, error) {
	return store.Conversation{ID: "conv_in", ContactID: "ct_in"}, conversation.ResolvedCreated, nil
}

func (f *fakeInboundConvs) RecordInbound(_ context.Context, _ string, ts time.Time) error {
	f.recorded = append(f.recorded, ts)
	return nil
}

func newInbound(st *fakeStore, contacts *fakeInboundContacts, convs *fakeInboundConvs) *Inbound {
	return &Inbound{
		Store:         st,
		Contacts:      contacts,
		Conversations: convs,
		MsgID:         func() string { return "msg_in1" },
		Now:           func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestInboundHandle(t *testing.T) {
	st := &fakeStore{}
	contacts := &fakeInboundContacts{}
	convs := &fakeInboundConvs{}
	h := newInbound(st, contacts, convs)

	msg, err := h.Handle(context.Background(), domain.InboundMessage{
		WaNumber:  "+911111111111",
		Mobile:    "+919876543210",
		Name:      "Asha",
		Text:      "hi there",
		Type:      "text",
		Timestamp: "1740830400000",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if msg.Direction != string(domain.DirectionInbound) || msg.ConversationID != "conv_in" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(contacts.created) != 1 || contacts.created[0] != "+919876543210" {
		t.Fatalf("contact resolution used wrong phone: %v", contacts.created)
	}
	if len(st.messages) != 1 || st.messages[0].Body != "hi there" {
		t.Fatalf("message not persisted: %+v", st.messages)
	}
	if len(convs.recorded) != 1 {
		t.Fatal("inbound watermark not recorded")
	}
	want := time.UnixMilli(1740830400000).UTC()
	if !convs.recorded[0].Equal(want) {
		t.Fatalf("watermark ts = %v, want %v", convs.recorded[0], want)
	}
}

func TestInboundFallsBackToWaNumber(t *testing.T) {
	st := &fakeStore{}
	contacts := &fakeInboundContacts{}
	h := newInbound(st, contacts, &fakeInboundConvs{})

	_, err := h.Handle(context.Background(), domain.InboundMessage{
		WaNumber:  "+911111111111",
		Text:      "hi",
		Type:      "text",
		Timestamp: "1740830400000",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if contacts.created[0] != "+911111111111" {
		t.Fatalf("expected fallback to waNumber, got %v", contacts.created)
	}
}

func TestInboundRejectsBadPayloads(t *testing.T) {
	h := newInbound(&fakeStore{}, &fakeInboundContacts{}, &fakeInboundConvs{})

	cases := []struct {
		name string
		in   domain.InboundMessage
		want error
	}{
		{"missing everything", domain.InboundMessage{}, domain.ErrMissingFields},
		{"unknown type", domain.InboundMessage{Mobile: "+919876543210", Text: "x", Type: "video", Timestamp: "1740830400000"}, domain.ErrUnknownType},
		{"bad timestamp", domain.InboundMessage{Mobile: "+919876543210", Text: "x", Type: "text", Timestamp: "yesterday"}, domain.ErrBadTimestamp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}
