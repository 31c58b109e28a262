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

type fakeStore struct {
	messages  []store.MessageInsert
	templates map[string]store.Template
	touched   []string
	insertErr error
}

func (f *fakeStore) InsertMessage(_ context.Context, in store.MessageInsert) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.messages = append(f.messages, in)
	return nil
}

func (f *fakeStore) TouchConversation(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id string) (store.Template, bool, error) {
	t, ok := f.templates[id]
	return t, ok, nil
}

type fakeContacts struct {
	contacts map[string]store.Contact
}

func (f *fakeContacts) GetByPhone(_ context.Context, raw string) (store.Contact, error) {
	c, ok := f.contacts[raw]
	if !ok {
		return store.Contact{}, domain.ErrNotFound
	}
	return c, nil
}

type fakeConvs struct {
	conv     store.Conversation
	windowOK bool
}

func (f *fakeConvs) FindOrCreate(context.Context, string) (store.Conversation, conversation.Resolution, error) {
	return f.conv, conversation.ResolvedExisting, nil
}

func (f *fakeConvs) Window(context.Context, string) (domain.WindowStatus, error) {
	return domain.WindowStatus{CanSendRegularMessages: f.windowOK}, nil
}

type fakeGateway struct {
	vendorID string
	err      error
	calls    []string
}

func (f *fakeGateway) SendText(_ context.Context, mobile, _ string) (string, error) {
	f.calls = append(f.calls, "text:"+mobile)
	return f.vendorID, f.err
}

func (f *fakeGateway) SendTemplate(_ context.Context, mobile, _, _, _ string) (string, error) {
	f.calls = append(f.calls, "template:"+mobile)
	return f.vendorID, f.err
}

func (f *fakeGateway) SendMedia(_ context.Context, mobile, _, _, _ string) (string, error) {
	f.calls = append(f.calls, "media:"+mobile)
	return f.vendorID, f.err
}

func newMessenger(st *fakeStore, gw *fakeGateway, windowOK bool) *Messenger {
	n := 0
	return &Messenger{
		Store: st,
		Contacts: &fakeContacts{contacts: map[string]store.Contact{
			"+919876543210": {ID: "ct_1", Phone: "+919876543210"},
			"+918888888888": {ID: "ct_blocked", Phone: "+918888888888", Blocked: true},
		}},
		Conversations: &fakeConvs{conv: store.Conversation{ID: "conv_1", ContactID: "ct_1"}, windowOK: windowOK},
		Gateway:       gw,
		MsgID: func() string {
			n++
			return "msg_" + string(rune('a'+n-1))
		},
		Now: func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSendTextInsideWindow(t *testing.T) {
	st := &fakeStore{}
	gw := &fakeGateway{vendorID: "v-123"}
	m := newMessenger(st, gw, true)

	msg, err := m.Send(context.Background(), SendRequest{Phone: "+919876543210", Type: domain.TypeText, Text: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Status != string(domain.StatusSent) || msg.VendorMsgID != "v-123" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(st.messages) != 1 || st.messages[0].Direction != string(domain.DirectionOutbound) {
		t.Fatalf("unexpected persisted messages %+v", st.messages)
	}
	if len(st.touched) != 1 || st.touched[0] != "conv_1" {
		t.Fatalf("conversation not touched: %v", st.touched)
	}
}

func TestSendSessionBlockedByClosedWindow(t *testing.T) {
	st := &fakeStore{}
	gw := &fakeGateway{vendorID: "v-123"}
	m := newMessenger(st, gw, false)

	_, err := m.Send(context.Background(), SendRequest{Phone: "+919876543210", Type: domain.TypeText, Text: "hello"})
	if !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("want ErrWindowClosed, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("gateway should not be called, got %v", gw.calls)
	}
	if len(st.messages) != 0 {
		t.Fatalf("nothing should be persisted, got %d messages", len(st.messages))
	}
}

func TestSendTemplateBypassesWindow(t *testing.T) {
	st := &fakeStore{templates: map[string]store.Template{
		"tpl_1": {ID: "tpl_1", Body: "Hi {name}"},
	}}
	gw := &fakeGateway{vendorID: "v-9"}
	m := newMessenger(st, gw, false)

	msg, err := m.Send(context.Background(), SendRequest{
		Phone: "+919876543210", Type: domain.TypeTemplate,
		TemplateID: "tpl_1", Vars: map[string]string{"name": "Asha"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Body != "Hi Asha" {
		t.Fatalf("template not rendered: %q", msg.Body)
	}
	if len(gw.calls) != 1 || gw.calls[0] != "template:+919876543210" {
		t.Fatalf("unexpected gateway calls %v", gw.calls)
	}
}

func TestSendVendorFailureStillPersisted(t *testing.T) {
	st := &fakeStore{}
	gw := &fakeGateway{err: errors.New("gateway down")}
	m := newMessenger(st, gw, true)

	_, err := m.Send(context.Background(), SendRequest{Phone: "+919876543210", Type: domain.TypeText, Text: "hello"})
	if err == nil {
		t.Fatal("want vendor error")
	}
	if len(st.messages) != 1 {
		t.Fatalf("failed send must still be persisted, got %d", len(st.messages))
	}
	if st.messages[0].Status != string(domain.StatusFailed) {
		t.Fatalf("want status failed, got %s", st.messages[0].Status)
	}
}

func TestSendBlockedContact(t *testing.T) {
	m := newMessenger(&fakeStore{}, &fakeGateway{}, true)
	_, err := m.Send(context.Background(), SendRequest{Phone: "+918888888888", Type: domain.TypeText, Text: "hi"})
	if !errors.Is(err, domain.ErrBlockedContact) {
		t.Fatalf("want ErrBlockedContact, got %v", err)
	}
}

func TestSendUnknownContact(t *testing.T) {
	m := newMessenger(&fakeStore{}, &fakeGateway{}, true)
	_, err := m.Send(context.Background(), SendRequest{Phone: "+910000000000", Type: domain.TypeText, Text: "hi"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	m := newMessenger(&fakeStore{}, &fakeGateway{}, true)
	cases := []SendRequest{
		{Type: domain.TypeText, Text: "hi"},
		{Phone: "+919876543210", Type: "video", Text: "hi"},
		{Phone: "+919876543210", Type: domain.TypeText},
		{Phone: "+919876543210", Type: domain.TypeImage},
		{Phone: "+919876543210", Type: domain.TypeTemplate},
	}
	for i, req := range cases {
		if _, err := m.Send(context.Background(), req); err == nil {
			t.Errorf("case %d: want validation error", i)
		}
	}
}
