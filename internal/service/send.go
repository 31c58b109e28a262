package service

import (
	"context"
	"log/slog"
	"time"

	"warelay/internal/conversation"
	"warelay/internal/domain"
	"warelay/internal/observability"
	"warelay/internal/store"
	"warelay/internal/util"
)

type Store interface {
	InsertMessage(ctx context.Context, in store.MessageInsert) error
	TouchConversation(ctx context.Context, id string, ts time.Time) error
	GetTemplate(ctx context.Context, id string) (store.Template, bool, error)
}

type Contacts interface {
	GetByPhone(ctx context.Context, raw string) (store.Contact, error)
}

type Conversations interface {
	FindOrCreate(ctx context.Context, contactID string) (store.Conversation, conversation.Resolution, error)
	Window(ctx context.Context, convID string) (domain.WindowStatus, error)
}

// Gateway is the guarded vendor sender; implementations own retry and
// breaker policy and return the vendor message id.
type Gateway interface {
	SendText(ctx context.Context, mobile, text string) (string, error)
	SendTemplate(ctx context.Context, mobile, body, header, footer string) (string, error)
	SendMedia(ctx context.Context, mobile, mediaURL, kind, caption string) (string, error)
}

type SendRequest struct {
	Phone      string             `json:"phone"`
	Type       domain.MessageType `json:"type"`
	Text       string             `json:"text,omitempty"`
	MediaURL   string             `json:"mediaUrl,omitempty"`
	Caption    string             `json:"caption,omitempty"`
	TemplateID string             `json:"templateId,omitempty"`
	Vars       map[string]string  `json:"vars,omitempty"`
}

func (r SendRequest) Validate() error {
	if r.Phone == "" {
		return domain.ErrMissingFields
	}
	if !r.Type.Valid() {
		return domain.ErrUnknownType
	}
	switch r.Type {
	case domain.TypeText, domain.TypeButton:
		if r.Text == "" {
			return domain.ErrMissingFields
		}
	case domain.TypeImage, domain.TypeDocument:
		if r.MediaURL == "" {
			return domain.ErrMissingFields
		}
	case domain.TypeTemplate:
		if r.TemplateID == "" {
			return domain.ErrMissingFields
		}
	}
	return nil
}

// Messenger handles interactive (single-recipient) sends.
type Messenger struct {
	Store         Store
	Contacts      Contacts
	Conversations Conversations
	Gateway       Gateway
	MsgID         func() string
	Now           func() time.Time
}

// Send delivers one message to one contact. Session messages are gated by
// the 24-hour window; templates bypass it. A vendor failure still
// persists the message with status failed so the failure shows up in
// conversation history; the error is returned alongside.
func (m *Messenger) Send(ctx context.Context, req SendRequest) (store.Message, error) {
	if err := req.Validate(); err != nil {
		return store.Message{}, err
	}

	c, err := m.Contacts.GetByPhone(ctx, req.Phone)
	if err != nil {
		return store.Message{}, err
	}
	if c.Blocked {
		return store.Message{}, domain.ErrBlockedContact
	}

	conv, res, err := m.Conversations.FindOrCreate(ctx, c.ID)
	if err != nil {
		return store.Message{}, err
	}
	observability.ConversationResolutions.WithLabelValues(string(res)).Inc()

	if req.Type.Session() {
		w, err := m.Conversations.Window(ctx, conv.ID)
		if err != nil {
			return store.Message{}, err
		}
		if !w.CanSendRegularMessages {
			return store.Message{}, domain.ErrWindowClosed
		}
	}

	body := req.Text
	var tpl store.Template
	if req.Type == domain.TypeTemplate {
		var found bool
		tpl, found, err = m.Store.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return store.Message{}, err
		}
		if !found {
			return store.Message{}, domain.ErrNotFound
		}
		body = util.RenderTemplate(tpl.Body, req.Vars)
	}

	vendorID, sendErr := m.dispatch(ctx, c.Phone, req, body, tpl)

	now := m.Now()
	msg := store.MessageInsert{
		ID:             m.MsgID(),
		ConversationID: conv.ID,
		ContactID:      c.ID,
		VendorMsgID:    vendorID,
		Direction:      string(domain.DirectionOutbound),
		Type:           string(req.Type),
		Body:           body,
		MediaURL:       req.MediaURL,
		TemplateID:     req.TemplateID,
		Vars:           req.Vars,
		Status:         string(domain.StatusSent),
		Timestamp:      now,
		Now:            now,
	}
	if sendErr != nil {
		msg.Status = string(domain.StatusFailed)
	}
	if err := m.Store.InsertMessage(ctx, msg); err != nil {
		slog.Error("persist outbound message failed", "err", err, "conversation_id", conv.ID)
		if sendErr == nil {
			return store.Message{}, err
		}
		return store.Message{}, sendErr
	}
	_ = m.Store.TouchConversation(ctx, conv.ID, now)

	out := store.Message{
		ID: msg.ID, ConversationID: conv.ID, ContactID: c.ID, VendorMsgID: vendorID,
		Direction: msg.Direction, Type: msg.Type, Body: body, MediaURL: msg.MediaURL,
		TemplateID: msg.TemplateID, Vars: msg.Vars, Status: msg.Status, Timestamp: now,
	}
	return out, sendErr
}

func (m *Messenger) dispatch(ctx context.Context, mobile string, req SendRequest, body string, tpl store.Template) (string, error) {
	switch req.Type {
	case domain.TypeTemplate:
		return m.Gateway.SendTemplate(ctx, mobile, body, tpl.Header, tpl.Footer)
	case domain.TypeImage, domain.TypeDocument:
		return m.Gateway.SendMedia(ctx, mobile, req.MediaURL, string(req.Type), req.Caption)
	default:
		return m.Gateway.SendText(ctx, mobile, body)
	}
}
