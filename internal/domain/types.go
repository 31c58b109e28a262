package domain

import "time"

type ConversationStatus string

const (
	ConversationOpen    ConversationStatus = "open"
	ConversationPending ConversationStatus = "pending"
	ConversationClosed  ConversationStatus = "closed"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationPending, ConversationClosed:
		return true
	}
	return false
}

// Active means the conversation is the contact's single live session.
func (s ConversationStatus) Active() bool {
	return s == ConversationOpen || s == ConversationPending
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Rank defines the happy-path order sent < delivered < read. Failed sits
// above everything: once a message is failed it stays failed.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusFailed:
		return 4
	}
	return 0
}

// Supersedes reports whether a newly computed status may overwrite cur.
// Late out-of-order reports must never regress a message.
func (s MessageStatus) Supersedes(cur MessageStatus) bool {
	if cur == StatusFailed {
		return false
	}
	if s == StatusFailed {
		return true
	}
	return s.Rank() > cur.Rank()
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeDocument MessageType = "document"
	TypeTemplate MessageType = "template"
	TypeButton   MessageType = "button"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeDocument, TypeTemplate, TypeButton:
		return true
	}
	return false
}

// Session messages are gated by the 24-hour window; template messages are
// pre-approved by the vendor and bypass it.
func (t MessageType) Session() bool {
	return t != TypeTemplate
}

type CampaignStatus string

const (
	CampaignPending            CampaignStatus = "pending"
	CampaignProcessing         CampaignStatus = "processing"
	CampaignCompleted          CampaignStatus = "completed"
	CampaignPartiallyCompleted CampaignStatus = "partially_completed"
	CampaignFailed             CampaignStatus = "failed"
)

type RecipientOutcome string

const (
	RecipientReady   RecipientOutcome = "ready"
	RecipientSent    RecipientOutcome = "sent"
	RecipientFailed  RecipientOutcome = "failed"
	RecipientSkipped RecipientOutcome = "skipped"
	RecipientError   RecipientOutcome = "error"
)

// WindowStatus answers the 24-hour messaging window query.
type WindowStatus struct {
	CanSendRegularMessages bool     `json:"canSendRegularMessages"`
	HoursRemaining         *float64 `json:"hoursRemaining,omitempty"`
}

// CampaignProgress is the status view computed from stored counters.
type CampaignProgress struct {
	Status      CampaignStatus `json:"status"`
	SentCount   int            `json:"sentCount"`
	FailedCount int            `json:"failedCount"`
	TotalCount  int            `json:"totalCount"`
	Progress    int            `json:"progress"`
}

// InboundMessage is the vendor's inbound message webhook payload.
// Mobile is the contact's phone of record; WaNumber is the business line.
type InboundMessage struct {
	WaNumber  string `json:"waNumber"`
	Mobile    string `json:"mobile"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image,omitempty"`
}

func (m InboundMessage) Validate() error {
	if m.Mobile == "" && m.WaNumber == "" {
		return ErrMissingFields
	}
	if !MessageType(m.Type).Valid() {
		return ErrUnknownType
	}
	if _, err := m.ParseTimestamp(); err != nil {
		return ErrBadTimestamp
	}
	return nil
}

// ParseTimestamp converts the epoch-millis string field to a time.
func (m InboundMessage) ParseTimestamp() (time.Time, error) {
	ms, err := parsePositiveInt(m.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
