package store

import "time"

type Contact struct {
	ID           string
	Phone        string
	Name         string
	Tags         []string
	CustomFields map[string]string
	Blocked      bool
	Owner        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ContactInsert struct {
	ID           string
	Phone        string
	Name         string
	Tags         []string
	CustomFields map[string]string
	Owner        string
	Now          time.Time
}

type Conversation struct {
	ID                   string
	ContactID            string
	Status               string
	LastMessageAt        *time.Time
	LastInboundMessageAt *time.Time
	UnreadCount          int
	Assignee             string
	Tags                 []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type ConversationInsert struct {
	ID        string
	ContactID string
	Status    string
	Now       time.Time
}

type Message struct {
	ID             string
	ConversationID string
	ContactID      string
	VendorMsgID    string
	Direction      string
	Type           string
	Body           string
	MediaURL       string
	TemplateID     string
	Vars           map[string]string
	Status         string
	Timestamp      time.Time
	Read           bool
}

type MessageInsert struct {
	ID             string
	ConversationID string
	ContactID      string
	VendorMsgID    string
	Direction      string
	Type           string
	Body           string
	MediaURL       string
	TemplateID     string
	Vars           map[string]string
	Status         string
	Timestamp      time.Time
	Now            time.Time
}

// DeliveryReport rows are append-only; (VendorMsgID, EventType, EventTs)
// is unique so redelivered webhooks collapse to one row.
type DeliveryReport struct {
	VendorMsgID string
	EventType   string
	Cause       string
	ErrCode     string
	DestAddr    string
	Channel     string
	NoOfFrags   int
	EventTs     time.Time
	ReceivedAt  time.Time
}

type Template struct {
	ID     string
	Name   string
	Body   string
	Header string
	Footer string
}

type Campaign struct {
	ID          string
	Name        string
	TemplateID  string
	Owner       string
	Status      string
	SentCount   int
	FailedCount int
	TotalCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CampaignInsert struct {
	ID         string
	Name       string
	TemplateID string
	Owner      string
	Status     string
	TotalCount int
	Now        time.Time
}

type CampaignRecipient struct {
	CampaignID string
	Position   int
	ContactID  string
	Phone      string
	Name       string
	Vars       map[string]string
	Outcome    string
	Reason     string
}
