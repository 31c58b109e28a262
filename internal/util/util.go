package util

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func NewMessageID() string {
	// ULID is sortable (nice for DB indexes and dashboards)
	t := time.Now().UTC()
	return "msg_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewConversationID() string {
	t := time.Now().UTC()
	return "conv_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewContactID() string {
	t := time.Now().UTC()
	return "ct_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NewCampaignID() string {
	return uuid.NewString()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
