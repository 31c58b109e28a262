package reconcile

import (
	"testing"

	"warelay/internal/domain"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		eventType, cause, errCode string
		want                      domain.MessageStatus
		known                     bool
	}{
		{"DELIVERED", "", "", domain.StatusDelivered, true},
		{"delivered", "", "", domain.StatusDelivered, true},
		{"SUCCESS", "", "", domain.StatusDelivered, true},
		{"READ", "", "", domain.StatusRead, true},
		{"FAILED", "", "", domain.StatusFailed, true},
		{"FAILURE", "", "", domain.StatusFailed, true},
		{"UNDELIV", "", "", domain.StatusFailed, true},
		{"", "", "0", domain.StatusDelivered, true},
		{"", "", "470", domain.StatusFailed, true},
		{"", "", "1006", domain.StatusFailed, true},
		{"", "BLOCKED", "", domain.StatusFailed, true},
		{"", "expired", "", domain.StatusFailed, true},
		// event marker wins over error code
		{"DELIVERED", "", "470", domain.StatusDelivered, true},
		// nothing recognized: default sent, flagged unknown
		{"QUEUED", "", "", domain.StatusSent, false},
		{"", "", "999", domain.StatusSent, false},
		{"", "", "", domain.StatusSent, false},
	}
	for _, c := range cases {
		got, known := MapStatus(c.eventType, c.cause, c.errCode)
		if got != c.want || known != c.known {
			t.Errorf("MapStatus(%q,%q,%q) = (%s,%v), want (%s,%v)",
				c.eventType, c.cause, c.errCode, got, known, c.want, c.known)
		}
	}
}
