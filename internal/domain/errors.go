package domain

import (
	"errors"
	"strconv"
)

var (
	ErrMissingFields  = errors.New("missing required fields")
	ErrUnknownType    = errors.New("unrecognized message type")
	ErrBadTimestamp   = errors.New("timestamp must be a positive epoch value")
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrDuplicatePhone = errors.New("contact with this phone already exists")
	ErrNotFound       = errors.New("not found")
	ErrBlockedContact = errors.New("contact is blocked")
	ErrWindowClosed   = errors.New("24-hour messaging window is closed")
	ErrNoRecipients   = errors.New("no valid recipients")
	ErrCampaignState  = errors.New("campaign is not in a valid state for this operation")
)

func parsePositiveInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ErrBadTimestamp
	}
	return n, nil
}
