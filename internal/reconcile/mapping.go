package reconcile

import (
	"strings"

	"warelay/internal/domain"
)

// Vendor error codes that mean the message will never arrive. Anything
// not listed here and not zero is treated as inconclusive.
var failureErrCodes = map[string]struct{}{
	"1":    {},
	"2":    {},
	"13":   {},
	"470":  {}, // re-engagement required, outside window
	"1002": {}, // receiver incapable
	"1006": {}, // recipient not found
}

var failureCauses = map[string]struct{}{
	"BLOCKED":           {},
	"BLACKLISTED":       {},
	"REJECTED":          {},
	"EXPIRED":           {},
	"ABSENT_SUBSCRIBER": {},
	"HANDSET_BUSY":      {},
}

// MapStatus folds the vendor's delivery vocabulary onto the internal
// status taxonomy. Precedence: explicit event markers, then the numeric
// error-code table, then known failure causes. An unrecognized
// combination maps to sent and is flagged so it shows up in metrics
// instead of erroring the pipeline.
func MapStatus(eventType, cause, errCode string) (domain.MessageStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "DELIVERED", "SUCCESS":
		return domain.StatusDelivered, true
	case "READ":
		return domain.StatusRead, true
	case "FAILED", "FAILURE", "UNDELIV":
		return domain.StatusFailed, true
	}

	code := strings.TrimSpace(errCode)
	if code == "0" {
		return domain.StatusDelivered, true
	}
	if _, ok := failureErrCodes[code]; ok {
		return domain.StatusFailed, true
	}

	if _, ok := failureCauses[strings.ToUpper(strings.TrimSpace(cause))]; ok {
		return domain.StatusFailed, true
	}

	return domain.StatusSent, false
}
