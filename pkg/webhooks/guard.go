package webhooks

import (
	"strconv"
	"strings"
)

type CheckResult struct {
	Valid  bool
	Reason Reason

	// Populated for ReasonPayloadTooLarge.
	DeclaredBytes int64
	LimitBytes    int64

	// Populated for ReasonUnsupportedEventType.
	EventType string
}

// CheckSize validates the declared Content-Length against a ceiling. An
// absent header passes: the declared size is unenforceable then, and the body
// read enforces the ceiling regardless.
func CheckSize(declaredLength string, maxBytes int64) CheckResult {
	declaredLength = strings.TrimSpace(declaredLength)
	if declaredLength == "" {
		return CheckResult{Valid: true}
	}
	n, err := strconv.ParseInt(declaredLength, 10, 64)
	if err != nil || n < 0 {
		return CheckResult{Reason: ReasonInvalidLengthHeader}
	}
	if n > maxBytes {
		return CheckResult{Reason: ReasonPayloadTooLarge, DeclaredBytes: n, LimitBytes: maxBytes}
	}
	return CheckResult{Valid: true}
}

// CheckEventType requires a declared event type present in the allow-list.
func CheckEventType(eventType string, allowed []string) CheckResult {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return CheckResult{Reason: ReasonMissingEventType}
	}
	for _, a := range allowed {
		if eventType == a {
			return CheckResult{Valid: true}
		}
	}
	return CheckResult{Reason: ReasonUnsupportedEventType, EventType: eventType}
}
