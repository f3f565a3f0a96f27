package apiclient

import (
	"encoding/json"
	"strings"
)

// Outcome classifies the human-readable confirmations that some LMS
// endpoints return instead of structured data.
type Outcome int

const (
	OutcomeServerError Outcome = iota
	OutcomeOK
	OutcomeConflict
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeConflict:
		return "conflict"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// Confirmation is the classified form of a confirmation body.
type Confirmation struct {
	Outcome Outcome
	Message string
}

// OK reports whether the confirmation carried the expected marker.
func (c Confirmation) OK() bool { return c.Outcome == OutcomeOK }

// Confirm classifies raw against the success markers ("enrolled",
// "unenrolled", "updated", "deleted"). A marker wins over any other wording:
// the appliance phrases its success messages freely and "User already
// enrolled" is a success.
//
// Markers match as plain substrings, so "enrolled" also matches "User
// unenrolled" and "User not enrolled": an enroll call never reports
// OutcomeNotFound for those bodies.
func Confirm(raw json.RawMessage, markers ...string) Confirmation {
	text := confirmationText(raw)
	lower := strings.ToLower(text)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return Confirmation{Outcome: OutcomeOK, Message: text}
		}
	}
	switch {
	case strings.Contains(lower, "already"):
		return Confirmation{Outcome: OutcomeConflict, Message: text}
	case strings.Contains(lower, "not found"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "not enrolled"):
		return Confirmation{Outcome: OutcomeNotFound, Message: text}
	default:
		return Confirmation{Outcome: OutcomeServerError, Message: text}
	}
}

// DebugInfo extracts the "debuginfo" field Moodle attaches to failed web
// service calls.
func DebugInfo(raw json.RawMessage) (string, bool) {
	var obj struct {
		DebugInfo *string `json:"debuginfo"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.DebugInfo == nil {
		return "", false
	}
	return *obj.DebugInfo, true
}

func confirmationText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if info, ok := DebugInfo(raw); ok {
		return info
	}
	return string(raw)
}
