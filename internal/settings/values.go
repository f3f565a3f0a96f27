package settings

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Text renders a property value as plain text. Properties usually arrive as a
// one element array; strings holding JSON are decoded once more.
func Text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return ""
		}
		return Text(arr[0])
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			switch v := inner.(type) {
			case string:
				return v
			case nil:
				return ""
			}
		}
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}

// SwitchState is how an on/off property should be shown.
type SwitchState string

const (
	SwitchOn     SwitchState = "on"
	SwitchOff    SwitchState = "off"
	SwitchHidden SwitchState = "hidden"
)

// Switch interprets a switch property: "1" is on, "0" is off and anything
// else ("none" included) hides the control.
func Switch(raw json.RawMessage) SwitchState {
	switch Text(raw) {
	case "1":
		return SwitchOn
	case "0":
		return SwitchOff
	default:
		return SwitchHidden
	}
}
