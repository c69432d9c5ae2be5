package crm

import (
	"encoding/json"
	"strings"
)

// NormalizeError reduces a CRM failure message to "errorCode: message" when it
// embeds a JSON error list, and returns msg unchanged otherwise. The JSON is
// taken from the first '[' to the last ']' and only its first entry is used.
// An entry with just one of the two keys yields that value alone.
func NormalizeError(msg string) string {
	start := strings.Index(msg, "[")
	end := strings.LastIndex(msg, "]")
	if start < 0 || end <= start {
		return msg
	}

	var parsed any
	if err := json.Unmarshal([]byte(msg[start:end+1]), &parsed); err != nil {
		return msg
	}

	list, ok := parsed.([]any)
	if !ok || len(list) == 0 {
		return msg
	}
	entry, ok := list[0].(map[string]any)
	if !ok {
		return msg
	}

	code := stringField(entry, "errorCode")
	message := stringField(entry, "message")
	switch {
	case code != "" && message != "":
		return code + ": " + message
	case code != "":
		return code
	case message != "":
		return message
	default:
		return msg
	}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
