package util

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes any JSON scalar or array into text. Arrays are joined
// with " | " and null becomes "".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '[':
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				parts = append(parts, string(it))
			}
		}
		*f = FlexString(strings.Join(parts, " | "))
	case '{':
		*f = FlexString(string(b))
	default:
		// numbers and booleans keep their literal text
		*f = FlexString(string(b))
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// Bool reads "true"/"1"/"yes" as true.
func (f FlexString) Bool() bool {
	switch strings.ToLower(strings.TrimSpace(string(f))) {
	case "true", "1", "yes":
		return true
	}
	return false
}
