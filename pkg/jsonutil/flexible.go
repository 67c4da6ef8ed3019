// Package jsonutil reads loosely typed values out of model responses.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexibleString renders a JSON value as text. Models asked for a string
// sometimes return a number, a boolean or a whole result row instead.
// Numbers keep their literal form, objects and arrays are compacted, and
// null or an empty message yields "".
func FlexibleString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			switch x := v.(type) {
			case json.Number:
				return x.String()
			case bool:
				if x {
					return "true"
				}
				return "false"
			}
		}
	}

	return strings.TrimSpace(string(raw))
}
