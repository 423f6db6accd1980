package llm

import "strings"

// ExtractJSONObject returns the span from the first '{' to the last '}' so
// prose or code fences around a JSON reply can be ignored.
func ExtractJSONObject(reply string) (string, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return reply[start : end+1], true
}
