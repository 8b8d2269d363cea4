package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

var braceBlock = regexp.MustCompile(`(?s)\{.*\}`)

// RecoverJSON makes a best-effort attempt to pull one JSON document out
// of a generation response. It tries, in order: the whole text, the
// slice from the first '{' to the last '}', and a regex scan for a
// brace-delimited block. The returned bool reports whether the result
// is valid JSON; with no brace-delimited content at all the raw text
// comes back unchanged.
func RecoverJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	if m := braceBlock.FindString(trimmed); m != "" {
		return m, json.Valid([]byte(m))
	}
	return text, false
}
