package extract

import (
	"encoding/json"
	"strings"
)

// ParseResult is the outcome of parsing one chunk's response: either a list
// of records or, when nothing could be parsed, the cleaned raw text kept for
// manual recovery.
type ParseResult struct {
	Records []CodeRecord
	Raw     string
}

// Failed reports whether no records could be parsed from the response.
func (p ParseResult) Failed() bool {
	return len(p.Records) == 0
}

// ParseResponse parses a generation response that is expected to be one JSON
// object per line but may arrive malformed. A cleaned text that starts with
// [ is parsed as a whole array first, since line-by-line parsing of a
// pretty-printed array would pick up only the unterminated last element.
// Otherwise each line is parsed individually, skipping lines that fail; if
// that yields nothing, the whole text is tried as an array and then as a
// lone object. A single fenced-code-block wrapper is stripped first.
func ParseResponse(text string) ParseResult {
	cleaned := stripFence(text)

	var records []CodeRecord
	if strings.HasPrefix(cleaned, "[") {
		var list []CodeRecord
		if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
			records = list
		}
	}

	if len(records) == 0 {
		for _, line := range strings.Split(cleaned, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var rec CodeRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		var list []CodeRecord
		if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
			records = list
		} else {
			var one CodeRecord
			if err := json.Unmarshal([]byte(cleaned), &one); err == nil {
				records = []CodeRecord{one}
			}
		}
	}

	if len(records) == 0 {
		return ParseResult{Raw: cleaned}
	}
	return ParseResult{Records: records}
}

// stripFence removes a single ```json or ``` prefix and a single ```
// suffix. The strip happens exactly once; nested fences stay intact.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	}
	if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}
