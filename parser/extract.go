package parser

import (
	"regexp"
	"strings"
)

// fenceRe matches a fenced block (``` or ~~~) with an optional language tag.
var fenceRe = regexp.MustCompile("(?s)(?:`{3}|~{3})[a-zA-Z]*[ \\t]*\\n?(.*?)\\n?(?:`{3}|~{3})")

// openFenceRe matches an opening fence line left behind by a truncated response.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// invalidJSONEscapeRe matches a backslash followed by a character that is not a
// valid JSON escape, e.g. regex fragments like \d emitted inside strings.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if loc := fenceRe.FindStringSubmatchIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
		return strings.TrimSpace(s[loc[2]:loc[3]])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// ExtractJSON pulls the JSON payload out of a response that may contain prose
// or markdown around it.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") || strings.Contains(response, "~~~") {
		if m := fenceRe.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		if loc := openFenceRe.FindStringIndex(response); loc != nil {
			response = strings.TrimSpace(response[loc[1]:])
		}
	}

	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if end := strings.LastIndex(response, "}"); end > objStart {
			return response[objStart : end+1]
		}
	}
	if arrStart >= 0 {
		if end := strings.LastIndex(response, "]"); end > arrStart {
			return response[arrStart : end+1]
		}
	}
	return response
}

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}
