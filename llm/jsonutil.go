package llm

import (
	"regexp"
	"strings"
)

// Models rarely return clean JSON: they wrap it in markdown fences,
// annotate it with // comments, and leave trailing commas. The
// extractors below recover a parseable payload from such replies.
var (
	fencedObject  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	fencedArray   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	bareObject    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	bareArray     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model reply, preferring a
// markdown-fenced block over a bare object. Returns "" when no object
// is present.
func ExtractJSON(content string) string {
	return extract(content, fencedObject, bareObject)
}

// ExtractJSONArray is ExtractJSON for top-level arrays.
func ExtractJSONArray(content string) string {
	return extract(content, fencedArray, bareArray)
}

func extract(content string, fenced, bare *regexp.Regexp) string {
	raw := ""
	if m := fenced.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = bare.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return trailingComma.ReplaceAllString(stripComments(raw), "$1")
}

// stripComments removes // comments that sit outside string values.
// JSON strings cannot span lines, so the in-string state resets at
// every newline.
func stripComments(raw string) string {
	if !strings.Contains(raw, "//") {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '\n':
			inString = false
			escaped = false
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(raw) && raw[i+1] == '/':
			// Drop through end of line, along with any whitespace
			// left dangling before the comment.
			trimmed := strings.TrimRight(b.String(), " \t")
			b.Reset()
			b.WriteString(trimmed)
			for i < len(raw) && raw[i] != '\n' {
				i++
			}
			if i < len(raw) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
