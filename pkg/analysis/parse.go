package analysis

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"advocateai/pkg/domain"
)

const (
	fallbackOverview = "Analysis completed"
	fallbackLogicLen = 500
)

var (
	fencedObject  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseSections maps model output onto the eight sections. It reports false
// and returns the fallback record when no JSON object can be recovered; it
// never fails.
func ParseSections(raw string) (domain.AnalysisSections, bool) {
	for _, candidate := range candidates(raw) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &fields); err != nil || fields == nil {
			continue
		}
		return domain.AnalysisSections{
			Overview:        field(fields, "overview"),
			Logic:           field(fields, "logic"),
			Evidence:        field(fields, "evidence"),
			Assumptions:     field(fields, "assumptions"),
			Clarity:         field(fields, "clarity"),
			Objections:      field(fields, "objections"),
			Implementation:  field(fields, "implementation"),
			Recommendations: field(fields, "recommendations"),
		}, true
	}
	return fallback(raw), false
}

// candidates lists the raw text, a fenced ```json block, and the outermost
// brace span, in that order.
func candidates(raw string) []string {
	out := []string{strings.TrimSpace(raw)}
	if m := fencedObject.FindStringSubmatch(raw); len(m) > 1 {
		out = append(out, m[1], trailingComma.ReplaceAllString(m[1], "$1"))
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		span := raw[start : end+1]
		out = append(out, span, trailingComma.ReplaceAllString(span, "$1"))
	}
	return out
}

// field renders one section. Strings are used verbatim, string lists are
// joined by newlines, and any other JSON value is kept as compact JSON.
func field(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "\n")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return string(raw)
}

func fallback(raw string) domain.AnalysisSections {
	logic := []rune(raw)
	if len(logic) > fallbackLogicLen {
		logic = logic[:fallbackLogicLen]
	}
	return domain.AnalysisSections{
		Overview: fallbackOverview,
		Logic:    string(logic),
	}
}
