package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"
)

// oracleJSON is the result of interpreting untrusted oracle text. When OK
// is false the caller must fall back to its documented defaults; Raw always
// carries the original trimmed text so the failure stays auditable.
type oracleJSON struct {
	Object map[string]any
	OK     bool
	Raw    string
}

// parseOracleJSON turns free-form oracle text into a structured object.
// It never fails: fences are stripped, the first JSON object is extracted,
// and any parse error yields a fallback result carrying the raw text.
func parseOracleJSON(text string) oracleJSON {
	raw := strings.TrimSpace(text)
	result := oracleJSON{Raw: raw}

	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return result
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return result
	}

	result.Object = obj
	result.OK = true
	return result
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences, with or without a language tag.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// stringField reads a string key with a default. Unknown keys and
// non-string values fall back to def.
func (o oracleJSON) stringField(key, def string) string {
	v, ok := o.Object[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// floatField reads a numeric key with a default, tolerating numbers
// encoded as strings.
func (o oracleJSON) floatField(key string, def float64) float64 {
	v, ok := o.Object[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return def
}

// stringListField reads a list-of-strings key. Non-string elements are
// stringified via their JSON form; missing or malformed keys return nil.
func (o oracleJSON) stringListField(key string) []string {
	v, ok := o.Object[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		if b, err := json.Marshal(item); err == nil {
			out = append(out, string(b))
		}
	}
	return out
}

// clamp truncates v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
