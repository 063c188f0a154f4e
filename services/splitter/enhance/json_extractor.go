// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enhance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlockPattern matches a markdown code fence, json-tagged or not.
var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON unmarshals a model response into v, recovering from the
// prose wrapping and markdown fences models habitually add.
//
// Description:
//
//	Staged fallback: (1) the whole body as JSON, (2) the contents of a
//	markdown code fence, (3) the first balanced top-level JSON object or
//	array found by a string-and-escape-aware scan. Responses that fail
//	all three stages return an error; callers fall back to field-pattern
//	extraction or raw text.
func ExtractJSON(input string, v any) error {
	body := strings.TrimSpace(input)
	if body == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(body), v); err == nil {
		return nil
	}

	if m := fencedBlockPattern.FindStringSubmatch(body); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err == nil {
			return nil
		}
	}

	if candidate := balancedJSON(body); candidate != "" {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON in response")
}

// balancedJSON returns the first balanced {...} or [...] span, honoring
// string literals and escapes so braces inside strings do not count.
func balancedJSON(body string) string {
	start := -1
	var opener, closer byte
	for i := 0; i < len(body); i++ {
		if body[i] == '{' || body[i] == '[' {
			start = i
			opener = body[i]
			if opener == '{' {
				closer = '}'
			} else {
				closer = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(body); i++ {
		c := body[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// Characters inside strings never affect depth.
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return body[start : i+1]
			}
		}
	}
	return ""
}

// ExtractField pulls a single string field's value out of a response
// that defeated JSON parsing entirely. Last resort before raw text.
func ExtractField(input, field string) (string, bool) {
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	m := pattern.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	var value string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &value); err != nil {
		return m[1], true
	}
	return value, true
}
