package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\n?(.*?)```")

// StripCodeFence removes a surrounding markdown code fence, with or without a language tag.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		first := strings.TrimSpace(text[:nl])
		if first == "" || !strings.ContainsAny(first, "{[") {
			text = text[nl+1:]
		}
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}

	return strings.TrimSpace(text)
}

// JSONCandidates lists the JSON documents embedded in text, most likely first: the whole text,
// the contents of fenced blocks anywhere in it, then every balanced object or array in reading
// order. Each candidate is valid JSON and appears once.
func JSONCandidates(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] || !json.Valid([]byte(c)) {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	add(StripCodeFence(text))
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		end, ok := balancedEnd(text, start)
		if !ok {
			continue
		}
		if candidate := text[start : end+1]; json.Valid([]byte(candidate)) {
			add(candidate)
			start = end
		}
	}

	return out
}

func balancedEnd(text string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

// DecodeJSONWith calls accept on each JSON candidate in text until one is accepted.
// The error of the last rejected candidate is returned when none fits.
func DecodeJSONWith(text string, accept func(candidate string) error) error {
	candidates := JSONCandidates(text)
	if len(candidates) == 0 {
		return fmt.Errorf("no JSON found in response")
	}

	var lastErr error
	for _, c := range candidates {
		if lastErr = accept(c); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("no usable JSON in response: %w", lastErr)
}
