package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkBlockPattern matches <think>...</think> reasoning blocks emitted by some models.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// fencePattern captures the body of the first fenced code block, with or without a language tag.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")

// StripThinking removes every <think> block from a response.
func StripThinking(response string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(response, ""))
}

// StripCodeFence returns the body of the first fenced code block, or the
// trimmed input when there is none.
func StripCodeFence(s string) string {
	if m := fencePattern.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ExtractJSON extracts JSON content from an LLM response that may contain
// <think> blocks, markdown fences or surrounding prose.
func ExtractJSON(response string) (string, error) {
	cleaned := StripThinking(response)
	if m := fencePattern.FindStringSubmatch(cleaned); len(m) == 2 && json.Valid([]byte(strings.TrimSpace(m[1]))) {
		return strings.TrimSpace(m[1]), nil
	}

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	// Prefer whichever structure opens first.
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if s, ok := extractBalancedJSON(cleaned, '{', '}'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}
	if arrStart >= 0 {
		if s, ok := extractBalancedJSON(cleaned, '[', ']'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}

	if trimmed := strings.TrimSpace(cleaned); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON finds the first balanced structure starting with openChar,
// ignoring brackets inside string literals.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == openChar:
			depth++
		case c == closeChar:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
