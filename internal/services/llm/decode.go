package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const snippetLimit = 160

// decodeJSONContent unmarshals a JSON-mode reply into target. Models that
// ignore response_format tend to wrap the object in a ```json fence or a
// sentence, so the outermost object is cut out and tried once more.
func decodeJSONContent(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(content), target)
	if err == nil {
		return nil
	}
	object, ok := outermostObject(content)
	if !ok || object == content {
		return fmt.Errorf("%w (payload snippet: %s)", err, clip(content))
	}
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("%w (extracted snippet: %s)", err, clip(object))
	}
	return nil
}

// outermostObject returns the text from the first '{' to the last '}'.
// Fence markers never contain braces, so this also unwraps fenced replies.
func outermostObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// clip collapses whitespace and truncates s for error messages.
func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "<empty>"
	}
	if runes := []rune(s); len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return s
}
