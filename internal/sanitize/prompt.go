package sanitize

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 10_000
)

var strict = bluemonday.StrictPolicy()

// Prompt checks the length of a user prompt and strips any markup from it.
// The returned text is plain, with entities decoded.
func Prompt(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Reason: "Prompt is required"}
	}
	if utf8.RuneCountInString(raw) > MaxPromptLength {
		return "", &ValidationError{Reason: fmt.Sprintf("Prompt exceeds maximum length of %d characters", MaxPromptLength)}
	}

	clean := strings.TrimSpace(html.UnescapeString(strict.Sanitize(raw)))
	if utf8.RuneCountInString(clean) < MinPromptLength {
		return "", &ValidationError{Reason: fmt.Sprintf("Prompt must be at least %d characters long", MinPromptLength)}
	}
	return clean, nil
}
