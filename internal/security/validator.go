package security

import (
	"fmt"
	"unicode/utf8"
)

// Prompt length bounds enforced before any classification runs. Bounds are
// character counts, not byte counts, so multibyte prompts measure the same
// as ASCII ones.
const (
	MinPromptLength = 10
	MaxPromptLength = 10000
)

// ValidateLength checks the prompt against the configured length bounds.
func ValidateLength(prompt string) (bool, string) {
	count := utf8.RuneCountInString(prompt)
	if count < MinPromptLength {
		return false, fmt.Sprintf("prompt must be at least %d characters", MinPromptLength)
	}
	if count > MaxPromptLength {
		return false, fmt.Sprintf("prompt exceeds maximum length of %d characters", MaxPromptLength)
	}
	return true, ""
}
