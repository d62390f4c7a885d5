package policy

import (
	"fmt"
	"regexp"
)

// injectionPatterns flag natural-language text that looks like it is
// trying to steer the LLM worker off its instructions (§4.6). Matches
// are never stripped from the text, only surfaced as warnings.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore previous`),
	regexp.MustCompile(`(?i)forget your instructions`),
	regexp.MustCompile(`(?i)you are now`),
	regexp.MustCompile(`(?i)new instructions`),
	regexp.MustCompile(`(?i)system prompt`),
	regexp.MustCompile(`(?i)override`),
	regexp.MustCompile(`(?i)bypass`),
	regexp.MustCompile(`\[\[.*\]\]`),
	regexp.MustCompile(`<\|.*\|>`),
}

// Sanitize scans text for prompt-injection-like patterns, returning it
// unchanged alongside a warning for each pattern matched.
func Sanitize(text string) (cleaned string, warnings []string) {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(text) {
			warnings = append(warnings, fmt.Sprintf("suspicious pattern: %s", pattern.String()))
		}
	}
	return text, warnings
}

// IsSuspicious reports whether text matches any injection pattern.
func IsSuspicious(text string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
