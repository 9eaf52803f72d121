package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxDisplayNameLength = 255
	maxUsernameLength    = 64
	maxPhotoURLLength    = 500
)

var (
	htmlPolicy    = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`[^a-z0-9._]`)
)

// SanitizeString trims whitespace, removes null bytes and caps the length in runes.
func SanitizeString(input string, maxLen int) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if utf8.RuneCountInString(input) > maxLen {
		input = string([]rune(input)[:maxLen])
	}
	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeDisplayName strips markup from a name that is copied into friend lists.
func SanitizeDisplayName(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	return SanitizeString(SanitizeHTML(name), maxDisplayNameLength)
}

// SanitizeUsername lowercases and keeps only [a-z0-9._].
func SanitizeUsername(username string) string {
	username = strings.ToLower(SanitizeString(username, maxUsernameLength))
	username = strings.TrimPrefix(username, "@")
	return usernameRegex.ReplaceAllString(username, "")
}

// SanitizePhotoURL accepts only http(s) URLs and returns "" otherwise.
func SanitizePhotoURL(raw string) string {
	raw = SanitizeString(raw, maxPhotoURLLength)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "http://") {
		return ""
	}
	if strings.ContainsAny(raw, " \"'<>") {
		return ""
	}
	return raw
}
