package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSearchQueryLength bounds a search term in runes. It matches the longest
// address a mail system will route.
const MaxSearchQueryLength = 254

var (
	// ErrQueryTooLong is returned for terms longer than MaxSearchQueryLength.
	ErrQueryTooLong = errors.New("search query too long")
	// ErrQueryInvalid is returned for terms with disallowed characters or keywords.
	ErrQueryInvalid = errors.New("search query contains invalid characters")
)

// dangerousPatterns rejects terms that look like SQL or script injection.
// Keywords are matched as whole words so that addresses such as
// "updates@example.com" stay searchable.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute)\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(--|/\*|\*/)`),
	regexp.MustCompile(`(?i)\b(waitfor|benchmark|sleep)\b`),
	regexp.MustCompile(`(?i)(<script|</script|javascript:|vbscript:|onload=|onerror=)`),
}

// ValidateSearchQuery trims a search term and rejects it if it is too long or
// could be mistaken for SQL or markup. An empty term is allowed.
func ValidateSearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	if utf8.RuneCountInString(query) > MaxSearchQueryLength {
		return "", ErrQueryTooLong
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(query) {
			return "", ErrQueryInvalid
		}
	}

	for _, char := range query {
		if !isValidSearchChar(char) {
			return "", ErrQueryInvalid
		}
	}

	return query, nil
}

// isValidSearchChar allows what commonly appears in an address.
func isValidSearchChar(char rune) bool {
	if unicode.IsLetter(char) || unicode.IsNumber(char) {
		return true
	}
	switch char {
	case ' ', '-', '_', '.', '@', '+', '[', ']':
		return true
	}
	return false
}

// SanitizeSearchString escapes LIKE wildcards so they match literally.
// The result is meant for a LIKE clause with ESCAPE '\'.
func SanitizeSearchString(query string) string {
	if query == "" {
		return ""
	}

	query = strings.ReplaceAll(query, `\`, `\\`)
	query = strings.ReplaceAll(query, "%", `\%`)
	query = strings.ReplaceAll(query, "_", `\_`)

	return query
}
