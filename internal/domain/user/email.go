package user

import (
	"regexp"
	"strings"
)

// InvalidEmailMessage is returned with every rejected email. The wording,
// spelling included, is relied on by existing clients.
const InvalidEmailMessage = "Please enter a vaild email address"

const (
	// whitespace mirrors the \s class the rule was written against, which
	// covers \v and the Unicode space separators as well as ASCII spaces.
	whitespace = `\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

	// anyChar is "." without the s flag: everything but line terminators.
	anyChar = `[^\n\r\x{2028}\x{2029}]`

	atom = `[^<>()\[\]\\.,;:` + whitespace + `@"]`
)

// emailPattern accepts either dot-separated atoms or a single character
// followed by a quoted string, then "@" and either a bracketed IPv4 literal
// or a hostname whose last label is at least two letters.
var emailPattern = regexp.MustCompile(
	`^((` + atom + `+(\.` + atom + `+)*)|` + anyChar + `("` + anyChar + `+"))` +
		`@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`,
)

// IsValidEmail reports whether s is an acceptable email address.
// It is a syntactic check only.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// TrimEmail strips leading and trailing whitespace using the same notion of
// whitespace as the format rule.
func TrimEmail(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		0x00a0, 0x1680, 0x2028, 0x2029, 0x202f, 0x205f, 0x3000, 0xfeff:
		return true
	}
	return r >= 0x2000 && r <= 0x200a
}
