// Package privacy scrubs credentials from text that is about to be logged
// or wrapped into an error.
package privacy

import "regexp"

const redactedPlaceholder = "[REDACTED]"

type rule struct {
	re   *regexp.Regexp
	repl string
}

var rules = []rule{
	{regexp.MustCompile(`(access_token=)[^&\s"]+`), "${1}" + redactedPlaceholder},
	{regexp.MustCompile(`(://[^:/@\s]+:)[^@/\s]+@`), "${1}" + redactedPlaceholder + "@"},
}

// Secrets masks Graph API access tokens and URI passwords in s, keeping the
// surrounding key so the line stays readable.
func Secrets(s string) string {
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}
