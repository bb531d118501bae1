package processor

import (
	"regexp"
	"strings"
)

// transientSignatures are substrings of error text that usually mean the
// provider call would succeed on a later attempt
var transientSignatures = []string{
	"connection reset",
	"timeout",
	"timed out",
	"rate limit",
	"ratelimited",
	"service unavailable",
	"network",
	"socket hang up",
}

// isRetryable reports whether an error looks transient. Used only to choose
// the warn-vs-error log level.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(strings.ReplaceAll(err.Error(), "-", " "))
	for _, sig := range transientSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]+`)

// sanitizeFilename turns a subject line into a safe filename stem
func sanitizeFilename(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, " ._")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		s = "message"
	}
	return s
}
