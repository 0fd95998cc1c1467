// Package fingerprint groups similar log messages under a stable hash.
package fingerprint

import (
	"fmt"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

var (
	uuidPattern  = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	digitPattern = regexp.MustCompile(`[0-9]+`)
)

// Normalize replaces the volatile parts of a message with placeholders.
// UUIDs and emails go first so their digits are not split into {n}.
func Normalize(message string) string {
	s := uuidPattern.ReplaceAllString(message, "{uuid}")
	s = emailPattern.ReplaceAllString(s, "{email}")
	return digitPattern.ReplaceAllString(s, "{n}")
}

// Fingerprint hashes level, source and the normalized message into 16 hex
// characters. It returns "" when message or level is empty.
func Fingerprint(message, level, source string) string {
	if message == "" || level == "" {
		return ""
	}
	sum := xxhash.Sum64String(level + "|" + source + "|" + Normalize(message))
	return fmt.Sprintf("%016x", sum)
}
