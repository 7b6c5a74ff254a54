package setup

import (
	"regexp"
	"strings"
)

var (
	compactIDPattern  = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	embeddedIDPattern = regexp.MustCompile(`[0-9a-fA-F]{32}`)
	dashedIDPattern   = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// NormalizeID extracts the canonical 32-character resource identifier from
// free-form input: a raw ID with or without dashes, or a workspace URL with
// the ID embedded. Input that carries no recognizable identifier is returned
// trimmed and unchanged; the Confirmation Gate rejects it downstream.
func NormalizeID(input string) string {
	trimmed := strings.TrimSpace(input)

	if stripped := strings.ReplaceAll(trimmed, "-", ""); compactIDPattern.MatchString(stripped) {
		return stripped
	}
	if run := embeddedIDPattern.FindString(trimmed); run != "" {
		return run
	}
	if run := dashedIDPattern.FindString(trimmed); run != "" {
		return strings.ReplaceAll(run, "-", "")
	}
	return trimmed
}
