package utils

import (
	"time"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
// This handles all Unicode characters including Turkish, European, and other languages
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}

	// Use gosimple/slug which handles all international characters properly
	return slug.Make(text)
}

// GenerateReportSlug creates a filesystem-safe base name for a report
// file from its title and generation time.
func GenerateReportSlug(title string, generatedAt time.Time) string {
	if title == "" {
		title = "report"
	}
	return NormalizeSlug(title) + "-" + generatedAt.Format("20060102150405")
}
