package exporter

import (
	"math"
	"strings"
	"time"

	"licensebridge/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// formatDate renders t as a calendar date, or "" for the zero time
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// daysLeft rounds the time remaining until validUntil to whole days
func daysLeft(validUntil, now time.Time) int {
	return int(math.Round(validUntil.Sub(now).Hours() / 24))
}

func formatRelease(r *domain.AppRelease) string {
	if r == nil {
		return ""
	}
	return r.TagName
}

func formatConditions(conditions []string) string {
	return strings.Join(conditions, "; ")
}
