// Package report aggregates a user's stored medical records into a paginated
// PDF medical history document.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/healthbook/healthbook/internal/models"
	"github.com/healthbook/healthbook/internal/vectorstore"
)

// BuildHistory folds vector store entries into the report input shape:
// deduplicated category lists plus a reverse-chronological event timeline.
// Deterministic given the same entries.
func BuildHistory(userID string, entries []vectorstore.Entry) models.MedicalHistory {
	history := models.MedicalHistory{
		UserID:      userID,
		Conditions:  []string{},
		Symptoms:    []string{},
		Medications: []string{},
		Incidents:   []string{},
		BodyParts:   []string{},
		Events:      []models.HistoryEvent{},
	}

	for _, entry := range entries {
		history.Conditions = appendUnique(history.Conditions, entry.Metadata.Conditions)
		history.Symptoms = appendUnique(history.Symptoms, entry.Metadata.Symptoms)
		history.Medications = appendUnique(history.Medications, entry.Metadata.Medications)
		history.Incidents = appendUnique(history.Incidents, entry.Metadata.Incidents)
		history.BodyParts = appendUnique(history.BodyParts, entry.Metadata.BodyParts)

		eventType := "general"
		if entry.Metadata.ImageURL != "" {
			eventType = "image"
		}
		history.Events = append(history.Events, models.HistoryEvent{
			Date:    entry.Metadata.CreatedAt,
			Content: entry.Metadata.Content,
			Type:    eventType,
		})
	}

	// Newest first; equal timestamps keep input order.
	sort.SliceStable(history.Events, func(i, j int) bool {
		return history.Events[i].Date.After(history.Events[j].Date)
	})
	return history
}

// appendUnique appends the values not already present, preserving order and
// ignoring case and surrounding whitespace for deduplication.
func appendUnique(existing []string, values []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[normalizeTerm(v)] = struct{}{}
	}
	for _, v := range values {
		key := normalizeTerm(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, strings.TrimSpace(v))
	}
	return existing
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// dateRange renders the min/max event dates truncated to day, or a
// placeholder when no dated events exist.
func dateRange(events []models.HistoryEvent) string {
	var earliest, latest time.Time
	for _, e := range events {
		if e.Date.IsZero() {
			continue
		}
		if earliest.IsZero() || e.Date.Before(earliest) {
			earliest = e.Date
		}
		if latest.IsZero() || e.Date.After(latest) {
			latest = e.Date
		}
	}
	if earliest.IsZero() {
		return "Date range unavailable"
	}
	return earliest.Format("2006-01-02") + " to " + latest.Format("2006-01-02")
}

// formatEventDate renders an event date for the timeline, degrading to a
// placeholder rather than aborting the report.
func formatEventDate(t time.Time) string {
	if t.IsZero() {
		return "Date not available"
	}
	return t.Format("January 02, 2006")
}

// cleanContent strips emphasis markup and boilerplate analysis headers from
// stored free text before rendering. A plain text filter, not a parser.
func cleanContent(content string) string {
	if !strings.Contains(content, "**") {
		return content
	}
	clean := strings.ReplaceAll(content, "**", "")

	var relevant []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.Contains(line, "General Content:") || strings.Contains(line, "Medical Relevance:") {
			continue
		}
		relevant = append(relevant, line)
	}
	return strings.Join(relevant, " ")
}
