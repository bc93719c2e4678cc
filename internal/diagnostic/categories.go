// Package diagnostic drives the career diagnostic questionnaire: a short
// wizard whose questions arrive from the gateway grouped into fixed
// categories, with optional follow-up questions generated from the answers.
package diagnostic

import "strings"

// Category is one section of the questionnaire.
type Category struct {
	ID    string
	Title string
	Order int
}

// Categories lists the questionnaire sections in presentation order.
var Categories = []Category{
	{ID: "career-snapshot", Title: "Career Snapshot", Order: 0},
	{ID: "feeling-check", Title: "Feeling Check", Order: 1},
	{ID: "root-cause-probe", Title: "Root Cause Probe", Order: 2},
	{ID: "ideal-next-step", Title: "Ideal Next Step", Order: 3},
	{ID: "readiness-support", Title: "Readiness & Support", Order: 4},
}

// CategoryFallback is the bucket for questions whose category label is
// absent or unrecognized.
const CategoryFallback = "general"

var categoryIndex = func() map[string]int {
	m := make(map[string]int, len(Categories))
	for _, c := range Categories {
		m[c.ID] = c.Order
	}
	return m
}()

// CategoryIDFor maps a raw category label from the gateway to a canonical
// category ID. Labels are matched case-insensitively with spaces and
// underscores treated as dashes and joiners ("&", "and") dropped, so the
// display title "Readiness & Support" resolves to readiness-support;
// anything unrecognized lands in the fallback bucket.
func CategoryIDFor(raw string) string {
	id := normalizeCategory(raw)
	if _, ok := categoryIndex[id]; ok {
		return id
	}
	return CategoryFallback
}

func normalizeCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "&", " ")
	s = strings.ReplaceAll(s, "_", " ")
	words := strings.Fields(s)
	parts := words[:0]
	for _, w := range words {
		if w == "and" {
			continue
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, "-")
}

// categoryOrder sorts canonical category IDs by presentation order, with
// the fallback bucket last.
func categoryOrder(id string) int {
	if o, ok := categoryIndex[id]; ok {
		return o
	}
	return len(Categories)
}
