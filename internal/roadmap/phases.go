// Package roadmap arranges a roadmap's milestones into the five fixed
// journey phases shown on the roadmap page.
package roadmap

import (
	"strings"

	"wayfinder/internal/gateway"
)

// Phase is one leg of the career journey.
type Phase struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// Phases lists the journey legs in order. Every roadmap is displayed
// against these five regardless of how many milestones it has.
var Phases = []Phase{
	{ID: "self-discovery", Name: "Self-Discovery", Number: 1},
	{ID: "skill-deepening", Name: "Skill Deepening", Number: 2},
	{ID: "hands-on", Name: "Hands-On Practice", Number: 3},
	{ID: "networking", Name: "Networking", Number: 4},
	{ID: "career-launch", Name: "Career Launch", Number: 5},
}

// Milestone statuses as normalized for display.
const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// PhaseFor returns the phase index for milestone i of total. Milestones are
// split into five contiguous runs of ceil(total/5), so early phases fill
// first and every milestone lands in exactly one phase.
func PhaseFor(i, total int) int {
	if total <= 0 || i < 0 {
		return 0
	}
	perPhase := (total + len(Phases) - 1) / len(Phases)
	idx := i / perPhase
	if idx >= len(Phases) {
		idx = len(Phases) - 1
	}
	return idx
}

// PhaseGroup is one phase with its milestones, in original order.
type PhaseGroup struct {
	Phase      Phase               `json:"phase"`
	Milestones []gateway.Milestone `json:"milestones"`
}

// Group buckets milestones into the five phases, preserving their order and
// normalizing each status. All five groups are always present, empty or not.
func Group(milestones []gateway.Milestone) []PhaseGroup {
	groups := make([]PhaseGroup, len(Phases))
	for i, p := range Phases {
		groups[i] = PhaseGroup{Phase: p}
	}
	for i, m := range milestones {
		m.Status = NormalizeStatus(m.Status)
		idx := PhaseFor(i, len(milestones))
		groups[idx].Milestones = append(groups[idx].Milestones, m)
	}
	return groups
}

// NormalizeStatus folds the status spellings the gateway has used over time
// into the three display values. Unknown statuses read as not started.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	switch s {
	case StatusCompleted, "complete", "done":
		return StatusCompleted
	case StatusInProgress, "started", "active":
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}
