package roadmap

import (
	"fmt"
	"testing"

	"wayfinder/internal/gateway"
)

func TestPhaseForCoversEveryMilestoneOnce(t *testing.T) {
	for total := 1; total <= 40; total++ {
		t.Run(fmt.Sprintf("total=%d", total), func(t *testing.T) {
			perPhase := (total + 4) / 5
			last := 0
			for i := 0; i < total; i++ {
				idx := PhaseFor(i, total)
				if idx < 0 || idx >= len(Phases) {
					t.Fatalf("PhaseFor(%d, %d) = %d, out of range", i, total, idx)
				}
				if idx < last {
					t.Fatalf("PhaseFor(%d, %d) = %d, went backwards from %d", i, total, idx, last)
				}
				if want := min(i/perPhase, len(Phases)-1); idx != want {
					t.Fatalf("PhaseFor(%d, %d) = %d, want %d", i, total, idx, want)
				}
				last = idx
			}
		})
	}
}

func TestPhaseForEdgeCases(t *testing.T) {
	tests := []struct {
		i, total, want int
	}{
		{0, 0, 0},
		{0, 1, 0},
		{-1, 10, 0},
		{0, 5, 0},
		{4, 5, 4},   // one milestone per phase
		{9, 10, 4},  // two per phase
		{11, 12, 4}, // ceil(12/5)=3, last run shorter
	}
	for _, tt := range tests {
		if got := PhaseFor(tt.i, tt.total); got != tt.want {
			t.Errorf("PhaseFor(%d, %d) = %d, want %d", tt.i, tt.total, got, tt.want)
		}
	}
}

func TestGroupPreservesOrderAndKeepsAllPhases(t *testing.T) {
	ms := make([]gateway.Milestone, 7)
	for i := range ms {
		ms[i] = gateway.Milestone{MilestoneIndex: i, Title: fmt.Sprintf("m%d", i), Status: "in_progress"}
	}

	groups := Group(ms)
	if len(groups) != 5 {
		t.Fatalf("group count = %d, want 5", len(groups))
	}

	seen := 0
	for gi, g := range groups {
		if g.Phase.ID != Phases[gi].ID {
			t.Errorf("group %d phase = %s, want %s", gi, g.Phase.ID, Phases[gi].ID)
		}
		for _, m := range g.Milestones {
			if m.MilestoneIndex != seen {
				t.Errorf("milestone order broken: got index %d at position %d", m.MilestoneIndex, seen)
			}
			if m.Status != StatusInProgress {
				t.Errorf("status = %q, want normalized %q", m.Status, StatusInProgress)
			}
			seen++
		}
	}
	if seen != len(ms) {
		t.Errorf("grouped %d milestones, want %d", seen, len(ms))
	}

	// ceil(7/5) = 2 per phase: 2,2,2,1,0.
	wantSizes := []int{2, 2, 2, 1, 0}
	for i, want := range wantSizes {
		if got := len(groups[i].Milestones); got != want {
			t.Errorf("phase %d size = %d, want %d", i, got, want)
		}
	}
}

func TestGroupEmptyRoadmap(t *testing.T) {
	groups := Group(nil)
	if len(groups) != 5 {
		t.Fatalf("group count = %d, want 5", len(groups))
	}
	for _, g := range groups {
		if len(g.Milestones) != 0 {
			t.Errorf("phase %s unexpectedly has milestones", g.Phase.ID)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"completed", StatusCompleted},
		{"COMPLETE", StatusCompleted},
		{"done", StatusCompleted},
		{"in_progress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{"active", StatusInProgress},
		{"not_started", StatusNotStarted},
		{"", StatusNotStarted},
		{"mystery", StatusNotStarted},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
