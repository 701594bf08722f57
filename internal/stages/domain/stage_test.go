package domain

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Qualified", "qualified"},
		{"Closed Won", "closed-won"},
		{"Closed  --  Lost!!", "closed-lost"},
		{"  Proposal Sent  ", "proposal-sent"},
		{"R&D Review", "r-d-review"},
		{"already-a-slug", "already-a-slug"},
		{"ÜBER Stage", "ber-stage"},
		{"!!!", ""},
	}

	for _, tc := range tests {
		if got := Slugify(tc.name); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStageTypeAccepts(t *testing.T) {
	if !StageTypeLead.AcceptsLeads() || StageTypeLead.AcceptsDeals() {
		t.Error("LEAD should accept leads only")
	}
	if StageTypeDeal.AcceptsLeads() || !StageTypeDeal.AcceptsDeals() {
		t.Error("DEAL should accept deals only")
	}
	if !StageTypeBoth.AcceptsLeads() || !StageTypeBoth.AcceptsDeals() {
		t.Error("BOTH should accept leads and deals")
	}
	if StageType("OTHER").Valid() {
		t.Error("unknown stage type should not be valid")
	}
}

func TestOutcomeSlugHeuristics(t *testing.T) {
	if !SlugSuggestsWon("closed-won") || SlugSuggestsWon("qualified") {
		t.Error("won heuristic mismatch")
	}
	if !SlugSuggestsLost("lost") || SlugSuggestsLost("won") {
		t.Error("lost heuristic mismatch")
	}
}
