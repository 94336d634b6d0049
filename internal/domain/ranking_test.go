package domain

import (
	"errors"
	"testing"
)

func scores(percentages ...float64) []ParticipantScore {
	out := make([]ParticipantScore, len(percentages))
	for i, p := range percentages {
		out[i] = ParticipantScore{ParticipantID: NewAccountID(), Percentage: p, MaxValue: p}
	}
	return out
}

func percentagesOf(s []ParticipantScore) []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Percentage
	}
	return out
}

func TestRankChallengeParticipants(t *testing.T) {
	tests := []struct {
		name     string
		mode     ChallengeMode
		input    []ParticipantScore
		expected []float64
	}{
		{"absolute_keeps_values", ChallengeAbsolute, scores(40, 20, 0), []float64{40, 20, 0}},
		{"relative_rescales_to_top", ChallengeRelative, scores(40, 20, 0), []float64{100, 50, 0}},
		{"max_value_rescales_to_top", ChallengeMaxValue, scores(10, 5, 0), []float64{100, 50, 0}},
		{"all_zero_stays_zero", ChallengeMaxValue, scores(0, 0), []float64{0, 0}},
		{"empty", ChallengeRelative, nil, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := RankChallengeParticipants(tt.mode, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := percentagesOf(ranked)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d scores, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if !approx(got[i], tt.expected[i]) {
					t.Errorf("score %d: expected %f, got %f", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestRankChallengeParticipants_MaxValueUsesLargestRecord(t *testing.T) {
	input := []ParticipantScore{
		{ParticipantID: NewAccountID(), Percentage: 90, MaxValue: 4},
		{ParticipantID: NewAccountID(), Percentage: 10, MaxValue: 8},
	}

	ranked, _ := RankChallengeParticipants(ChallengeMaxValue, input)

	if !approx(ranked[0].Percentage, 50) || !approx(ranked[1].Percentage, 100) {
		t.Errorf("expected [50 100], got %v", percentagesOf(ranked))
	}
	if input[0].Percentage != 90 {
		t.Error("expected input to be left untouched")
	}
}

func TestRankChallengeParticipants_InvalidMode(t *testing.T) {
	_, err := RankChallengeParticipants(ChallengeMode("elo"), scores(1))

	if !errors.Is(err, ErrInvalidChallengeMode) {
		t.Errorf("expected ErrInvalidChallengeMode, got %v", err)
	}
}

func candidates(percentages ...float64) []PlacementCandidate {
	out := make([]PlacementCandidate, len(percentages))
	for i, p := range percentages {
		out[i] = PlacementCandidate{ParticipantID: NewAccountID(), Percentage: p}
	}
	return out
}

func TestAssignPlacements(t *testing.T) {
	tests := []struct {
		name      string
		input     []PlacementCandidate
		threshold float64
		expected  []int
	}{
		{"dense_ranks_with_cutoff", candidates(95, 90, 90, 70, 40), 50, []int{1, 2, 2, 3}},
		{"threshold_is_inclusive", candidates(80, 50), 50, []int{1, 2}},
		{"first_below_threshold", candidates(49, 30), 50, []int{}},
		{"no_threshold", candidates(10, 0, 0), 0, []int{1, 2, 2}},
		{"empty", nil, 50, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			placements, err := AssignPlacements(tt.input, "2026-09", tt.threshold)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(placements) != len(tt.expected) {
				t.Fatalf("expected %d placements, got %d", len(tt.expected), len(placements))
			}
			for i, p := range placements {
				if p.Rank != tt.expected[i] {
					t.Errorf("placement %d: expected rank %d, got %d", i, tt.expected[i], p.Rank)
				}
				if p.ParticipantID != tt.input[i].ParticipantID {
					t.Errorf("placement %d: expected participant order to be preserved", i)
				}
				if p.PeriodKey != "2026-09" {
					t.Errorf("expected period key 2026-09, got %s", p.PeriodKey)
				}
			}
		})
	}
}

func TestAssignPlacements_RejectsUnsorted(t *testing.T) {
	_, err := AssignPlacements(candidates(40, 90), "2026-09", 0)

	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSortCandidates(t *testing.T) {
	c := candidates(10, 90, 50)

	SortCandidates(c)

	if c[0].Percentage != 90 || c[1].Percentage != 50 || c[2].Percentage != 10 {
		t.Errorf("expected descending order, got %v", c)
	}

	tied := candidates(70, 70)
	SortCandidates(tied)
	if tied[0].ParticipantID.String() > tied[1].ParticipantID.String() {
		t.Error("expected ties ordered by participant id")
	}
}

func TestMedalsFor(t *testing.T) {
	placements := []Placement{{Rank: 1}, {Rank: 3}, {Rank: 1}, {Rank: 4}}

	got := MedalsFor(placements)

	if len(got) != 2 {
		t.Fatalf("expected gold and bronze only, got %d medals", len(got))
	}
	if got[0].Rank != 1 || got[0].Count != 2 || got[0].Emoji != "🥇" || got[0].Color != "#FFD700" {
		t.Errorf("expected two gold medals, got %+v", got[0])
	}
	if got[1].Rank != 3 || got[1].Count != 1 || got[1].Color != "#CD7F32" {
		t.Errorf("expected one bronze medal, got %+v", got[1])
	}

	if _, ok := MedalForRank(4); ok {
		t.Error("expected no medal for rank 4")
	}
}

func TestLeaderboardScores(t *testing.T) {
	a, b, c := NewAccountID(), NewAccountID(), NewAccountID()
	first, second := NewChallengeID(), NewChallengeID()

	entries := LeaderboardScores([]ChallengeResult{
		{ChallengeID: first, AccountID: a, Placement: 1},
		{ChallengeID: first, AccountID: b, Placement: 2},
		{ChallengeID: first, AccountID: c, Placement: 5},
		{ChallengeID: second, AccountID: a, Placement: 3},
	})

	expected := []LeaderboardEntry{{AccountID: a, Score: 4}, {AccountID: b, Score: 2}, {AccountID: c, Score: 0}}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i := range expected {
		if entries[i] != expected[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, expected[i], entries[i])
		}
	}
}
