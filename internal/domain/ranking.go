package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ChallengeMode selects how participant scores are compared in a challenge.
type ChallengeMode string

const (
	// ChallengeAbsolute keeps every participant's own percentage.
	ChallengeAbsolute ChallengeMode = "absolute"
	// ChallengeRelative rescales percentages against the best participant.
	ChallengeRelative ChallengeMode = "relative"
	// ChallengeMaxValue ranks by the largest single record, rescaled to the best.
	ChallengeMaxValue ChallengeMode = "max_value"
)

var ErrInvalidChallengeMode = errors.New("invalid challenge mode")

// ParseChallengeMode validates and returns a ChallengeMode from a string.
func ParseChallengeMode(s string) (ChallengeMode, error) {
	switch m := ChallengeMode(strings.ToLower(s)); m {
	case ChallengeAbsolute, ChallengeRelative, ChallengeMaxValue:
		return m, nil
	}
	return "", ErrInvalidChallengeMode
}

// String returns the string representation of the ChallengeMode.
func (m ChallengeMode) String() string {
	return string(m)
}

// ParticipantScore is one participant's row in a ranking pass.
type ParticipantScore struct {
	ParticipantID    AccountID
	Percentage       float64
	TotalAchievement float64
	MaxValue         float64
	// LinkRef is an opaque reference the caller uses to link back to the
	// participant's habit.
	LinkRef string
}

// RankChallengeParticipants normalizes participant scores for a challenge mode.
// the input is not modified; the output preserves input order.
//
// relative and max_value scores are rescaled so the top participant reaches
// exactly 100. when the top score is 0 every score stays unchanged.
func RankChallengeParticipants(mode ChallengeMode, scores []ParticipantScore) ([]ParticipantScore, error) {
	out := make([]ParticipantScore, len(scores))
	copy(out, scores)

	switch mode {
	case ChallengeAbsolute:
		return out, nil
	case ChallengeMaxValue:
		for i := range out {
			out[i].Percentage = out[i].MaxValue
		}
	case ChallengeRelative:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidChallengeMode, mode)
	}

	var top float64
	for _, s := range out {
		top = max(top, s.Percentage)
	}
	if top == 0 {
		return out, nil
	}
	for i := range out {
		out[i].Percentage = 100 * out[i].Percentage / top
	}
	return out, nil
}

// DefaultPlacementThreshold is the minimum percentage to earn a monthly placement.
const DefaultPlacementThreshold = 50.0

// PlacementCandidate is a participant's percentage before ranking.
type PlacementCandidate struct {
	ParticipantID AccountID
	Percentage    float64
}

// Placement is a participant's dense rank for one period. rank 1 is best.
type Placement struct {
	ParticipantID AccountID
	PeriodKey     string
	Percentage    float64
	Rank          int
}

// SortCandidates orders candidates by percentage, best first.
// ties are ordered by participant id so the result is deterministic.
func SortCandidates(candidates []PlacementCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Percentage != candidates[j].Percentage {
			return candidates[i].Percentage > candidates[j].Percentage
		}
		return candidates[i].ParticipantID.String() < candidates[j].ParticipantID.String()
	})
}

// AssignPlacements walks candidates sorted best first and assigns dense ranks.
// equal consecutive percentages share a rank. the walk stops at the first
// participant whose percentage drops below threshold; that participant and
// every lower one are excluded. unsorted input is rejected.
func AssignPlacements(sorted []PlacementCandidate, periodKey string, threshold float64) ([]Placement, error) {
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Percentage > sorted[i-1].Percentage {
			return nil, fmt.Errorf("%w: placement candidates must be sorted descending", ErrInvalidInput)
		}
	}

	placements := make([]Placement, 0, len(sorted))
	rank := 0
	last := math.Inf(1)

	for _, c := range sorted {
		if c.Percentage < last {
			if c.Percentage < threshold {
				break
			}
			rank++
			last = c.Percentage
		}
		placements = append(placements, Placement{
			ParticipantID: c.ParticipantID,
			PeriodKey:     periodKey,
			Percentage:    c.Percentage,
			Rank:          rank,
		})
	}
	return placements, nil
}

// Medal is the badge awarded for a top-three placement.
type Medal struct {
	Rank  int
	Emoji string
	Color string
}

var medals = map[int]Medal{
	1: {Rank: 1, Emoji: "🥇", Color: "#FFD700"},
	2: {Rank: 2, Emoji: "🥈", Color: "#C0C0C0"},
	3: {Rank: 3, Emoji: "🥉", Color: "#CD7F32"},
}

// MedalForRank returns the medal for a rank, false for ranks outside 1-3.
func MedalForRank(rank int) (Medal, bool) {
	m, ok := medals[rank]
	return m, ok
}

// MedalCount is how often a participant earned one medal.
type MedalCount struct {
	Medal
	Count int
}

// MedalsFor aggregates historical placements into medal counts.
// only ranks 1-3 with at least one placement are returned, best first.
func MedalsFor(placements []Placement) []MedalCount {
	counts := make(map[int]int, len(medals))
	for _, p := range placements {
		if _, ok := medals[p.Rank]; ok {
			counts[p.Rank]++
		}
	}

	var out []MedalCount
	for rank := 1; rank <= 3; rank++ {
		if counts[rank] > 0 {
			out = append(out, MedalCount{Medal: medals[rank], Count: counts[rank]})
		}
	}
	return out
}

// ChallengeResult is the final placement of an account in one challenge.
type ChallengeResult struct {
	ChallengeID ChallengeID
	AccountID   AccountID
	Placement   int
}

// LeaderboardEntry is one account's aggregated leaderboard score.
type LeaderboardEntry struct {
	AccountID AccountID
	Score     int
}

// placementPoints awards 3/2/1 points for 1st/2nd/3rd place.
func placementPoints(placement int) int {
	if placement < 1 || placement > 3 {
		return 0
	}
	return 4 - placement
}

// LeaderboardScores sums placement points per account, best first.
// every account with a result is listed, even with 0 points.
func LeaderboardScores(results []ChallengeResult) []LeaderboardEntry {
	scores := make(map[AccountID]int)
	for _, r := range results {
		scores[r.AccountID] += placementPoints(r.Placement)
	}

	entries := make([]LeaderboardEntry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, LeaderboardEntry{AccountID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].AccountID.String() < entries[j].AccountID.String()
	})
	return entries
}
