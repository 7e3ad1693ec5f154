package practice

import (
	"cmp"
	"slices"

	"github.com/proenglish/go_proenglish/internal/model"
)

// Rank orders students by points and assigns dense ranks: equal points share
// a rank and the next score gets the following one. limit <= 0 means no limit.
func Rank(progress []model.StudentProgress, limit int) []model.LeaderboardEntry {
	sorted := slices.Clone(progress)
	slices.SortFunc(sorted, func(a, b model.StudentProgress) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(a.UserName, b.UserName); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]model.LeaderboardEntry, 0, len(sorted))
	rank := 0
	for i, p := range sorted {
		if i == 0 || p.Points != sorted[i-1].Points {
			rank++
		}
		out = append(out, model.LeaderboardEntry{Rank: rank, UserID: p.UserID, UserName: p.UserName, Points: p.Points})
	}
	return out
}
