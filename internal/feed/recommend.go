package feed

import (
	"sort"

	"jobmate/marketplace-client/internal/model"
)

// Recommend keeps jobs scoring strictly above threshold, sorted by score
// descending (ties keep feed order), capped to limit. No network access.
func Recommend(jobs []model.JobPosting, threshold float64, limit int) []model.JobPosting {
	var out []model.JobPosting
	for _, j := range jobs {
		if j.Similarity != nil && *j.Similarity > threshold {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score() > out[b].Score() })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
