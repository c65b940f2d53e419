package search

import (
	"sort"

	"github.com/heimdex/heimdex-engine/engine/domain"
)

// ranking is one channel's ordered candidate list.
type ranking struct {
	channel domain.RetrievalChannel
	weight  float64
	entries []domain.Hit
}

// fusedHit pairs a candidate with its fused score.
type fusedHit struct {
	hit   domain.Hit
	score float64
}

// fuse merges channel rankings with weighted reciprocal rank fusion:
// score(seg) = sum over channels of weight / (k + rank). Ranks are 1-based.
// Ties break on segment ID so results are stable across runs.
func fuse(rankings []ranking, k float64) []fusedHit {
	if k <= 0 {
		k = 60
	}

	scores := make(map[string]float64)
	hits := make(map[string]domain.Hit)
	for _, r := range rankings {
		for i, e := range r.entries {
			scores[e.SegmentID] += r.weight / (k + float64(i+1))
			// Prefer the entry carrying content so fused hits keep their text.
			if cur, ok := hits[e.SegmentID]; !ok || (cur.Content == "" && e.Content != "") {
				hits[e.SegmentID] = e
			}
		}
	}

	out := make([]fusedHit, 0, len(scores))
	for id, s := range scores {
		out = append(out, fusedHit{hit: hits[id], score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].hit.SegmentID < out[j].hit.SegmentID
	})
	return out
}
