package retrieval

import "sort"

// rrfK is the reciprocal rank fusion constant (spec §4.4 step 6:
// score = Σ 1/(60+rank_i)).
const rrfK = 60

type rankedList struct {
	chunkIDs []string // rank order, 0-indexed
	weight   float64  // relative contribution of this list to the fused score
}

// fuse combines any number of ranked candidate lists into a single
// descending-score ordering via weighted reciprocal rank fusion, keeping
// the top k. Ties are broken by (documentID, ordinal) ascending, the
// deterministic order spec §4.4 requires; resolve maps a chunk id to that
// tie-break key.
func fuse(lists []rankedList, k int, resolve func(chunkID string) (documentID string, ordinal int)) []string {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list.chunkIDs {
			scores[id] += list.weight / float64(rrfK+rank+1)
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		di, oi := resolve(ids[i])
		dj, oj := resolve(ids[j])
		if di != dj {
			return di < dj
		}
		return oi < oj
	})

	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}
