package trace

// AnalyzeTreeStructure joins entries by shared path prefixes and fills in the
// hierarchical metadata: depth, parent path, direct child count, and the
// aggregate duration/operation count of each entry's subtree. It is a pure
// post-processing pass; entries may have arrived in any temporal order since
// par branches complete out of order.
func (r *Recorder) AnalyzeTreeStructure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Direct children are one level deeper with the parent's path as prefix.
	childCounts := make(map[string]int)
	for _, e := range r.entries {
		if len(e.Path) == 0 {
			continue
		}
		childCounts[pathKey(e.Path[:len(e.Path)-1])]++
	}

	for _, e := range r.entries {
		key := pathKey(e.Path)

		e.Metadata.Depth = len(e.Path)
		if len(e.Path) > 0 {
			e.Metadata.ParentPath = clonePath(e.Path[:len(e.Path)-1])
		} else {
			e.Metadata.ParentPath = nil
		}
		e.Metadata.ChildCount = childCounts[key]
		e.Metadata.HasChildren = e.Metadata.ChildCount > 0

		var subtreeDuration float64
		var subtreeOps int
		for _, other := range r.entries {
			if hasPrefix(other.Path, e.Path) {
				subtreeDuration += other.DurationMS
				subtreeOps++
			}
		}
		e.Metadata.SubtreeDurationMS = subtreeDuration
		e.Metadata.SubtreeOperationCount = subtreeOps
	}
}

// ChildCount reports how many recorded entries sit directly under path. The
// program root is the empty path, which has no entry of its own but still has
// a meaningful fan-out.
func (r *Recorder) ChildCount(path []int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pathKey(path)
	n := 0
	for _, e := range r.entries {
		if len(e.Path) == 0 {
			continue
		}
		if pathKey(e.Path[:len(e.Path)-1]) == key {
			n++
		}
	}
	return n
}

// TreeSummary aggregates the analyzed entries per depth level.
type TreeSummary struct {
	TotalOperations int
	MaxDepth        int
	DepthStats      map[int]DepthStat
}

type DepthStat struct {
	Count           int
	TotalDurationMS float64
}

// Summarize requires AnalyzeTreeStructure to have run first.
func (r *Recorder) Summarize() TreeSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := TreeSummary{DepthStats: make(map[int]DepthStat)}
	for _, e := range r.entries {
		summary.TotalOperations++
		depth := e.Metadata.Depth
		if depth > summary.MaxDepth {
			summary.MaxDepth = depth
		}
		stat := summary.DepthStats[depth]
		stat.Count++
		stat.TotalDurationMS += e.DurationMS
		summary.DepthStats[depth] = stat
	}
	return summary
}

// hasPrefix reports whether path starts with prefix (a subtree membership
// test; every path is in its own subtree).
func hasPrefix(path, prefix []int) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}
