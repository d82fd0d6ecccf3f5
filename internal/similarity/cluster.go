package similarity

import "sort"

// Cluster groups texts by single-link agglomeration: two texts share a cluster
// when a chain of pairs with score >= threshold connects them.
// Clusters are returned ordered by their first member; members are ascending
// indexes into texts.
func Cluster(texts []string, threshold float64, sim Similarity) [][]int {
	if sim == nil {
		sim = Jaccard{}
	}
	parent := make([]int, len(texts))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri == rj {
			return
		}
		// Keep the smallest index as root so cluster order is stable.
		if ri < rj {
			parent[rj] = ri
		} else {
			parent[ri] = rj
		}
	}

	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			if sim.Compare(texts[i], texts[j]) >= threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range texts {
		root := find(i)
		groups[root] = append(groups[root], i)
	}
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([][]int, 0, len(roots))
	for _, root := range roots {
		clusters = append(clusters, groups[root])
	}
	return clusters
}
