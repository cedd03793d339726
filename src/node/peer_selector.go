package node

import "sort"

// rankNodes returns the Ready nodes whose best height covers height, highest
// weight first. Ties go to the lower id.
func rankNodes(nodes []*Node, height uint32) []*Node {
	type ranked struct {
		node   *Node
		weight float64
	}
	candidates := make([]ranked, 0, len(nodes))
	for _, n := range nodes {
		if n.getState() != Ready || n.BestHeight() < height {
			continue
		}
		candidates = append(candidates, ranked{node: n, weight: n.weight.Weight()})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight > candidates[j].weight
		}
		return candidates[i].node.ID() < candidates[j].node.ID()
	})

	res := make([]*Node, len(candidates))
	for i, c := range candidates {
		res[i] = c.node
	}
	return res
}

// selectNode returns the highest weighted Ready node whose best height
// covers height.
func selectNode(nodes []*Node, height uint32) *Node {
	if ranked := rankNodes(nodes, height); len(ranked) > 0 {
		return ranked[0]
	}
	return nil
}
