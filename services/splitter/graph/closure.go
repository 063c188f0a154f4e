// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "sort"

// TransitiveClosure computes the reachability set of every change.
//
// Description:
//
//	BFS from each node over dependency edges. O(V*(V+E)), used only for
//	diagnostics and run statistics, never for correctness decisions.
//
// Outputs:
//
//	map[string][]string - Change id to the sorted ids of all changes it
//	                      transitively depends on (excluding itself).
func (g *Graph) TransitiveClosure() map[string][]string {
	n := g.Len()
	closure := make(map[string][]string, n)

	for start := 0; start < n; start++ {
		visited := make([]bool, n)
		visited[start] = true
		queue := []int{start}
		reachable := make([]string, 0)

		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			for _, e := range g.out[node] {
				if !visited[e.to] {
					visited[e.to] = true
					reachable = append(reachable, g.ChangeAt(e.to).ID)
					queue = append(queue, e.to)
				}
			}
		}

		sort.Strings(reachable)
		closure[g.ChangeAt(start).ID] = reachable
	}
	return closure
}
