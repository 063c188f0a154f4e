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

// StronglyConnectedComponents computes the SCCs of the graph.
//
// Description:
//
//	Iterative Tarjan's algorithm with an explicit call stack, replacing
//	the recursive formulation to avoid stack overflow on deep graphs.
//	Runs in O(V+E).
//
// Outputs:
//
//	[][]int - Components as slices of node handles. Components are
//	          emitted in Tarjan completion order; handles within a
//	          component are unordered.
func (g *Graph) StronglyConnectedComponents() [][]int {
	n := g.Len()
	const unvisited = -1

	index := 0
	nodeIndex := make([]int, n)
	lowLink := make([]int, n)
	onStack := make([]bool, n)
	for i := range nodeIndex {
		nodeIndex[i] = unvisited
	}

	sccStack := make([]int, 0, n)
	sccs := make([][]int, 0)

	// callFrame replaces the recursive call stack.
	type callFrame struct {
		node      int
		edgeIndex int // current index into out edges
		phase     int // 0=init, 1=process edges, 2=post-child, 3=finalize
		child     int // node just returned from (phase 2)
	}

	strongConnect := func(start int) {
		callStack := []callFrame{{node: start}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				nodeIndex[frame.node] = index
				lowLink[frame.node] = index
				index++
				sccStack = append(sccStack, frame.node)
				onStack[frame.node] = true
				frame.phase = 1

			case 1:
				pushed := false
				for frame.edgeIndex < len(g.out[frame.node]) {
					next := g.out[frame.node][frame.edgeIndex].to
					frame.edgeIndex++

					if nodeIndex[next] == unvisited {
						frame.phase = 2
						frame.child = next
						callStack = append(callStack, callFrame{node: next})
						pushed = true
						break
					}
					if onStack[next] && nodeIndex[next] < lowLink[frame.node] {
						lowLink[frame.node] = nodeIndex[next]
					}
				}
				if !pushed && frame.phase == 1 {
					frame.phase = 3
				}

			case 2:
				if lowLink[frame.child] < lowLink[frame.node] {
					lowLink[frame.node] = lowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if lowLink[frame.node] == nodeIndex[frame.node] {
					component := make([]int, 0, 1)
					for {
						top := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack[top] = false
						component = append(component, top)
						if top == frame.node {
							break
						}
					}
					sccs = append(sccs, component)
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	for _, h := range g.sortedHandles() {
		if nodeIndex[h] == unvisited {
			strongConnect(h)
		}
	}
	return sccs
}
