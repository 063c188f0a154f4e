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

import (
	"fmt"
	"sort"
)

// workEdge is a mutable adjacency entry used during ordering, so cycle
// breaking can drop edges without touching the graph itself.
type workEdge struct {
	to       int
	strength float64
}

// cycleEdge is one edge on a detected cycle.
type cycleEdge struct {
	from, to int
	strength float64
}

// TopologicalOrder returns a best-effort dependency-respecting order of
// all change ids, prerequisites first.
//
// Description:
//
//	Kahn's algorithm; an edge points at the side that must come first,
//	so targets are emitted before sources. Ties are broken by change id
//	for determinism. If the graph is cyclic, the lowest-strength edge
//	inside a detected cycle is removed and the sort retried; each
//	removal is reported as a warning. This is a best-effort
//	approximation, not a minimum edge removal.
//
// Outputs:
//
//	[]string - All change ids, prerequisites first.
//	[]string - One warning per edge removed to break a cycle.
func (g *Graph) TopologicalOrder() ([]string, []string) {
	n := g.Len()

	adj := make([][]workEdge, n)
	for src := 0; src < n; src++ {
		for _, e := range g.out[src] {
			adj[src] = append(adj[src], workEdge{to: e.to, strength: e.dep.Strength})
		}
	}

	warnings := make([]string, 0)

	for {
		order, ok := g.kahnSort(adj)
		if ok {
			return order, warnings
		}

		cycle := findCycle(adj, n)
		if len(cycle) == 0 {
			// Sort failed but no cycle found; should be unreachable.
			return g.lexicalOrder(), append(warnings, "ordering fell back to lexical")
		}

		weakest := cycle[0]
		for _, e := range cycle[1:] {
			if e.strength < weakest.strength {
				weakest = e
			}
		}
		removeEdge(adj, weakest.from, weakest.to)
		warnings = append(warnings, fmt.Sprintf(
			"broke dependency cycle by dropping edge %s -> %s (strength %.2f)",
			g.ChangeAt(weakest.from).ID, g.ChangeAt(weakest.to).ID, weakest.strength))
	}
}

// kahnSort attempts a topological sort, prerequisites first. A node is
// ready once all of its prerequisites have been emitted, so readiness
// tracks remaining outgoing dependency edges.
func (g *Graph) kahnSort(adj [][]workEdge) ([]string, bool) {
	n := g.Len()

	outDegree := make([]int, n)
	dependents := make([][]int, n)
	for src := 0; src < n; src++ {
		outDegree[src] = len(adj[src])
		for _, e := range adj[src] {
			dependents[e.to] = append(dependents[e.to], src)
		}
	}

	ready := make([]int, 0, n)
	for h := 0; h < n; h++ {
		if outDegree[h] == 0 {
			ready = append(ready, h)
		}
	}

	order := make([]string, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return g.ChangeAt(ready[a]).ID < g.ChangeAt(ready[b]).ID
		})
		node := ready[0]
		ready = ready[1:]
		order = append(order, g.ChangeAt(node).ID)

		for _, dep := range dependents[node] {
			outDegree[dep]--
			if outDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	return order, len(order) == n
}

// findCycle locates one cycle via iterative DFS, returning its edges.
func findCycle(adj [][]workEdge, n int) []cycleEdge {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // finished
	)
	color := make([]int, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}

	type frame struct {
		node int
		next int
	}

	for start := 0; start < n; start++ {
		if color[start] != white {
			continue
		}
		stack := []frame{{node: start}}
		color[start] = gray

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next >= len(adj[f.node]) {
				color[f.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			e := adj[f.node][f.next]
			f.next++

			switch color[e.to] {
			case white:
				color[e.to] = gray
				parent[e.to] = f.node
				stack = append(stack, frame{node: e.to})
			case gray:
				// Back edge: walk parents from f.node up to e.to.
				cycle := []cycleEdge{{from: f.node, to: e.to, strength: e.strength}}
				for at := f.node; at != e.to && parent[at] != -1; at = parent[at] {
					from := parent[at]
					cycle = append(cycle, cycleEdge{
						from:     from,
						to:       at,
						strength: edgeStrength(adj, from, at),
					})
				}
				return cycle
			}
		}
	}
	return nil
}

// edgeStrength looks up the strength of edge from -> to.
func edgeStrength(adj [][]workEdge, from, to int) float64 {
	for _, e := range adj[from] {
		if e.to == to {
			return e.strength
		}
	}
	return 0
}

// removeEdge drops one from -> to edge from the working adjacency.
func removeEdge(adj [][]workEdge, from, to int) {
	edges := adj[from]
	for i, e := range edges {
		if e.to == to {
			adj[from] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// lexicalOrder returns all change ids sorted lexically.
func (g *Graph) lexicalOrder() []string {
	ids := make([]string, 0, g.Len())
	for _, c := range g.changes {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}
