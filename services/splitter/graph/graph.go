// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph wraps changes and dependencies as a directed multigraph.
//
// # Description
//
// Nodes are changes, edges are dependency constraints pointing toward
// the "must come first" side. Nodes are integer handles into an arena
// slice rather than object references, so SCC and topological
// algorithms run iteratively with no recursion-depth or ownership-cycle
// concerns.
//
// # Thread Safety
//
// A Graph is immutable after construction and safe for concurrent reads.
package graph

import (
	"log/slog"
	"sort"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// edge is one outgoing adjacency entry.
type edge struct {
	to  int
	dep *analyze.Dependency
}

// Graph is the dependency multigraph over a change set.
type Graph struct {
	changes []*diff.Change
	handles map[string]int

	// out[i] holds edges from node i toward its prerequisites.
	out [][]edge

	// in[i] holds the reverse adjacency.
	in [][]edge

	edges []*analyze.Dependency
}

// NewGraph builds the multigraph. Edges referencing unknown change ids
// are dropped with a warning rather than failing the run.
func NewGraph(changes []*diff.Change, deps []*analyze.Dependency) *Graph {
	g := &Graph{
		changes: changes,
		handles: make(map[string]int, len(changes)),
		out:     make([][]edge, len(changes)),
		in:      make([][]edge, len(changes)),
	}
	for i, c := range changes {
		g.handles[c.ID] = i
	}
	for _, dep := range deps {
		src, okSrc := g.handles[dep.SourceChangeID]
		dst, okDst := g.handles[dep.TargetChangeID]
		if !okSrc || !okDst {
			slog.Warn("dropping edge with unknown change",
				slog.String("source", dep.SourceChangeID),
				slog.String("target", dep.TargetChangeID))
			continue
		}
		g.out[src] = append(g.out[src], edge{to: dst, dep: dep})
		g.in[dst] = append(g.in[dst], edge{to: src, dep: dep})
		g.edges = append(g.edges, dep)
	}
	return g
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.changes)
}

// ChangeAt returns the change for a node handle.
func (g *Graph) ChangeAt(handle int) *diff.Change {
	return g.changes[handle]
}

// HandleOf returns the node handle for a change id.
func (g *Graph) HandleOf(changeID string) (int, bool) {
	h, ok := g.handles[changeID]
	return h, ok
}

// Edges returns all retained dependency edges.
func (g *Graph) Edges() []*analyze.Dependency {
	return g.edges
}

// sortedHandles returns all handles ordered by change id. Used by the
// graph algorithms for deterministic iteration.
func (g *Graph) sortedHandles() []int {
	handles := make([]int, len(g.changes))
	for i := range handles {
		handles[i] = i
	}
	sort.Slice(handles, func(a, b int) bool {
		return g.changes[handles[a]].ID < g.changes[handles[b]].ID
	})
	return handles
}
