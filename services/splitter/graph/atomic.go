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
	"sort"

	"github.com/google/uuid"
)

// Reasons attached to atomic groups.
const (
	// ReasonCircular marks groups formed by a dependency cycle.
	ReasonCircular = "circular dependency"

	// ReasonCritical marks groups connected by strength-1.0 edges.
	ReasonCritical = "critical dependency"
)

// AtomicGroup is a set of changes that must land in the same patch.
//
// # Description
//
// Groups partition a subset of the change set: no two groups share a
// change, and a change belongs to at most one group.
type AtomicGroup struct {
	// ID uniquely identifies the group within the run.
	ID string `json:"id"`

	// ChangeIDs is the member set.
	ChangeIDs map[string]struct{} `json:"change_ids"`

	// Reason explains why the members are inseparable.
	Reason string `json:"reason"`
}

// Members returns the member ids in sorted order.
func (a *AtomicGroup) Members() []string {
	members := make([]string, 0, len(a.ChangeIDs))
	for id := range a.ChangeIDs {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// Contains reports membership of a change id.
func (a *AtomicGroup) Contains(changeID string) bool {
	_, ok := a.ChangeIDs[changeID]
	return ok
}

// AtomicGroups computes the full set of atomic groups.
//
// Description:
//
//	Every SCC of size > 1 becomes a group with reason "circular
//	dependency". Then the undirected subgraph induced by strength-1.0
//	edges is decomposed into connected components; each component of
//	size > 1 becomes a group with reason "critical dependency" after
//	removing changes already covered by a cyclic group, so no change
//	ends up in two groups.
//
// Outputs:
//
//	[]*AtomicGroup - Groups in deterministic order (by smallest member id).
func (g *Graph) AtomicGroups() []*AtomicGroup {
	groups := make([]*AtomicGroup, 0)
	covered := make(map[string]struct{})

	for _, scc := range g.StronglyConnectedComponents() {
		if len(scc) < 2 {
			continue
		}
		group := newAtomicGroup(ReasonCircular)
		for _, h := range scc {
			id := g.ChangeAt(h).ID
			group.ChangeIDs[id] = struct{}{}
			covered[id] = struct{}{}
		}
		groups = append(groups, group)
	}

	for _, component := range g.criticalComponents() {
		members := make([]string, 0, len(component))
		for _, h := range component {
			id := g.ChangeAt(h).ID
			if _, done := covered[id]; !done {
				members = append(members, id)
			}
		}
		if len(members) < 2 {
			continue
		}
		group := newAtomicGroup(ReasonCritical)
		for _, id := range members {
			group.ChangeIDs[id] = struct{}{}
			covered[id] = struct{}{}
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members()[0] < groups[j].Members()[0]
	})
	return groups
}

// criticalComponents finds connected components of the undirected
// subgraph induced by strength-1.0 edges, via iterative DFS.
func (g *Graph) criticalComponents() [][]int {
	n := g.Len()
	adj := make([][]int, n)
	for src := 0; src < n; src++ {
		for _, e := range g.out[src] {
			if !e.dep.Critical() {
				continue
			}
			adj[src] = append(adj[src], e.to)
			adj[e.to] = append(adj[e.to], src)
		}
	}

	visited := make([]bool, n)
	components := make([][]int, 0)
	for _, start := range g.sortedHandles() {
		if visited[start] || len(adj[start]) == 0 {
			continue
		}
		component := make([]int, 0)
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, node)
			for _, next := range adj[node] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

func newAtomicGroup(reason string) *AtomicGroup {
	return &AtomicGroup{
		ID:        uuid.NewString(),
		ChangeIDs: make(map[string]struct{}),
		Reason:    reason,
	}
}
