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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

func changes(ids ...string) []*diff.Change {
	out := make([]*diff.Change, 0, len(ids))
	for _, id := range ids {
		out = append(out, &diff.Change{ID: id, File: id, AddedLines: 1})
	}
	return out
}

func dep(source, target string, strength float64) *analyze.Dependency {
	return &analyze.Dependency{
		SourceChangeID: source,
		TargetChangeID: target,
		Kind:           analyze.KindDefinesUses,
		Strength:       strength,
		Reason:         "test",
	}
}

func indexOf(t *testing.T, order []string, id string) int {
	t.Helper()
	for i, o := range order {
		if o == id {
			return i
		}
	}
	t.Fatalf("id %s not in order %v", id, order)
	return -1
}

func TestThreeNodeCycleIsOneAtomicGroup(t *testing.T) {
	g := NewGraph(changes("a", "b", "c"),
		[]*analyze.Dependency{
			dep("a", "b", 1.0),
			dep("b", "c", 1.0),
			dep("c", "a", 1.0),
		})

	groups := g.AtomicGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, ReasonCircular, groups[0].Reason)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, groups[0].Members())
}

func TestCriticalEdgesFormAtomicGroup(t *testing.T) {
	// No cycle: a -> b -> c, all critical, plus an advisory d -> a.
	g := NewGraph(changes("a", "b", "c", "d"),
		[]*analyze.Dependency{
			dep("a", "b", 1.0),
			dep("b", "c", 1.0),
			dep("d", "a", 0.8),
		})

	groups := g.AtomicGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, ReasonCritical, groups[0].Reason)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, groups[0].Members())
}

func TestCyclicMembersNotDoubleGrouped(t *testing.T) {
	// a<->b is a cycle; b -> c is critical but c alone cannot form a
	// second group once a and b are covered by the cyclic one.
	g := NewGraph(changes("a", "b", "c"),
		[]*analyze.Dependency{
			dep("a", "b", 1.0),
			dep("b", "a", 1.0),
			dep("b", "c", 1.0),
		})

	groups := g.AtomicGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, ReasonCircular, groups[0].Reason)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].Members())
}

func TestTopologicalOrderScenario(t *testing.T) {
	// login_route depends on authenticate which depends on User.
	g := NewGraph(changes("models/user.go:0", "auth/service.go:0", "routes/login.go:0"),
		[]*analyze.Dependency{
			dep("routes/login.go:0", "auth/service.go:0", 1.0),
			dep("auth/service.go:0", "models/user.go:0", 1.0),
		})

	order, warnings := g.TopologicalOrder()
	require.Empty(t, warnings)
	require.Len(t, order, 3)

	user := indexOf(t, order, "models/user.go:0")
	svc := indexOf(t, order, "auth/service.go:0")
	login := indexOf(t, order, "routes/login.go:0")
	assert.Less(t, user, svc)
	assert.Less(t, svc, login)
}

func TestTopologicalOrderDeterministicTies(t *testing.T) {
	g := NewGraph(changes("z", "a", "m"), nil)
	order, warnings := g.TopologicalOrder()
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"a", "m", "z"}, order)
}

func TestTopologicalOrderBreaksCycles(t *testing.T) {
	// Cycle a -> b -> a where the b -> a edge is weaker.
	g := NewGraph(changes("a", "b"),
		[]*analyze.Dependency{
			dep("a", "b", 1.0),
			dep("b", "a", 0.8),
		})

	order, warnings := g.TopologicalOrder()
	require.Len(t, order, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "broke dependency cycle")

	// The strong a -> b edge survives, so b comes first.
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestTransitiveClosure(t *testing.T) {
	g := NewGraph(changes("a", "b", "c", "d"),
		[]*analyze.Dependency{
			dep("a", "b", 1.0),
			dep("b", "c", 0.8),
		})

	closure := g.TransitiveClosure()
	assert.Equal(t, []string{"b", "c"}, closure["a"])
	assert.Equal(t, []string{"c"}, closure["b"])
	assert.Empty(t, closure["c"])
	assert.Empty(t, closure["d"])
}

func TestUnknownEdgeDropped(t *testing.T) {
	g := NewGraph(changes("a"),
		[]*analyze.Dependency{dep("a", "ghost", 1.0)})
	assert.Empty(t, g.Edges())
}
