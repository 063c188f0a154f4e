// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

import (
	"context"
	"testing"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// change builds a test change with added-side definitions and usages.
func change(file string, hunk int, kind diff.ChangeKind, start int, defs, uses []string) *diff.Change {
	fragment := ast.NewFragmentResult("go")
	for _, name := range defs {
		fragment.Definitions = append(fragment.Definitions, &ast.Symbol{
			Name: name, Kind: ast.SymbolKindFunction, File: file, Line: start, Role: ast.RoleDefinition,
		})
	}
	for _, name := range uses {
		fragment.Usages = append(fragment.Usages, &ast.Symbol{
			Name: name, Kind: ast.SymbolKindFunction, File: file, Line: start, Role: ast.RoleUsage,
		})
	}
	return &diff.Change{
		ID:         diff.ChangeID(file, hunk),
		File:       file,
		HunkIndex:  hunk,
		Kind:       kind,
		Lines:      diff.LineRange{Start: start, End: start + 5},
		AddedLines: 5,
		Fragment:   fragment,
	}
}

// withDeleted attaches deleted-side definitions to a change.
func withDeleted(c *diff.Change, defs ...string) *diff.Change {
	fragment := ast.NewFragmentResult("go")
	for _, name := range defs {
		fragment.Definitions = append(fragment.Definitions, &ast.Symbol{
			Name: name, Kind: ast.SymbolKindFunction, File: c.File, Line: 1, Role: ast.RoleDefinition,
		})
	}
	c.DeletedFragment = fragment
	c.DeletedLines = 3
	return c
}

func groupNamed(groups []*SemanticGroup, name string) *SemanticGroup {
	for _, g := range groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func TestFileProximityGrouping(t *testing.T) {
	cs := []*diff.Change{
		change("pkg/svc.go", 0, diff.KindAdd, 10, []string{"A"}, nil),
		change("pkg/svc.go", 1, diff.KindAdd, 30, []string{"B"}, nil),
		change("other/x.go", 0, diff.KindAdd, 10, []string{"C"}, nil),
	}

	groups, err := NewGrouper().Group(context.Background(), cs)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}

	g := groupNamed(groups, "changes in svc.go")
	if g == nil {
		t.Fatalf("no file group for svc.go in %d groups", len(groups))
	}
	if !g.Contains("pkg/svc.go:0") || !g.Contains("pkg/svc.go:1") {
		t.Errorf("file group members = %v", g.Members())
	}
	if g.Contains("other/x.go:0") {
		t.Error("file group must not span files")
	}
	if g.CohesionScore < 0.5 || g.CohesionScore > 1.0 {
		t.Errorf("cohesion %.2f outside [0.5, 1.0]", g.CohesionScore)
	}
}

func TestRenameDetection(t *testing.T) {
	// processOrder is deleted in two changes and re-added in a third.
	cs := []*diff.Change{
		withDeleted(change("a.go", 0, diff.KindModify, 1, nil, nil), "processOrder"),
		withDeleted(change("b.go", 0, diff.KindModify, 1, nil, nil), "processOrder"),
		change("c.go", 0, diff.KindAdd, 1, []string{"processOrder"}, nil),
	}

	groups := detectRenames(cs)
	if len(groups) != 1 {
		t.Fatalf("got %d rename groups, want 1", len(groups))
	}
	g := groups[0]
	if g.CohesionScore != renameCohesion {
		t.Errorf("cohesion = %.2f, want %.2f", g.CohesionScore, renameCohesion)
	}
	if len(g.ChangeIDs) != 3 {
		t.Errorf("members = %v, want all 3 changes", g.Members())
	}
}

func TestRenameRequiresSpread(t *testing.T) {
	// Two changes only; below the minimum spread.
	cs := []*diff.Change{
		withDeleted(change("a.go", 0, diff.KindModify, 1, nil, nil), "helper"),
		change("b.go", 0, diff.KindAdd, 1, []string{"helper"}, nil),
	}
	if groups := detectRenames(cs); len(groups) != 0 {
		t.Errorf("got %d rename groups, want 0", len(groups))
	}
}

func TestExtractionDetection(t *testing.T) {
	cs := []*diff.Change{
		change("util/helper.go", 0, diff.KindAdd, 1, []string{"parseHeader"}, nil),
		withDeleted(change("server/conn.go", 0, diff.KindModify, 1, nil, nil), "parseHeader"),
	}

	groups := detectExtractions(cs)
	if len(groups) != 1 {
		t.Fatalf("got %d extraction groups, want 1", len(groups))
	}
	if groups[0].CohesionScore != extractionCohesion {
		t.Errorf("cohesion = %.2f, want %.2f", groups[0].CohesionScore, extractionCohesion)
	}
}

func TestAPIChangeDetection(t *testing.T) {
	cs := []*diff.Change{
		change("pkg/api.go", 0, diff.KindModify, 1, []string{"Serve"}, nil),
		change("cmd/main.go", 0, diff.KindAdd, 1, nil, []string{"Serve"}),
		change("cmd/other.go", 0, diff.KindAdd, 1, nil, []string{"Serve"}),
	}

	groups := detectAPIChanges(cs)
	if len(groups) != 1 {
		t.Fatalf("got %d api groups, want 1", len(groups))
	}
	g := groups[0]
	if g.CohesionScore != apiChangeCohesion {
		t.Errorf("cohesion = %.2f, want %.2f", g.CohesionScore, apiChangeCohesion)
	}
	if len(g.ChangeIDs) != 3 {
		t.Errorf("members = %v, want modifier plus both users", g.Members())
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := map[string]struct{}{"x": {}, "y": {}, "z": {}}
	b := map[string]struct{}{"y": {}, "z": {}, "w": {}}
	if got := jaccardSimilarity(a, b); got != 0.5 {
		t.Errorf("jaccard = %.2f, want 0.50", got)
	}
	if got := jaccardSimilarity(nil, nil); got != 0 {
		t.Errorf("jaccard of empty sets = %.2f, want 0", got)
	}
}

func TestOverlapGroupsThreshold(t *testing.T) {
	cs := []*diff.Change{
		change("a.go", 0, diff.KindAdd, 1, []string{"x", "y", "z"}, nil),
		change("b.go", 0, diff.KindAdd, 1, []string{"y", "z", "w"}, nil),
		change("c.go", 0, diff.KindAdd, 1, []string{"unrelated"}, nil),
	}

	groups, err := NewGrouper().Group(context.Background(), cs)
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}

	found := false
	for _, g := range groups {
		if g.Contains("a.go:0") && g.Contains("b.go:0") && len(g.ChangeIDs) == 2 {
			found = true
			if g.CohesionScore != jaccardCohesion {
				t.Errorf("cohesion = %.2f, want %.2f", g.CohesionScore, jaccardCohesion)
			}
		}
		if g.Contains("c.go:0") && len(g.ChangeIDs) > 1 {
			t.Errorf("unrelated change grouped: %v", g.Members())
		}
	}
	if !found {
		t.Error("no overlap group for a.go and b.go")
	}
}

func TestDedupKeepsHigherCohesion(t *testing.T) {
	low := NewSemanticGroup("low", "", 0.70, "a", "b", "c")
	high := NewSemanticGroup("high", "", 0.95, "a", "b", "c")
	distinct := NewSemanticGroup("distinct", "", 0.70, "x", "y")

	kept := dedupGroups([]*SemanticGroup{low, high, distinct})
	if len(kept) != 2 {
		t.Fatalf("got %d groups, want 2", len(kept))
	}
	if kept[0].Name != "high" {
		t.Errorf("kept[0] = %s, want high", kept[0].Name)
	}
	if groupNamed(kept, "low") != nil {
		t.Error("low-cohesion duplicate survived dedup")
	}
}

func TestMembershipIndex(t *testing.T) {
	g1 := NewSemanticGroup("one", "", 0.9, "a", "b")
	g2 := NewSemanticGroup("two", "", 0.7, "b", "c")

	index := MembershipIndex([]*SemanticGroup{g1, g2})
	if len(index["b"]) != 2 {
		t.Errorf("change b in %d groups, want 2", len(index["b"]))
	}
	if len(index["a"]) != 1 || len(index["c"]) != 1 {
		t.Errorf("unexpected memberships: %v", index)
	}
	if _, ok := index["missing"]; ok {
		t.Error("unknown change has memberships")
	}
}
