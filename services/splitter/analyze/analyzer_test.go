// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// makeChange builds a change with a pre-populated fragment.
func makeChange(file string, hunk int, kind diff.ChangeKind, defs, uses []*ast.Symbol) *diff.Change {
	fragment := ast.NewFragmentResult("go")
	fragment.Definitions = defs
	fragment.Usages = uses
	return &diff.Change{
		ID:         diff.ChangeID(file, hunk),
		File:       file,
		HunkIndex:  hunk,
		Kind:       kind,
		Lines:      diff.LineRange{Start: 1, End: 10},
		AddedLines: 10,
		Language:   "go",
		Fragment:   fragment,
	}
}

func def(name string, kind ast.SymbolKind, file string) *ast.Symbol {
	return &ast.Symbol{Name: name, Kind: kind, File: file, Line: 1, Role: ast.RoleDefinition}
}

func use(name string, kind ast.SymbolKind, file string) *ast.Symbol {
	return &ast.Symbol{Name: name, Kind: kind, File: file, Line: 1, Role: ast.RoleUsage}
}

func findEdge(t *testing.T, deps []*Dependency, source, target string) *Dependency {
	t.Helper()
	for _, d := range deps {
		if d.SourceChangeID == source && d.TargetChangeID == target {
			return d
		}
	}
	t.Fatalf("no edge %s -> %s in %v", source, target, deps)
	return nil
}

func TestAnalyzeAuthScenario(t *testing.T) {
	// change_1 adds authenticate (which uses User), change_2 modifies the
	// login route to call authenticate, change_3 adds the User type.
	change1 := makeChange("auth/service.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("authenticate", ast.SymbolKindFunction, "auth/service.go")},
		[]*ast.Symbol{use("User", ast.SymbolKindType, "auth/service.go")})
	change2 := makeChange("routes/login.go", 0, diff.KindModify,
		nil,
		[]*ast.Symbol{use("authenticate", ast.SymbolKindFunction, "routes/login.go")})
	change3 := makeChange("models/user.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("User", ast.SymbolKindType, "models/user.go")},
		nil)

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{change1, change2, change3})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("got %d edges, want 2: %v", len(deps), deps)
	}

	loginEdge := findEdge(t, deps, change2.ID, change1.ID)
	if loginEdge.Strength != 1.0 {
		t.Errorf("login edge strength = %.2f, want 1.0", loginEdge.Strength)
	}

	userEdge := findEdge(t, deps, change1.ID, change3.ID)
	if userEdge.Strength != 1.0 {
		t.Errorf("user edge strength = %.2f, want 1.0", userEdge.Strength)
	}
	if userEdge.Kind != KindTypeDependency {
		t.Errorf("user edge kind = %s, want %s", userEdge.Kind, KindTypeDependency)
	}
}

func TestAnalyzeModifiedTargetIsCritical(t *testing.T) {
	target := makeChange("pkg/api.go", 0, diff.KindModify,
		[]*ast.Symbol{def("Handler", ast.SymbolKindFunction, "pkg/api.go")},
		nil)
	source := makeChange("pkg/caller.go", 0, diff.KindAdd,
		nil,
		[]*ast.Symbol{use("Handler", ast.SymbolKindFunction, "pkg/caller.go")})

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{target, source})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	edge := findEdge(t, deps, source.ID, target.ID)
	if edge.Strength != 1.0 {
		t.Errorf("strength = %.2f, want 1.0", edge.Strength)
	}
	if edge.Kind != KindModifiesUses {
		t.Errorf("kind = %s, want %s", edge.Kind, KindModifiesUses)
	}
}

func TestAnalyzeKindFallbackIsAdvisory(t *testing.T) {
	// The definition is scoped, so the bare usage name only matches via
	// the kind:name fallback key. Both changes are pure additions.
	scoped := def("run", ast.SymbolKindMethod, "pkg/worker.go")
	scoped.EnclosingScope = "Worker"
	target := makeChange("pkg/worker.go", 0, diff.KindAdd, []*ast.Symbol{scoped}, nil)

	caller := use("run", ast.SymbolKindFunction, "pkg/main.go")
	caller.QualifyingContainer = "w"
	source := makeChange("pkg/main.go", 0, diff.KindAdd, nil, []*ast.Symbol{caller})

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{target, source})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	edge := findEdge(t, deps, source.ID, target.ID)
	if edge.Strength != 0.8 {
		t.Errorf("strength = %.2f, want 0.8", edge.Strength)
	}
	if edge.Kind != KindCallChain {
		t.Errorf("kind = %s, want %s", edge.Kind, KindCallChain)
	}
}

func TestAnalyzeModuleResolution(t *testing.T) {
	target := makeChange("svc/auth/handler.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("NewHandler", ast.SymbolKindFunction, "svc/auth/handler.go")},
		nil)

	loginUse := use("Login", ast.SymbolKindFunction, "cmd/main.go")
	loginUse.QualifyingContainer = "auth"
	source := makeChange("cmd/main.go", 0, diff.KindAdd, nil, []*ast.Symbol{loginUse})
	source.Fragment.ImportAliases["auth"] = "example.com/svc/auth"

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{target, source})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	edge := findEdge(t, deps, source.ID, target.ID)
	if edge.Kind != KindImport {
		t.Errorf("kind = %s, want %s", edge.Kind, KindImport)
	}
	if edge.Strength != 1.0 {
		t.Errorf("strength = %.2f, want 1.0", edge.Strength)
	}
}

func TestAnalyzeUnresolvedProducesNoEdge(t *testing.T) {
	source := makeChange("pkg/a.go", 0, diff.KindAdd,
		nil,
		[]*ast.Symbol{use("somethingExternal", ast.SymbolKindFunction, "pkg/a.go")})
	other := makeChange("pkg/b.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("unrelated", ast.SymbolKindFunction, "pkg/b.go")},
		nil)

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{source, other})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("got %d edges, want 0: %v", len(deps), deps)
	}
}

func TestAnalyzeSelfEdgesSkipped(t *testing.T) {
	change := makeChange("pkg/a.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("helper", ast.SymbolKindFunction, "pkg/a.go")},
		[]*ast.Symbol{use("helper", ast.SymbolKindFunction, "pkg/a.go")})

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{change})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("got %d edges, want 0: %v", len(deps), deps)
	}
}

func TestAnalyzeEmptyChangeSet(t *testing.T) {
	_, err := NewAnalyzer().Analyze(context.Background(), nil)
	if !errors.Is(err, ErrNoChanges) {
		t.Errorf("error = %v, want ErrNoChanges", err)
	}
}

func TestAnalyzeDeduplicatesEdges(t *testing.T) {
	target := makeChange("pkg/t.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("T", ast.SymbolKindType, "pkg/t.go")},
		nil)
	source := makeChange("pkg/s.go", 0, diff.KindAdd,
		nil,
		[]*ast.Symbol{
			use("T", ast.SymbolKindType, "pkg/s.go"),
			use("T", ast.SymbolKindType, "pkg/s.go"),
		})

	deps, err := NewAnalyzer().Analyze(context.Background(), []*diff.Change{target, source})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(deps) != 1 {
		t.Errorf("got %d edges, want 1: %v", len(deps), deps)
	}
}
