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
	"testing"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

func TestSymbolIndexFirstWriterWins(t *testing.T) {
	first := makeChange("pkg/a.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("Handler", ast.SymbolKindFunction, "pkg/a.go")}, nil)
	second := makeChange("pkg/b.go", 0, diff.KindAdd,
		[]*ast.Symbol{def("Handler", ast.SymbolKindFunction, "pkg/b.go")}, nil)

	idx := buildSymbolIndex([]*diff.Change{first, second})

	entry, ok := idx.lookup("Handler")
	if !ok {
		t.Fatal("Handler not indexed")
	}
	if entry.changeID != first.ID {
		t.Errorf("Handler resolves to %s, want %s (first writer)", entry.changeID, first.ID)
	}

	// The file-scoped key still reaches the shadowed definition.
	entry, ok = idx.lookup("pkg/b.go:Handler")
	if !ok {
		t.Fatal("file-scoped key not indexed")
	}
	if entry.changeID != second.ID {
		t.Errorf("file key resolves to %s, want %s", entry.changeID, second.ID)
	}
}

func TestSymbolIndexScopedKeys(t *testing.T) {
	scoped := def("run", ast.SymbolKindMethod, "pkg/w.go")
	scoped.EnclosingScope = "Worker"
	change := makeChange("pkg/w.go", 0, diff.KindAdd, []*ast.Symbol{scoped}, nil)

	idx := buildSymbolIndex([]*diff.Change{change})

	for _, key := range []string{"Worker.run", "run", "function:run", "pkg/w.go:run"} {
		if _, ok := idx.lookup(key); !ok {
			t.Errorf("key %q not indexed", key)
		}
	}
}

func TestModuleCandidates(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"svc/auth/handler.go", []string{"handler", "auth", "svc"}},
		{"util.py", []string{"util"}},
		{"a/b/c/d.ts", []string{"d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		got := moduleCandidates(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("moduleCandidates(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("moduleCandidates(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.com/svc/auth", "auth"},
		{"os.path", "path"},
		{"react", "react"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastPathSegment(tt.in); got != tt.want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
