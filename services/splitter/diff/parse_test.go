// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
)

const twoFileDiff = `--- a/auth/service.go
+++ b/auth/service.go
@@ -10,3 +10,6 @@
 func (s *Service) Login(user string) error {
-	return s.check(user)
+	if user == "" {
+		return ErrEmptyUser
+	}
+	return s.authenticate(user)
 }
--- a/auth/routes.go
+++ b/auth/routes.go
@@ -1,1 +1,3 @@
 package auth
+
+func loginRoute() {}
`

func newTestParser(t *testing.T, opts ...ParserOption) *Parser {
	t.Helper()
	return NewParser(ast.NewExtractor(), opts...)
}

func TestParseTwoFiles(t *testing.T) {
	changes, err := newTestParser(t).Parse(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("Parse() returned %d changes, want 2", len(changes))
	}

	first := changes[0]
	if first.ID != "auth/service.go:0" {
		t.Errorf("first change ID = %q, want %q", first.ID, "auth/service.go:0")
	}
	if first.Kind != KindModify {
		t.Errorf("first change kind = %v, want KindModify", first.Kind)
	}
	if first.AddedLines != 4 || first.DeletedLines != 1 {
		t.Errorf("first change counts = +%d/-%d, want +4/-1", first.AddedLines, first.DeletedLines)
	}
	if first.Language != "go" {
		t.Errorf("first change language = %q, want go", first.Language)
	}
	if first.Fragment == nil {
		t.Fatal("first change has no extracted fragment")
	}
	if first.DeletedFragment == nil {
		t.Error("first change has deleted lines but no deleted fragment")
	}

	second := changes[1]
	if second.Kind != KindAdd {
		t.Errorf("second change kind = %v, want KindAdd", second.Kind)
	}
	if second.Fragment == nil {
		t.Fatal("second change has no extracted fragment")
	}
	if !second.Fragment.DefinitionNamed("loginRoute") {
		t.Error("expected loginRoute definition in second change fragment")
	}
}

func TestParseNewFileIsAdd(t *testing.T) {
	text := `--- /dev/null
+++ b/pkg/util.go
@@ -0,0 +1,3 @@
+package pkg
+
+func Helper() {}
`
	changes, err := newTestParser(t).Parse(context.Background(), text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Kind != KindAdd {
		t.Errorf("kind = %v, want KindAdd", changes[0].Kind)
	}
	if changes[0].File != "pkg/util.go" {
		t.Errorf("file = %q, want pkg/util.go", changes[0].File)
	}
}

func TestParseDeletedFileIsDelete(t *testing.T) {
	text := `--- a/pkg/old.go
+++ /dev/null
@@ -1,3 +0,0 @@
-package pkg
-
-func Gone() {}
`
	changes, err := newTestParser(t).Parse(context.Background(), text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Kind != KindDelete {
		t.Errorf("kind = %v, want KindDelete", changes[0].Kind)
	}
	if changes[0].File != "pkg/old.go" {
		t.Errorf("file = %q, want pkg/old.go", changes[0].File)
	}
	if changes[0].DeletedFragment == nil {
		t.Fatal("delete change has no deleted fragment")
	}
	if !changes[0].DeletedFragment.DefinitionNamed("Gone") {
		t.Error("expected Gone definition in deleted fragment")
	}
}

func TestParsePathPrefixFilter(t *testing.T) {
	changes, err := newTestParser(t, WithPathPrefix("auth/routes")).Parse(context.Background(), twoFileDiff)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].File != "auth/routes.go" {
		t.Errorf("file = %q, want auth/routes.go", changes[0].File)
	}
}

func TestParseEmptyDiff(t *testing.T) {
	for _, text := range []string{"", "not a diff at all\njust prose\n"} {
		_, err := newTestParser(t).Parse(context.Background(), text)
		if !errors.Is(err, ErrEmptyDiff) {
			t.Errorf("Parse(%q) error = %v, want ErrEmptyDiff", text, err)
		}
	}
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestParser(t).Parse(ctx, twoFileDiff)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestHunkSides(t *testing.T) {
	raw := "@@ -1,3 +1,3 @@\n ctx\n-old\n+new\n"
	added, deleted := hunkSides(raw)
	if added != "ctx\nnew\n" {
		t.Errorf("added side = %q, want %q", added, "ctx\nnew\n")
	}
	if deleted != "ctx\nold\n" {
		t.Errorf("deleted side = %q, want %q", deleted, "ctx\nold\n")
	}
}
