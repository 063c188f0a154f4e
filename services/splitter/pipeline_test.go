// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package splitter

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/patch"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

const authDiff = `diff --git a/auth/service.go b/auth/service.go
--- a/auth/service.go
+++ b/auth/service.go
@@ -10,3 +10,3 @@
 func authenticate(token string) (*User, error) {
-	return checkToken(token)
+	return verifyToken(token)
 }
diff --git a/api/login.go b/api/login.go
new file mode 100644
--- /dev/null
+++ b/api/login.go
@@ -0,0 +1,5 @@
+func login(token string) error {
+	user, err := authenticate(token)
+	_ = user
+	return err
+}
`

const fourSingletonDiff = `diff --git a/a.go b/a.go
new file mode 100644
--- /dev/null
+++ b/a.go
@@ -0,0 +1,3 @@
+func alphaOne() int {
+	return 1
+}
diff --git a/b.go b/b.go
new file mode 100644
--- /dev/null
+++ b/b.go
@@ -0,0 +1,3 @@
+func bravoTwo() int {
+	return 2
+}
diff --git a/c.go b/c.go
new file mode 100644
--- /dev/null
+++ b/c.go
@@ -0,0 +1,3 @@
+func charlieThree() int {
+	return 3
+}
diff --git a/d.go b/d.go
new file mode 100644
--- /dev/null
+++ b/d.go
@@ -0,0 +1,3 @@
+func deltaFour() int {
+	return 4
+}
`

func patchIndexOf(t *testing.T, result *patch.PatchSplitResult, changeID string) int {
	t.Helper()
	for i, p := range result.Patches {
		if p.Contains(changeID) {
			return i
		}
	}
	t.Fatalf("change %s not in any patch", changeID)
	return -1
}

func TestRunAuthScenario(t *testing.T) {
	p := NewPipeline()
	res, err := p.Run(context.Background(), authDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(res.Changes) != 2 {
		t.Fatalf("parsed %d changes, want 2", len(res.Changes))
	}

	// The new login change depends on the modified authenticate change
	// with critical strength.
	var edge *analyze.Dependency
	for _, d := range res.Result.Dependencies {
		if d.SourceChangeID == "api/login.go:0" && d.TargetChangeID == "auth/service.go:0" {
			edge = d
		}
	}
	if edge == nil {
		t.Fatal("missing login -> authenticate dependency")
	}
	if edge.Strength < 1.0 {
		t.Errorf("edge strength = %v, want 1.0", edge.Strength)
	}
	if res.Run.Stats.EdgesByKind[string(edge.Kind)] == 0 {
		t.Errorf("edge kind tally missing: %v", res.Run.Stats.EdgesByKind)
	}

	// Critical edges co-locate or order target first.
	authIdx := patchIndexOf(t, res.Result, "auth/service.go:0")
	loginIdx := patchIndexOf(t, res.Result, "api/login.go:0")
	if authIdx > loginIdx {
		t.Errorf("authenticate patch (%d) ordered after login patch (%d)", authIdx, loginIdx)
	}
}

func TestRunCompleteness(t *testing.T) {
	p := NewPipeline()
	res, err := p.Run(context.Background(), authDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	seen := make(map[string]int)
	for _, pat := range res.Result.Patches {
		for _, id := range pat.ChangeIDs {
			seen[id]++
		}
	}
	if len(seen) != len(res.Changes) {
		t.Errorf("patches cover %d changes, want %d", len(seen), len(res.Changes))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("change %s appears %d times", id, n)
		}
	}
}

func TestRunFourSingletons(t *testing.T) {
	p := NewPipeline()
	res, err := p.Run(context.Background(), fourSingletonDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(res.Result.Patches) != 4 {
		t.Fatalf("got %d patches, want 4", len(res.Result.Patches))
	}
	if res.Result.Metrics.BalanceScore != 1.0 {
		t.Errorf("balance = %v, want 1.0 for equal singletons", res.Result.Metrics.BalanceScore)
	}
	if res.Run.Stats.Changes != 4 || res.Run.Stats.Patches != 4 {
		t.Errorf("stats = %+v", res.Run.Stats)
	}
}

func TestRunEmptyInputIsFatal(t *testing.T) {
	p := NewPipeline()

	for _, input := range []string{"", "no diff here, only prose\n"} {
		if _, err := p.Run(context.Background(), input); !errors.Is(err, ErrNoUsableChanges) {
			t.Errorf("Run(%q) error = %v, want ErrNoUsableChanges", input, err)
		}
	}
}

func TestRunPathPrefix(t *testing.T) {
	p := NewPipeline(WithPathPrefix("auth/"))
	res, err := p.Run(context.Background(), authDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].File != "auth/service.go" {
		t.Errorf("prefix filter kept %v", res.Changes)
	}
	if res.Run.Settings.PathPrefix != "auth/" {
		t.Errorf("settings = %+v", res.Run.Settings)
	}
}

// scriptedEnhancer exercises every injection point.
type scriptedEnhancer struct {
	extraDep   *analyze.Dependency
	extraGroup *semantic.SemanticGroup
	desc       string
	findings   []string
}

func (s *scriptedEnhancer) EnhanceDependencies(_ context.Context, _ []*diff.Change, _ []*analyze.Dependency) ([]*analyze.Dependency, error) {
	if s.extraDep == nil {
		return nil, nil
	}
	return []*analyze.Dependency{s.extraDep}, nil
}

func (s *scriptedEnhancer) EnhanceGroups(_ context.Context, _ []*diff.Change, _ []*semantic.SemanticGroup) ([]*semantic.SemanticGroup, error) {
	if s.extraGroup == nil {
		return nil, nil
	}
	return []*semantic.SemanticGroup{s.extraGroup}, nil
}

func (s *scriptedEnhancer) DescribePatch(_ context.Context, _ *patch.Patch, _ []*diff.Change, _ []string) (string, error) {
	return s.desc, nil
}

func (s *scriptedEnhancer) ReviewSplit(_ context.Context, _ *patch.PatchSplitResult) ([]string, error) {
	return s.findings, nil
}

func TestRunEnhancerInjection(t *testing.T) {
	e := &scriptedEnhancer{
		extraDep: &analyze.Dependency{
			SourceChangeID: "a.go:0",
			TargetChangeID: "b.go:0",
			Kind:           analyze.KindCallChain,
			Strength:       0.8,
			Reason:         "llm: behavioral coupling",
		},
		desc:     "Reviewed summary.",
		findings: []string{"b.go change looks unrelated"},
	}
	p := NewPipeline(WithEnhancer(e))
	res, err := p.Run(context.Background(), fourSingletonDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	found := false
	for _, d := range res.Result.Dependencies {
		if d.SourceChangeID == "a.go:0" && d.TargetChangeID == "b.go:0" {
			found = true
		}
	}
	if !found {
		t.Error("enhancer dependency not appended")
	}

	// Advisory 0.8 edge orders b before a but does not merge them.
	aIdx := patchIndexOf(t, res.Result, "a.go:0")
	bIdx := patchIndexOf(t, res.Result, "b.go:0")
	if bIdx > aIdx {
		t.Errorf("dependency target patch (%d) after source patch (%d)", bIdx, aIdx)
	}

	for _, pat := range res.Result.Patches {
		if pat.Description != "Reviewed summary." {
			t.Errorf("patch %s description = %q", pat.ID, pat.Description)
		}
	}

	foundWarning := false
	for _, w := range res.Result.Warnings {
		if w == "review: b.go change looks unrelated" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Errorf("review finding missing from warnings: %v", res.Result.Warnings)
	}
	if !res.Run.Settings.Enhanced {
		t.Error("settings should record enhancement")
	}
}

func TestRunEnhancerFailureIsNonFatal(t *testing.T) {
	p := NewPipeline(WithEnhancer(failingEnhancer{}))
	res, err := p.Run(context.Background(), fourSingletonDiff)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Result.Patches) != 4 {
		t.Errorf("got %d patches, want 4", len(res.Result.Patches))
	}
}

type failingEnhancer struct{}

func (failingEnhancer) EnhanceDependencies(_ context.Context, _ []*diff.Change, _ []*analyze.Dependency) ([]*analyze.Dependency, error) {
	return nil, errors.New("backend down")
}

func (failingEnhancer) EnhanceGroups(_ context.Context, _ []*diff.Change, _ []*semantic.SemanticGroup) ([]*semantic.SemanticGroup, error) {
	return nil, errors.New("backend down")
}

func (failingEnhancer) DescribePatch(_ context.Context, _ *patch.Patch, _ []*diff.Change, _ []string) (string, error) {
	return "", errors.New("backend down")
}

func (failingEnhancer) ReviewSplit(_ context.Context, _ *patch.PatchSplitResult) ([]string, error) {
	return nil, errors.New("backend down")
}
