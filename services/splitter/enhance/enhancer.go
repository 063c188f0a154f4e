// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enhance layers optional model-backed judgment on top of the
// heuristic splitting pipeline.
//
// # Description
//
// An Enhancer is consulted at fixed pipeline injection points: after
// heuristic dependency analysis, after heuristic semantic grouping,
// when naming finished patches, and once over the completed split. Its
// output is strictly additive. Enhancer failures never fail the
// pipeline; callers log and continue with the heuristic result.
//
// # Thread Safety
//
// Enhancer implementations in this package are safe for concurrent use.
package enhance

import (
	"context"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/patch"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

// Enhancer refines a heuristic split with model-backed judgment.
//
// Every method is advisory. Returned dependencies and groups are
// appended to the heuristic sets, never substituted for them, and a
// returned error means "no enhancement", not a pipeline failure.
type Enhancer interface {
	// EnhanceDependencies proposes dependency edges the symbol-based
	// analyzer missed, such as behavioral coupling with no shared
	// identifiers.
	EnhanceDependencies(ctx context.Context, changes []*diff.Change, existing []*analyze.Dependency) ([]*analyze.Dependency, error)

	// EnhanceGroups proposes semantic groups beyond the pattern
	// detectors, with a cohesion score per group.
	EnhanceGroups(ctx context.Context, changes []*diff.Change, existing []*semantic.SemanticGroup) ([]*semantic.SemanticGroup, error)

	// DescribePatch writes a reviewer-facing summary for one patch.
	// prior carries summaries of already-described patches, most recent
	// last. An empty result keeps the heuristic description.
	DescribePatch(ctx context.Context, p *patch.Patch, changes []*diff.Change, prior []string) (string, error)

	// ReviewSplit inspects the finished split and returns advisory
	// findings. Findings surface as warnings and never alter patches.
	ReviewSplit(ctx context.Context, result *patch.PatchSplitResult) ([]string, error)
}

// NoopEnhancer is the default when no model is configured.
type NoopEnhancer struct{}

func (NoopEnhancer) EnhanceDependencies(_ context.Context, _ []*diff.Change, _ []*analyze.Dependency) ([]*analyze.Dependency, error) {
	return nil, nil
}

func (NoopEnhancer) EnhanceGroups(_ context.Context, _ []*diff.Change, _ []*semantic.SemanticGroup) ([]*semantic.SemanticGroup, error) {
	return nil, nil
}

func (NoopEnhancer) DescribePatch(_ context.Context, _ *patch.Patch, _ []*diff.Change, _ []string) (string, error) {
	return "", nil
}

func (NoopEnhancer) ReviewSplit(_ context.Context, _ *patch.PatchSplitResult) ([]string, error) {
	return nil, nil
}
