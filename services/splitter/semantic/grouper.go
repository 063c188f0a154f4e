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
	"fmt"
	"log/slog"
	"path"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

var grouperTracer = otel.Tracer("patchflow.semantic")

// Combined-cohesion weights for groups assembled from multiple signals.
const (
	fileSignalWeight   = 0.4
	symbolSignalWeight = 0.4
	lineSignalWeight   = 0.2

	// dedupOverlap is the member overlap above which two groups are
	// considered duplicates.
	dedupOverlap = 0.70
)

// GrouperOptions configures Grouper behavior.
type GrouperOptions struct {
	// MinGroupSize is the smallest group worth proposing.
	MinGroupSize int
}

// DefaultGrouperOptions returns sensible defaults.
func DefaultGrouperOptions() GrouperOptions {
	return GrouperOptions{MinGroupSize: 2}
}

// GrouperOption is a functional option for configuring Grouper.
type GrouperOption func(*GrouperOptions)

// WithMinGroupSize sets the smallest group worth proposing.
func WithMinGroupSize(n int) GrouperOption {
	return func(o *GrouperOptions) {
		if n > 1 {
			o.MinGroupSize = n
		}
	}
}

// Grouper proposes advisory semantic groups over a change set.
type Grouper struct {
	options GrouperOptions
}

// NewGrouper creates a Grouper with the given options.
func NewGrouper(opts ...GrouperOption) *Grouper {
	options := DefaultGrouperOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Grouper{options: options}
}

// Group proposes semantic groups for the change set.
//
// Description:
//
//	Runs all grouping signals (file proximity, refactor patterns,
//	symbol-overlap similarity), then deduplicates: when two proposals
//	share more than 70% of their members, only the higher-cohesion one
//	survives. The result is advisory; it never constrains the split.
//
// Outputs:
//
//	[]*SemanticGroup - Deduplicated groups, highest cohesion first.
//	error - Only on context cancellation.
func (g *Grouper) Group(ctx context.Context, changes []*diff.Change) ([]*SemanticGroup, error) {
	ctx, span := grouperTracer.Start(ctx, "Group")
	defer span.End()

	pairs, err := computePairSimilarities(ctx, changes)
	if err != nil {
		return nil, err
	}

	proposals := make([]*SemanticGroup, 0)
	proposals = append(proposals, g.fileGroups(changes, pairs)...)
	proposals = append(proposals, detectRenames(changes)...)
	proposals = append(proposals, detectExtractions(changes)...)
	proposals = append(proposals, detectAPIChanges(changes)...)
	proposals = append(proposals, g.overlapGroups(changes, pairs)...)

	groups := dedupGroups(proposals)
	span.SetAttributes(
		attribute.Int("proposals", len(proposals)),
		attribute.Int("groups", len(groups)),
	)
	slog.Debug("semantic grouping complete",
		slog.Int("changes", len(changes)),
		slog.Int("groups", len(groups)),
	)
	return groups, nil
}

// fileGroups proposes one group per file with enough changes. Cohesion
// combines the file signal with mean symbol overlap and mean line
// proximity, clamped to [0.5, 1.0] since same-file changes always
// retain weak cohesion.
func (g *Grouper) fileGroups(changes []*diff.Change, pairs []pairSimilarity) []*SemanticGroup {
	byFile := make(map[string][]int)
	for i, c := range changes {
		byFile[c.File] = append(byFile[c.File], i)
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	jaccardOf := pairLookup(pairs)

	groups := make([]*SemanticGroup, 0)
	for _, file := range files {
		members := byFile[file]
		if len(members) < g.options.MinGroupSize {
			continue
		}

		var symbolSum, lineSum float64
		pairCount := 0
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				symbolSum += jaccardOf(members[i], members[j])
				lineSum += lineProximity(changes[members[i]], changes[members[j]])
				pairCount++
			}
		}
		cohesion := fileSignalWeight
		if pairCount > 0 {
			cohesion = fileSignalWeight +
				symbolSignalWeight*(symbolSum/float64(pairCount)) +
				lineSignalWeight*(lineSum/float64(pairCount))
		}
		cohesion = clamp(cohesion, 0.5, 1.0)

		ids := make([]string, 0, len(members))
		for _, idx := range members {
			ids = append(ids, changes[idx].ID)
		}
		groups = append(groups, NewSemanticGroup(
			fmt.Sprintf("changes in %s", path.Base(file)),
			fmt.Sprintf("%d changes in %s", len(members), file),
			cohesion, ids...))
	}
	return groups
}

// overlapGroups proposes a group per change pair whose symbol-name
// Jaccard similarity exceeds the threshold.
func (g *Grouper) overlapGroups(changes []*diff.Change, pairs []pairSimilarity) []*SemanticGroup {
	groups := make([]*SemanticGroup, 0)
	for _, p := range pairs {
		if p.jaccard <= jaccardThreshold {
			continue
		}
		a, b := changes[p.a], changes[p.b]
		groups = append(groups, NewSemanticGroup(
			fmt.Sprintf("shared symbols: %s, %s", path.Base(a.File), path.Base(b.File)),
			fmt.Sprintf("symbol overlap %.2f between %s and %s", p.jaccard, a.ID, b.ID),
			jaccardCohesion, a.ID, b.ID))
	}
	return groups
}

// dedupGroups drops lower-cohesion proposals that substantially overlap
// a kept group.
func dedupGroups(proposals []*SemanticGroup) []*SemanticGroup {
	sort.SliceStable(proposals, func(i, j int) bool {
		if proposals[i].CohesionScore != proposals[j].CohesionScore {
			return proposals[i].CohesionScore > proposals[j].CohesionScore
		}
		return proposals[i].Name < proposals[j].Name
	})

	kept := make([]*SemanticGroup, 0, len(proposals))
	for _, candidate := range proposals {
		duplicate := false
		for _, existing := range kept {
			if candidate.overlapRatio(existing) > dedupOverlap {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// pairLookup builds an index from (a, b) to the pair's Jaccard score.
func pairLookup(pairs []pairSimilarity) func(a, b int) float64 {
	index := make(map[[2]int]float64, len(pairs))
	for _, p := range pairs {
		index[[2]int{p.a, p.b}] = p.jaccard
	}
	return func(a, b int) float64 {
		if a > b {
			a, b = b, a
		}
		return index[[2]int{a, b}]
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
