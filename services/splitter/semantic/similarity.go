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
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// Similarity thresholds and scores.
const (
	// jaccardThreshold is the minimum symbol overlap for a pair group.
	jaccardThreshold = 0.30

	// jaccardCohesion is the cohesion assigned to overlap groups.
	jaccardCohesion = 0.70
)

// pairSimilarity is one computed change pair.
type pairSimilarity struct {
	a, b    int
	jaccard float64
}

// jaccardSimilarity computes |A∩B| / |A∪B| over symbol-name sets.
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for name := range a {
		if _, ok := b[name]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// computePairSimilarities fans the all-pairs Jaccard computation out
// across workers. Each worker fills disjoint slots of a pre-sized
// result slice; no shared state is written during the fan-out.
func computePairSimilarities(ctx context.Context, changes []*diff.Change) ([]pairSimilarity, error) {
	n := len(changes)
	if n < 2 {
		return nil, nil
	}

	names := make([]map[string]struct{}, n)
	for i, c := range changes {
		names[i] = c.SymbolNames()
	}

	pairs := make([]pairSimilarity, 0, n*(n-1)/2)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			pairs = append(pairs, pairSimilarity{a: a, b: b})
		}
	}

	g, _ := errgroup.WithContext(ctx)
	workers := runtime.NumCPU()
	chunk := (len(pairs) + workers - 1) / workers
	for start := 0; start < len(pairs); start += chunk {
		end := start + chunk
		if end > len(pairs) {
			end = len(pairs)
		}
		slot := pairs[start:end]
		g.Go(func() error {
			for i := range slot {
				slot[i].jaccard = jaccardSimilarity(names[slot[i].a], names[slot[i].b])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// lineProximity scores two changes by line distance, clamped to
// [0.5, 1.0] for same-file pairs. Cross-file pairs score 0.
func lineProximity(a, b *diff.Change) float64 {
	if a.File != b.File {
		return 0
	}
	distance := a.Lines.Distance(b.Lines)
	score := 1.0 - float64(distance)/1000.0
	if score < 0.5 {
		return 0.5
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
