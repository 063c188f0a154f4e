// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import "math"

// Reviewability weights and size-score shape.
const (
	sizeWeight    = 0.5
	fileWeight    = 0.3
	warningWeight = 0.2

	// The size score peaks at 1.0 for 50-200 changed lines, decays
	// toward 0.1 beyond 500 and toward 0.3 below 10.
	sizeSweetLow  = 50
	sizeSweetHigh = 200
	sizeDecayHigh = 500
	sizeDecayLow  = 10
	sizeFloorHigh = 0.1
	sizeFloorLow  = 0.3
)

// reviewabilityScore estimates how easy a patch is to review.
func reviewabilityScore(p *Patch) float64 {
	return sizeWeight*sizeScore(p.SizeLines) +
		fileWeight*fileCountScore(len(p.Files)) +
		warningWeight*warningScore(len(p.Warnings))
}

// sizeScore peaks in the reviewable sweet spot and decays outside it.
func sizeScore(lines int) float64 {
	switch {
	case lines >= sizeSweetLow && lines <= sizeSweetHigh:
		return 1.0
	case lines > sizeSweetHigh:
		if lines >= sizeDecayHigh {
			return sizeFloorHigh
		}
		span := float64(sizeDecayHigh - sizeSweetHigh)
		return 1.0 - (1.0-sizeFloorHigh)*float64(lines-sizeSweetHigh)/span
	default:
		if lines <= sizeDecayLow {
			return sizeFloorLow
		}
		span := float64(sizeSweetLow - sizeDecayLow)
		return 1.0 - (1.0-sizeFloorLow)*float64(sizeSweetLow-lines)/span
	}
}

// fileCountScore prefers patches concentrated in few files.
func fileCountScore(files int) float64 {
	if files <= 2 {
		return 1.0
	}
	score := 1.0 - 0.1*float64(files-2)
	if score < 0.2 {
		return 0.2
	}
	return score
}

// warningScore penalizes attached warnings.
func warningScore(warnings int) float64 {
	score := 1.0 - 0.4*float64(warnings)
	if score < 0.2 {
		return 0.2
	}
	return score
}

// computeMetrics aggregates run-level quality scores.
func computeMetrics(patches []*Patch) QualityMetrics {
	m := QualityMetrics{PatchCount: len(patches)}
	if len(patches) == 0 {
		return m
	}

	var reviewSum float64
	for _, p := range patches {
		m.TotalLines += p.SizeLines
		reviewSum += p.ReviewabilityScore
	}
	m.MeanReviewability = reviewSum / float64(len(patches))
	m.BalanceScore = balanceScore(patches)
	return m
}

// balanceScore is 1 minus the coefficient of variation of patch sizes,
// clamped to [0,1]. Equal-sized patches score 1.0.
func balanceScore(patches []*Patch) float64 {
	n := float64(len(patches))
	var sum float64
	for _, p := range patches {
		sum += float64(p.SizeLines)
	}
	mean := sum / n
	if mean == 0 {
		return 1.0
	}

	var variance float64
	for _, p := range patches {
		d := float64(p.SizeLines) - mean
		variance += d * d
	}
	variance /= n

	cv := math.Sqrt(variance) / mean
	score := 1.0 - cv
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
