// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch merges changes into ordered, reviewable patches.
//
// # Description
//
// The splitter consumes the change set plus the hard constraints
// (atomic groups, critical dependencies) and soft preferences (semantic
// groups) and produces a sequence of patches that is complete, acyclic
// at the patch level, and bounded by a target size wherever constraints
// allow.
//
// # Thread Safety
//
// A Splitter is safe for concurrent use; per-run state lives in the
// Split call. The PatchSplitResult is immutable once returned.
package patch

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/graph"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

// Risk levels attached to patches.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Patch is one independently-applicable output unit.
type Patch struct {
	// ID identifies the patch; sequential in application order.
	ID string `json:"id"`

	// Name is a short generated label.
	Name string `json:"name"`

	// Description summarizes the patch contents.
	Description string `json:"description"`

	// Category classifies the patch (feature, refactor, cleanup, mixed).
	Category string `json:"category"`

	// ChangeIDs lists member changes in dependency order.
	ChangeIDs []string `json:"change_ids"`

	// Files lists the files the patch touches, sorted.
	Files []string `json:"files"`

	// DependsOn lists patch ids that must apply first.
	DependsOn []string `json:"depends_on"`

	// SizeLines is the total changed line count.
	SizeLines int `json:"size_lines"`

	// RiskLevel estimates review risk from size and constraint pressure.
	RiskLevel string `json:"risk_level"`

	// Warnings carries per-patch advisories (oversized, too many hunks).
	Warnings []string `json:"warnings,omitempty"`

	// ReviewabilityScore is the composite [0,1] review-ease estimate.
	ReviewabilityScore float64 `json:"reviewability_score"`
}

// Contains reports whether the patch holds the given change.
func (p *Patch) Contains(changeID string) bool {
	for _, id := range p.ChangeIDs {
		if id == changeID {
			return true
		}
	}
	return false
}

// String returns a short representation for logging.
func (p *Patch) String() string {
	return fmt.Sprintf("%s (%d changes, %d lines)", p.ID, len(p.ChangeIDs), p.SizeLines)
}

// QualityMetrics aggregates run-level quality scores.
type QualityMetrics struct {
	// BalanceScore is 1 minus the coefficient of variation of patch
	// sizes, clamped to [0,1]. 1.0 means perfectly even patches.
	BalanceScore float64 `json:"balance_score"`

	// MeanReviewability averages the per-patch reviewability scores.
	MeanReviewability float64 `json:"mean_reviewability"`

	// TotalLines is the total changed line count across all patches.
	TotalLines int `json:"total_lines"`

	// PatchCount is the number of patches produced.
	PatchCount int `json:"patch_count"`
}

// PatchSplitResult is the terminal, immutable output of one run.
type PatchSplitResult struct {
	// Patches in topological (application) order.
	Patches []*Patch `json:"patches"`

	// AtomicGroups are the hard constraints the split honored.
	AtomicGroups []*graph.AtomicGroup `json:"atomic_groups"`

	// SemanticGroups are the advisory groups considered.
	SemanticGroups []*semantic.SemanticGroup `json:"semantic_groups"`

	// Dependencies are the edges the split was computed from.
	Dependencies []*analyze.Dependency `json:"dependencies"`

	// Warnings carries run-level advisories (cycle breaking, oversized
	// patches left intact).
	Warnings []string `json:"warnings,omitempty"`

	// Metrics holds the run-level quality scores.
	Metrics QualityMetrics `json:"metrics"`
}

// PatchFor returns the patch containing a change id, if any.
func (r *PatchSplitResult) PatchFor(changeID string) (*Patch, bool) {
	for _, p := range r.Patches {
		if p.Contains(changeID) {
			return p, true
		}
	}
	return nil, false
}

// patchID formats the sequential patch identifier.
func patchID(n int) string {
	return fmt.Sprintf("patch-%03d", n)
}

// sortedSet returns the sorted elements of a string set.
func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
