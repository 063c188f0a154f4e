// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic proposes advisory groups of related changes.
//
// # Description
//
// Groups are heuristic and overlapping: a change may belong to none,
// one, or several groups, and nothing here constrains the final split.
// Signals are file proximity, refactor-pattern detection (rename,
// extraction, API change), and symbol-overlap similarity.
//
// # Thread Safety
//
// A Grouper is safe for concurrent use; per-run state lives in the
// Group call.
package semantic

import (
	"sort"

	"github.com/google/uuid"
)

// SemanticGroup is an advisory cluster of changes believed to form one
// coherent unit of work.
type SemanticGroup struct {
	// ID uniquely identifies the group within the run.
	ID string `json:"id"`

	// Name is a short human-readable label.
	Name string `json:"name"`

	// ChangeIDs is the member set. Membership may overlap across groups.
	ChangeIDs map[string]struct{} `json:"change_ids"`

	// Description explains the grouping signal.
	Description string `json:"description"`

	// CohesionScore is the [0,1] confidence that the grouping reflects
	// genuine relatedness.
	CohesionScore float64 `json:"cohesion_score"`
}

// NewSemanticGroup creates a group with a fresh id.
func NewSemanticGroup(name, description string, cohesion float64, changeIDs ...string) *SemanticGroup {
	g := &SemanticGroup{
		ID:            uuid.NewString(),
		Name:          name,
		ChangeIDs:     make(map[string]struct{}, len(changeIDs)),
		Description:   description,
		CohesionScore: cohesion,
	}
	for _, id := range changeIDs {
		g.ChangeIDs[id] = struct{}{}
	}
	return g
}

// Members returns the member ids in sorted order.
func (g *SemanticGroup) Members() []string {
	members := make([]string, 0, len(g.ChangeIDs))
	for id := range g.ChangeIDs {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// Contains reports membership of a change id.
func (g *SemanticGroup) Contains(changeID string) bool {
	_, ok := g.ChangeIDs[changeID]
	return ok
}

// overlapRatio returns |a∩b| / min(|a|,|b|).
func (g *SemanticGroup) overlapRatio(other *SemanticGroup) float64 {
	small, large := g.ChangeIDs, other.ChangeIDs
	if len(large) < len(small) {
		small, large = large, small
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for id := range small {
		if _, ok := large[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// MembershipIndex builds the change-to-groups lookup. Groups do not own
// their changes, so membership lives in a separate index rather than on
// the change itself.
func MembershipIndex(groups []*SemanticGroup) map[string]map[string]struct{} {
	index := make(map[string]map[string]struct{})
	for _, g := range groups {
		for changeID := range g.ChangeIDs {
			set, ok := index[changeID]
			if !ok {
				set = make(map[string]struct{})
				index[changeID] = set
			}
			set[g.ID] = struct{}{}
		}
	}
	return index
}
