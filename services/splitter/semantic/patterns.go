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
	"fmt"
	"sort"

	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// Refactor-pattern cohesion scores.
const (
	renameCohesion     = 0.95
	extractionCohesion = 0.90
	apiChangeCohesion  = 0.85

	// renameMinChanges is the minimum spread before a name seen on both
	// sides of the diff counts as a rename.
	renameMinChanges = 3
)

// detectRenames finds symbol names appearing as both deletions and
// additions across at least renameMinChanges changes.
func detectRenames(changes []*diff.Change) []*SemanticGroup {
	addedIn := make(map[string]map[string]struct{})
	deletedIn := make(map[string]map[string]struct{})

	for _, c := range changes {
		if c.Fragment != nil {
			for _, def := range c.Fragment.Definitions {
				record(addedIn, def.Name, c.ID)
			}
		}
		if c.DeletedFragment != nil {
			for _, def := range c.DeletedFragment.Definitions {
				record(deletedIn, def.Name, c.ID)
			}
		}
	}

	groups := make([]*SemanticGroup, 0)
	for _, name := range sortedKeys(addedIn) {
		deleted, ok := deletedIn[name]
		if !ok {
			continue
		}
		members := make(map[string]struct{})
		for id := range addedIn[name] {
			members[id] = struct{}{}
		}
		for id := range deleted {
			members[id] = struct{}{}
		}
		// Context lines show up on both sides of the same hunk; a real
		// rename needs the name added somewhere it was not deleted and
		// deleted somewhere it was not added.
		if len(members) < renameMinChanges || !asymmetric(addedIn[name], deleted) {
			continue
		}
		group := NewSemanticGroup(
			fmt.Sprintf("rename of %s", name),
			fmt.Sprintf("symbol %s appears as both deletion and addition across %d changes", name, len(members)),
			renameCohesion)
		group.ChangeIDs = members
		groups = append(groups, group)
	}
	return groups
}

// detectExtractions finds new definitions accompanied by deletions
// referencing the same symbol name.
func detectExtractions(changes []*diff.Change) []*SemanticGroup {
	groups := make([]*SemanticGroup, 0)
	for _, definer := range changes {
		if definer.Kind != diff.KindAdd || definer.Fragment == nil {
			continue
		}
		for _, def := range definer.Fragment.Definitions {
			members := map[string]struct{}{definer.ID: {}}
			for _, other := range changes {
				if other.ID == definer.ID || other.DeletedFragment == nil {
					continue
				}
				if _, ok := other.DeletedFragment.SymbolNames()[def.Name]; ok {
					members[other.ID] = struct{}{}
				}
			}
			if len(members) < 2 {
				continue
			}
			group := NewSemanticGroup(
				fmt.Sprintf("extraction of %s", def.Name),
				fmt.Sprintf("new definition of %s with deletions referencing it", def.Name),
				extractionCohesion)
			group.ChangeIDs = members
			groups = append(groups, group)
		}
	}
	return groups
}

// detectAPIChanges pairs each modified definition with every change
// that uses it.
func detectAPIChanges(changes []*diff.Change) []*SemanticGroup {
	groups := make([]*SemanticGroup, 0)
	for _, modifier := range changes {
		if modifier.Kind != diff.KindModify {
			continue
		}
		for _, def := range modifier.Definitions() {
			members := map[string]struct{}{modifier.ID: {}}
			for _, other := range changes {
				if other.ID == modifier.ID {
					continue
				}
				for _, usage := range other.Usages() {
					if usage.Name == def.Name {
						members[other.ID] = struct{}{}
						break
					}
				}
			}
			if len(members) < 2 {
				continue
			}
			group := NewSemanticGroup(
				fmt.Sprintf("api change to %s", def.Name),
				fmt.Sprintf("modified definition of %s with its call sites", def.Name),
				apiChangeCohesion)
			group.ChangeIDs = members
			groups = append(groups, group)
		}
	}
	return groups
}

// asymmetric reports whether each set has at least one member absent
// from the other.
func asymmetric(added, deleted map[string]struct{}) bool {
	addedOnly, deletedOnly := false, false
	for id := range added {
		if _, ok := deleted[id]; !ok {
			addedOnly = true
			break
		}
	}
	for id := range deleted {
		if _, ok := added[id]; !ok {
			deletedOnly = true
			break
		}
	}
	return addedOnly && deletedOnly
}

func record(index map[string]map[string]struct{}, name, changeID string) {
	set, ok := index[name]
	if !ok {
		set = make(map[string]struct{})
		index[name] = set
	}
	set[changeID] = struct{}{}
}

func sortedKeys(m map[string]map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
