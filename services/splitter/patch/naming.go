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

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// Patch categories derived from change kinds.
const (
	CategoryFeature  = "feature"
	CategoryRefactor = "refactor"
	CategoryCleanup  = "cleanup"
	CategoryMixed    = "mixed"
)

// describePatch builds a patch from its member changes with a generated
// name, category, and description. Output is deterministic for a given
// member set; an advisory enhancement may later replace the description.
func describePatch(members []*diff.Change) *Patch {
	sort.Slice(members, func(i, j int) bool {
		if members[i].File != members[j].File {
			return members[i].File < members[j].File
		}
		return members[i].HunkIndex < members[j].HunkIndex
	})

	fileSet := make(map[string]struct{})
	changeIDs := make([]string, 0, len(members))
	size := 0
	adds, deletes, modifies := 0, 0, 0
	for _, c := range members {
		changeIDs = append(changeIDs, c.ID)
		fileSet[c.File] = struct{}{}
		size += c.Size()
		switch c.Kind {
		case diff.KindAdd:
			adds++
		case diff.KindDelete:
			deletes++
		case diff.KindModify:
			modifies++
		}
	}
	files := sortedSet(fileSet)
	category := categorize(adds, modifies, deletes)

	p := &Patch{
		Name:        buildName(category, files, members),
		Description: buildDescription(category, files, members),
		Category:    category,
		ChangeIDs:   changeIDs,
		Files:       files,
		SizeLines:   size,
	}
	p.RiskLevel = riskLevel(p)
	return p
}

// categorize picks the dominant change kind.
func categorize(adds, modifies, deletes int) string {
	total := adds + modifies + deletes
	switch {
	case total == 0:
		return CategoryMixed
	case adds == total:
		return CategoryFeature
	case deletes == total:
		return CategoryCleanup
	case modifies == total:
		return CategoryRefactor
	default:
		return CategoryMixed
	}
}

// buildName produces a short label from the touched area and the most
// prominent defined symbols.
func buildName(category string, files []string, members []*diff.Change) string {
	area := commonArea(files)
	symbols := prominentSymbols(members, 2)
	if len(symbols) > 0 {
		return fmt.Sprintf("%s: %s (%s)", area, strings.Join(symbols, ", "), category)
	}
	return fmt.Sprintf("%s: %d changes (%s)", area, len(members), category)
}

// buildDescription summarizes what the patch touches.
func buildDescription(category string, files []string, members []*diff.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s patch touching %d file(s): %s.",
		strings.ToUpper(category[:1])+category[1:], len(files), strings.Join(files, ", "))
	if symbols := prominentSymbols(members, 5); len(symbols) > 0 {
		fmt.Fprintf(&b, " Key symbols: %s.", strings.Join(symbols, ", "))
	}
	return b.String()
}

// commonArea returns a label for where the patch lives: the shared
// directory when there is one, else the first file's directory.
func commonArea(files []string) string {
	if len(files) == 0 {
		return "misc"
	}
	dirs := make(map[string]struct{})
	for _, f := range files {
		dirs[path.Dir(f)] = struct{}{}
	}
	if len(dirs) == 1 {
		dir := path.Dir(files[0])
		if dir == "." {
			return strings.TrimSuffix(path.Base(files[0]), path.Ext(files[0]))
		}
		return dir
	}
	return path.Dir(files[0]) + "/..."
}

// prominentSymbols returns up to limit defined symbol names, preferring
// functions and types over variables.
func prominentSymbols(members []*diff.Change, limit int) []string {
	type scored struct {
		name string
		rank int
	}
	seen := make(map[string]struct{})
	candidates := make([]scored, 0)
	for _, c := range members {
		for _, def := range c.Definitions() {
			if _, dup := seen[def.Name]; dup {
				continue
			}
			seen[def.Name] = struct{}{}
			rank := 2
			switch def.Kind {
			case ast.SymbolKindFunction, ast.SymbolKindMethod:
				rank = 0
			case ast.SymbolKindType:
				rank = 1
			}
			candidates = append(candidates, scored{name: def.Name, rank: rank})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].name < candidates[j].name
	})
	names := make([]string, 0, limit)
	for _, c := range candidates {
		if len(names) == limit {
			break
		}
		names = append(names, c.name)
	}
	return names
}

// riskLevel estimates review risk from size and spread.
func riskLevel(p *Patch) string {
	switch {
	case p.SizeLines > warnLines || len(p.ChangeIDs) > warnHunks:
		return RiskHigh
	case p.SizeLines > defaultTargetSize || len(p.Files) > 5:
		return RiskMedium
	default:
		return RiskLow
	}
}
