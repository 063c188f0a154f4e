// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// resolution is the outcome of one successful strategy.
type resolution struct {
	// targetChangeID is the change defining the resolved symbol.
	targetChangeID string

	// definition is the matched symbol, nil for module-level matches.
	definition *ast.Symbol

	// viaImport marks resolutions made through the module index.
	viaImport bool

	// exact marks resolutions that matched the usage's own name or
	// container key, as opposed to a heuristic fallback key.
	exact bool

	// confidence is a per-strategy constant for observability only.
	// It provides coarse ordering between strategies and must not be
	// used for branching logic.
	confidence float64
}

// resolutionStrategy is one pure lookup function in the cascade.
// Strategies are tried in slice order; the first hit wins.
type resolutionStrategy struct {
	name string
	fn   func(usage *ast.Symbol, source *diff.Change, idx *symbolIndex) (resolution, bool)
}

// resolutionStrategies is the cascade, in priority order.
var resolutionStrategies = []resolutionStrategy{
	{name: "qualified", fn: resolveQualified},
	{name: "container", fn: resolveContainer},
	{name: "kind_fallback", fn: resolveKindFallback},
	{name: "module", fn: resolveModule},
}

// resolveQualified looks the usage's qualified name up directly.
func resolveQualified(usage *ast.Symbol, _ *diff.Change, idx *symbolIndex) (resolution, bool) {
	entry, ok := idx.lookup(usage.QualifiedName())
	if !ok {
		return resolution{}, false
	}
	return resolution{targetChangeID: entry.changeID, definition: entry.symbol, exact: true, confidence: 1.0}, true
}

// resolveContainer looks up Container.Name explicitly, then falls back
// to the container symbol itself when the member lookup misses.
func resolveContainer(usage *ast.Symbol, _ *diff.Change, idx *symbolIndex) (resolution, bool) {
	if usage.QualifyingContainer == "" {
		return resolution{}, false
	}
	entry, ok := idx.lookup(usage.QualifyingContainer + "." + usage.Name)
	if !ok {
		// The container guess may be an enclosing value name rather than
		// the type name; fall through to the container symbol itself.
		entry, ok = idx.lookup(kindKey(ast.SymbolKindType, usage.QualifyingContainer))
		if !ok {
			return resolution{}, false
		}
	}
	return resolution{targetChangeID: entry.changeID, definition: entry.symbol, exact: true, confidence: 0.9}, true
}

// resolveKindFallback tries the language-scoped kind:name key.
func resolveKindFallback(usage *ast.Symbol, _ *diff.Change, idx *symbolIndex) (resolution, bool) {
	entry, ok := idx.lookup(kindKey(usage.Kind, usage.Name))
	if !ok {
		return resolution{}, false
	}
	return resolution{targetChangeID: entry.changeID, definition: entry.symbol, confidence: 0.7}, true
}

// resolveModule resolves through the usage's import path: if the
// qualifying container is a known import alias, any change defining
// symbols attributed to that module is the target.
func resolveModule(usage *ast.Symbol, source *diff.Change, idx *symbolIndex) (resolution, bool) {
	if source.Fragment == nil {
		return resolution{}, false
	}
	modulePath := source.Fragment.ModulePathFor(usage)
	if modulePath == "" {
		return resolution{}, false
	}
	targets := idx.lookupModule(modulePath)
	if len(targets) == 0 {
		return resolution{}, false
	}
	// Deterministic pick: the smallest change id in the set.
	best := ""
	for id := range targets {
		if best == "" || id < best {
			best = id
		}
	}
	return resolution{targetChangeID: best, viaImport: true, confidence: 0.6}, true
}
