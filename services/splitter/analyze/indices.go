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
	"path"
	"strings"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// indexEntry records which change defined a symbol.
type indexEntry struct {
	changeID string
	symbol   *ast.Symbol
}

// symbolIndex holds the qualified-key and module lookup tables built
// once per analysis run.
//
// # Thread Safety
//
// The index is built single-threaded during analysis setup and is
// read-only afterward.
type symbolIndex struct {
	// byKey maps lookup keys to the first change that defined them.
	// Keys take several forms for the same definition:
	//
	//	Container.Name   (qualified name)
	//	kind:Name        (language-scoped fallback)
	//	file:Name        (file-scoped fallback)
	//
	// First writer wins: later definitions never overwrite earlier
	// entries for the same key, keeping resolution deterministic.
	byKey map[string]indexEntry

	// byModule maps module name candidates (path segments, file stems)
	// to the set of change ids defining symbols attributed to them.
	byModule map[string]map[string]struct{}
}

// buildSymbolIndex indexes every definition across the change set.
func buildSymbolIndex(changes []*diff.Change) *symbolIndex {
	idx := &symbolIndex{
		byKey:    make(map[string]indexEntry),
		byModule: make(map[string]map[string]struct{}),
	}
	for _, change := range changes {
		for _, def := range change.Definitions() {
			idx.insertDefinition(change.ID, def)
		}
		idx.attributeModule(change)
	}
	return idx
}

// insertDefinition adds all lookup keys for one definition.
func (idx *symbolIndex) insertDefinition(changeID string, def *ast.Symbol) {
	entry := indexEntry{changeID: changeID, symbol: def}
	idx.insert(def.QualifiedName(), entry)
	if def.EnclosingScope == "" {
		// Bare name doubles as the qualified name above; nothing extra.
		idx.insert(kindKey(def.Kind, def.Name), entry)
	} else {
		idx.insert(def.Name, entry)
		idx.insert(kindKey(def.Kind, def.Name), entry)
	}
	idx.insert(def.File+":"+def.Name, entry)
}

// insert applies the first-writer-wins rule.
func (idx *symbolIndex) insert(key string, entry indexEntry) {
	if key == "" {
		return
	}
	if _, exists := idx.byKey[key]; exists {
		return
	}
	idx.byKey[key] = entry
}

// lookup returns the defining change for a key, if indexed.
func (idx *symbolIndex) lookup(key string) (indexEntry, bool) {
	entry, ok := idx.byKey[key]
	return entry, ok
}

// attributeModule records the change under every module name its file
// path plausibly answers to: each directory segment and the file stem.
// A usage resolved to module path "svc/auth" then finds changes whose
// files live under an "auth" directory or in an "auth" file.
func (idx *symbolIndex) attributeModule(change *diff.Change) {
	if len(change.Definitions()) == 0 {
		return
	}
	for _, candidate := range moduleCandidates(change.File) {
		set, ok := idx.byModule[candidate]
		if !ok {
			set = make(map[string]struct{})
			idx.byModule[candidate] = set
		}
		set[change.ID] = struct{}{}
	}
}

// lookupModule returns the changes attributed to a fully-qualified
// module path, matching by the path's trailing segment.
func (idx *symbolIndex) lookupModule(modulePath string) map[string]struct{} {
	if modulePath == "" {
		return nil
	}
	return idx.byModule[lastPathSegment(modulePath)]
}

// kindKey builds the language-scoped fallback key. Methods are indexed
// as functions too since call-site extraction cannot tell them apart.
func kindKey(kind ast.SymbolKind, name string) string {
	if kind == ast.SymbolKindMethod {
		kind = ast.SymbolKindFunction
	}
	return kind.String() + ":" + name
}

// moduleCandidates returns the names a file path answers to as a module.
func moduleCandidates(filePath string) []string {
	candidates := make([]string, 0, 4)
	stem := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	if stem != "" {
		candidates = append(candidates, stem)
	}
	dir := path.Dir(filePath)
	for dir != "." && dir != "/" && dir != "" {
		candidates = append(candidates, path.Base(dir))
		dir = path.Dir(dir)
	}
	return candidates
}

// lastPathSegment extracts the final segment of a module path, handling
// both slash-separated and dot-separated paths.
func lastPathSegment(modulePath string) string {
	segment := modulePath
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if i := strings.LastIndex(segment, "."); i >= 0 {
		segment = segment[i+1:]
	}
	return segment
}
