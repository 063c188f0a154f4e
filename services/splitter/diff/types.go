// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff parses unified-diff text into per-hunk Change records.
//
// # Description
//
// A Change is one contiguous diff hunk, the atomic unit the splitting
// pipeline reasons about and redistributes. Parsing invokes the symbol
// extractor on each hunk's added and deleted lines so downstream stages
// can resolve cross-hunk dependencies and detect refactor patterns.
//
// # Thread Safety
//
// Changes are immutable after parsing and safe for concurrent reads.
package diff

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
)

// =============================================================================
// Change Kind
// =============================================================================

// ChangeKind categorizes what a hunk does to the file.
type ChangeKind string

const (
	// KindAdd indicates a hunk of pure additions (or a new file).
	KindAdd ChangeKind = "add"

	// KindModify indicates a hunk mixing additions and deletions.
	KindModify ChangeKind = "modify"

	// KindDelete indicates a hunk of pure deletions (or a deleted file).
	KindDelete ChangeKind = "delete"
)

// String returns the string representation of the kind.
func (k ChangeKind) String() string {
	return string(k)
}

// =============================================================================
// Line Range
// =============================================================================

// LineRange is an inclusive 1-indexed line span in the new file version.
type LineRange struct {
	// Start is the first line of the hunk in the new file.
	Start int `json:"start"`

	// End is the last line of the hunk in the new file.
	End int `json:"end"`
}

// Distance returns the gap in lines between two ranges in the same file.
// Overlapping or adjacent ranges have distance 0.
func (r LineRange) Distance(other LineRange) int {
	if r.End < other.Start {
		return other.Start - r.End
	}
	if other.End < r.Start {
		return r.Start - other.End
	}
	return 0
}

// =============================================================================
// Change
// =============================================================================

// Change represents one contiguous diff hunk.
//
// # Ownership
//
// A Change owns the symbols extracted from its hunk. It is created by the
// parser and read-only afterward; in a valid split every Change belongs
// to exactly one patch.
type Change struct {
	// ID uniquely identifies the change for the run: "file:hunk_index".
	ID string `json:"id"`

	// File is the path of the changed file (new name for renames).
	File string `json:"file"`

	// HunkIndex is the 0-based index of the hunk within its file.
	HunkIndex int `json:"hunk_index"`

	// Kind is add, modify, or delete.
	Kind ChangeKind `json:"kind"`

	// Lines is the hunk's span in the new file version.
	Lines LineRange `json:"lines"`

	// RawText is the hunk as unified-diff text, including the @@ header.
	RawText string `json:"raw_text"`

	// AddedLines is the number of added lines in the hunk.
	AddedLines int `json:"added_lines"`

	// DeletedLines is the number of deleted lines in the hunk.
	DeletedLines int `json:"deleted_lines"`

	// Language is the detected source language of the file ("" if unknown).
	Language string `json:"language"`

	// Fragment holds symbols extracted from context and added lines.
	Fragment *ast.FragmentResult `json:"fragment"`

	// DeletedFragment holds symbols extracted from context and deleted
	// lines; used for rename and extraction pattern detection.
	DeletedFragment *ast.FragmentResult `json:"deleted_fragment"`
}

// Size returns the total changed line count (added + deleted), the size
// measure used for patch budgeting.
func (c *Change) Size() int {
	return c.AddedLines + c.DeletedLines
}

// Definitions returns the symbols this change defines.
func (c *Change) Definitions() []*ast.Symbol {
	if c.Fragment == nil {
		return nil
	}
	return c.Fragment.Definitions
}

// Usages returns the symbols this change references.
func (c *Change) Usages() []*ast.Symbol {
	if c.Fragment == nil {
		return nil
	}
	return c.Fragment.Usages
}

// SymbolNames returns the union of symbol names across added and deleted
// fragments. Used for Jaccard overlap grouping.
func (c *Change) SymbolNames() map[string]struct{} {
	names := make(map[string]struct{})
	if c.Fragment != nil {
		for n := range c.Fragment.SymbolNames() {
			names[n] = struct{}{}
		}
	}
	if c.DeletedFragment != nil {
		for n := range c.DeletedFragment.SymbolNames() {
			names[n] = struct{}{}
		}
	}
	return names
}

// String returns a short representation for logging.
func (c *Change) String() string {
	return fmt.Sprintf("%s (%s, +%d -%d)", c.ID, c.Kind, c.AddedLines, c.DeletedLines)
}

// ChangeID builds the stable per-run identifier for a hunk.
func ChangeID(file string, hunkIndex int) string {
	return fmt.Sprintf("%s:%d", file, hunkIndex)
}

// normalizeDiffPath strips the a/ or b/ prefixes git puts on diff paths.
func normalizeDiffPath(path string) string {
	path = strings.TrimPrefix(path, "a/")
	path = strings.TrimPrefix(path, "b/")
	return path
}
