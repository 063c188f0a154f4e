// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyze derives dependency edges between diff changes.
//
// # Description
//
// This package consumes the full change set produced by the diff parser
// and resolves every symbol usage against every symbol definition using
// a cascade of lookup strategies. Each successful resolution becomes a
// directed, strength-weighted Dependency edge. Unresolved usages produce
// no edge: absence of evidence is not evidence of absence, and
// over-constraining would break legitimate splits.
//
// # Thread Safety
//
// An Analyzer is safe for concurrent use; each Analyze call builds its
// own indices and shares no mutable state.
package analyze

import "fmt"

// =============================================================================
// Dependency Kinds
// =============================================================================

// DependencyKind classifies why one change depends on another.
type DependencyKind string

const (
	// KindDefinesUses means the target defines a symbol the source uses.
	KindDefinesUses DependencyKind = "defines_uses"

	// KindModifiesUses means the target modifies a symbol the source uses,
	// so the pair must be co-located or strictly ordered.
	KindModifiesUses DependencyKind = "modifies_uses"

	// KindImport means the target introduces an import or module the
	// source relies on.
	KindImport DependencyKind = "import"

	// KindCallChain means the usage was resolved through a member-access
	// chain (a.b.c()), a name-based guess with no type information.
	KindCallChain DependencyKind = "call_chain"

	// KindTypeDependency means the source references a type the target
	// defines.
	KindTypeDependency DependencyKind = "type_dependency"
)

// =============================================================================
// Dependency
// =============================================================================

// Dependency is a directed edge between two changes.
//
// # Description
//
// The edge points toward the "must come first" side: the source change
// depends on the target change. Strength 1.0 means the pair must be
// co-located or the target strictly ordered before the source; lower
// strengths are advisory. Dependencies are immutable once created; an
// advisory enhancement may append new edges but never removes existing
// ones.
type Dependency struct {
	// SourceChangeID identifies the dependent change.
	SourceChangeID string `json:"source_change_id"`

	// TargetChangeID identifies the change that must come first.
	TargetChangeID string `json:"target_change_id"`

	// Kind classifies the relationship.
	Kind DependencyKind `json:"kind"`

	// Strength is the constraint weight in [0.0, 1.0]. 1.0 is critical.
	Strength float64 `json:"strength"`

	// Reason is a human-readable explanation for diagnostics.
	Reason string `json:"reason"`
}

// Critical reports whether the edge is a hard ordering constraint.
func (d *Dependency) Critical() bool {
	return d.Strength >= 1.0
}

// String returns a human-readable representation for logging.
func (d *Dependency) String() string {
	return fmt.Sprintf("%s -> %s (%s, %.2f)", d.SourceChangeID, d.TargetChangeID, d.Kind, d.Strength)
}

// Validate checks the edge's field values.
func (d *Dependency) Validate() error {
	if d.SourceChangeID == "" || d.TargetChangeID == "" {
		return fmt.Errorf("%w: empty change id", ErrInvalidDependency)
	}
	if d.SourceChangeID == d.TargetChangeID {
		return fmt.Errorf("%w: self edge on %s", ErrInvalidDependency, d.SourceChangeID)
	}
	if d.Strength < 0 || d.Strength > 1 {
		return fmt.Errorf("%w: strength %.2f out of range", ErrInvalidDependency, d.Strength)
	}
	return nil
}
