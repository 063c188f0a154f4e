// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides symbol extraction from partial code fragments.
//
// # Description
//
// This package extracts symbol definitions and usages from diff hunks.
// Unlike whole-file parsers, the input here is almost never a complete,
// syntactically valid compilation unit: hunks start and end mid-scope,
// reference identifiers declared elsewhere, and may contain syntax errors.
// Extraction therefore runs tree-sitter in error-tolerant mode and degrades
// to pattern-based extraction when no grammar is available for a language.
//
// # Thread Safety
//
// Extractors are stateless and safe for concurrent use. Symbols are
// immutable after extraction and owned by the change that produced them.
package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Symbol Kinds
// =============================================================================

// SymbolKind represents the type of code construct a symbol refers to.
//
// Language-specific constructs map to the closest general kind
// (e.g., a Python class maps to SymbolKindType).
type SymbolKind int

const (
	// SymbolKindUnknown indicates an unrecognized construct.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindFunction represents a standalone function.
	SymbolKindFunction

	// SymbolKindMethod represents a function attached to a type or class.
	SymbolKindMethod

	// SymbolKindType represents a type, class, struct, or interface.
	SymbolKindType

	// SymbolKindVariable represents a variable or constant.
	SymbolKindVariable

	// SymbolKindImport represents an import statement.
	SymbolKindImport

	// SymbolKindField represents a field within a type or class.
	SymbolKindField
)

// symbolKindNames maps SymbolKind values to their string representations.
var symbolKindNames = map[SymbolKind]string{
	SymbolKindUnknown:  "unknown",
	SymbolKindFunction: "function",
	SymbolKindMethod:   "method",
	SymbolKindType:     "type",
	SymbolKindVariable: "variable",
	SymbolKindImport:   "import",
	SymbolKindField:    "field",
}

// String returns the string representation of the SymbolKind.
//
// Returns "unknown" for unrecognized values.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler for SymbolKind.
//
// Serializes the kind as a JSON string (e.g., "function") rather than
// a number for readability and forward compatibility.
func (k SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for SymbolKind.
func (k *SymbolKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("SymbolKind must be a string: %w", err)
	}
	*k = ParseSymbolKind(s)
	return nil
}

// ParseSymbolKind converts a string to a SymbolKind.
//
// Returns SymbolKindUnknown if the string is not recognized.
func ParseSymbolKind(s string) SymbolKind {
	for kind, name := range symbolKindNames {
		if name == s {
			return kind
		}
	}
	return SymbolKindUnknown
}

// =============================================================================
// Symbol Roles
// =============================================================================

// SymbolRole distinguishes definitions from usages.
type SymbolRole string

const (
	// RoleDefinition indicates the fragment defines the symbol.
	RoleDefinition SymbolRole = "definition"

	// RoleUsage indicates the fragment references the symbol.
	RoleUsage SymbolRole = "usage"
)

// String returns the string representation of the role.
func (r SymbolRole) String() string {
	return string(r)
}

// =============================================================================
// Symbol
// =============================================================================

// Symbol represents a single definition or usage extracted from a fragment.
//
// # Description
//
// Symbols are created once during extraction and are immutable thereafter.
// The qualified name (Container.Name when a container is known, otherwise
// the bare name) is the primary join key used by dependency resolution.
type Symbol struct {
	// Name is the identifier as it appears in source.
	Name string `json:"name"`

	// Kind is the construct type (function, method, type, ...).
	Kind SymbolKind `json:"kind"`

	// File is the path of the file the fragment belongs to.
	File string `json:"file"`

	// Line is the 1-indexed line number within the original file.
	Line int `json:"line"`

	// Role indicates whether this is a definition or a usage.
	Role SymbolRole `json:"role"`

	// EnclosingScope is the container a definition belongs to
	// (e.g., the receiver type of a Go method). Empty for top-level symbols.
	EnclosingScope string `json:"enclosing_scope,omitempty"`

	// QualifyingContainer is the best-guess container of a usage, inferred
	// from member-access chains (a.b.c() yields container "b"). This is a
	// name-based guess with no type information and may be wrong.
	QualifyingContainer string `json:"qualifying_container,omitempty"`
}

// QualifiedName returns the primary resolution key for the symbol.
//
// For definitions: "EnclosingScope.Name" when a scope is known, else "Name".
// For usages: "QualifyingContainer.Name" when a container was inferred,
// else "Name".
func (s *Symbol) QualifiedName() string {
	switch s.Role {
	case RoleDefinition:
		if s.EnclosingScope != "" {
			return s.EnclosingScope + "." + s.Name
		}
	case RoleUsage:
		if s.QualifyingContainer != "" {
			return s.QualifyingContainer + "." + s.Name
		}
	}
	return s.Name
}

// Validate checks the symbol's field values.
//
// Returns nil if valid, or an error naming the first invalid field.
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidSymbol)
	}
	if s.Line < 1 {
		return fmt.Errorf("%w: line %d is not 1-indexed", ErrInvalidSymbol, s.Line)
	}
	if s.Role != RoleDefinition && s.Role != RoleUsage {
		return fmt.Errorf("%w: role %q", ErrInvalidSymbol, s.Role)
	}
	return nil
}

// String returns a human-readable representation for logging.
func (s *Symbol) String() string {
	return fmt.Sprintf("%s %s %s (%s:%d)", s.Role, s.Kind, s.QualifiedName(), s.File, s.Line)
}

// =============================================================================
// Fragment Result
// =============================================================================

// FragmentResult contains everything extracted from one code fragment.
//
// # Ownership
//
// The result and its symbols are immutable after extraction. Consumers
// must not mutate symbols; the analyzer indexes them by pointer.
type FragmentResult struct {
	// Definitions holds symbols the fragment defines.
	Definitions []*Symbol `json:"definitions"`

	// Usages holds symbols the fragment references.
	Usages []*Symbol `json:"usages"`

	// ImportAliases maps short import aliases to fully-qualified module
	// paths (e.g., "gin" -> "github.com/gin-gonic/gin").
	ImportAliases map[string]string `json:"import_aliases"`

	// Language is the language the fragment was extracted as.
	Language string `json:"language"`

	// UsedFallback reports whether pattern-based extraction was used
	// instead of a syntax-aware parse.
	UsedFallback bool `json:"used_fallback"`
}

// NewFragmentResult creates an empty result for the given language.
func NewFragmentResult(language string) *FragmentResult {
	return &FragmentResult{
		Definitions:   make([]*Symbol, 0),
		Usages:        make([]*Symbol, 0),
		ImportAliases: make(map[string]string),
		Language:      language,
	}
}

// SymbolNames returns the set of all symbol names (definitions and usages).
//
// Used by semantic grouping for overlap similarity.
func (r *FragmentResult) SymbolNames() map[string]struct{} {
	names := make(map[string]struct{}, len(r.Definitions)+len(r.Usages))
	for _, d := range r.Definitions {
		names[d.Name] = struct{}{}
	}
	for _, u := range r.Usages {
		names[u.Name] = struct{}{}
	}
	return names
}

// DefinitionNamed reports whether the fragment defines the given name.
func (r *FragmentResult) DefinitionNamed(name string) bool {
	for _, d := range r.Definitions {
		if d.Name == name {
			return true
		}
	}
	return false
}

// resolveAlias maps the leading segment of a usage chain through the
// fragment's import aliases. Returns the module path or "".
func (r *FragmentResult) resolveAlias(segment string) string {
	if path, ok := r.ImportAliases[segment]; ok {
		return path
	}
	return ""
}

// ModulePathFor returns the fully-qualified module path a usage refers to,
// when its qualifying container is a known import alias.
func (r *FragmentResult) ModulePathFor(usage *Symbol) string {
	if usage.QualifyingContainer == "" {
		return ""
	}
	// The alias is the first segment of the access chain; for two-segment
	// chains it coincides with the qualifying container.
	return r.resolveAlias(usage.QualifyingContainer)
}

// splitAccessChain splits a dotted member-access expression into segments.
// "a.b.c" yields ["a", "b", "c"]. Empty segments are dropped.
func splitAccessChain(expr string) []string {
	parts := strings.Split(expr, ".")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
