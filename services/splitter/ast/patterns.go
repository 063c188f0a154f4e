// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"regexp"
	"strings"
)

// Pattern-based extraction is the degraded path: line-oriented regexes
// that recover definitions, usages, and imports from fragments in
// languages without a wired grammar, or when a syntax-aware parse failed.
// It is deliberately permissive; dependency resolution downstream copes
// with noise, but a missed definition can never be recovered.

// definitionPattern pairs a compiled regex with the symbol kind its first
// capture group defines.
type definitionPattern struct {
	re   *regexp.Regexp
	kind SymbolKind
}

var (
	// Shared across languages: identifier(...) calls, optionally preceded
	// by a dotted access chain captured for container inference.
	callPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\(`)

	genericDefinitions = []definitionPattern{
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindFunction},
		{regexp.MustCompile(`^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindType},
		{regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+)*(?:interface|struct|enum)\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindType},
	}

	goDefinitions = []definitionPattern{
		{regexp.MustCompile(`^\s*func\s+([A-Za-z_][A-Za-z0-9_]*)\s*(?:\[|\()`), SymbolKindFunction},
		{regexp.MustCompile(`^\s*type\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindType},
		{regexp.MustCompile(`^\s*(?:var|const)\s+([A-Za-z_][A-Za-z0-9_]*)`), SymbolKindVariable},
	}

	// func (r *Recv) Name( with the receiver captured as the enclosing scope.
	goMethodPattern = regexp.MustCompile(`^\s*func\s+\(\s*\w+\s+\*?([A-Za-z_][A-Za-z0-9_]*)\s*\)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	goImportPattern     = regexp.MustCompile(`^\s*(?:import\s+)?(?:([A-Za-z_][A-Za-z0-9_]*)\s+)?"([^"]+)"`)
	pythonImportPattern = regexp.MustCompile(`^\s*import\s+([A-Za-z_][A-Za-z0-9_.]*)(?:\s+as\s+([A-Za-z_][A-Za-z0-9_]*))?`)
	pythonFromPattern   = regexp.MustCompile(`^\s*from\s+([A-Za-z_][A-Za-z0-9_.]*)\s+import\s+(.+)`)
	jsImportPattern     = regexp.MustCompile(`^\s*import\s+(?:\*\s+as\s+)?([A-Za-z_{][^'"]*?)\s+from\s+['"]([^'"]+)['"]`)
)

// extractWithPatterns runs line-oriented regex extraction. It cannot fail;
// the worst case is an empty result.
func extractWithPatterns(fragment []byte, language, filePath string, baseLine int) *FragmentResult {
	result := NewFragmentResult(language)

	lines := strings.Split(string(fragment), "\n")
	for i, line := range lines {
		lineNo := baseLine + i
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}

		patternImports(result, language, line, lineNo, filePath)
		patternDefinitions(result, language, line, lineNo, filePath)
		patternUsages(result, language, line, lineNo, filePath)
	}

	return result
}

func patternImports(result *FragmentResult, language, line string, lineNo int, filePath string) {
	record := func(alias, path string) {
		if alias == "" || path == "" {
			return
		}
		if _, exists := result.ImportAliases[alias]; !exists {
			result.ImportAliases[alias] = path
		}
		result.Definitions = append(result.Definitions, &Symbol{
			Name: alias,
			Kind: SymbolKindImport,
			File: filePath,
			Line: lineNo,
			Role: RoleDefinition,
		})
	}

	switch language {
	case "go":
		// Only lines that look like imports; the quote test filters out
		// ordinary string literals on e.g. assignment lines.
		if !strings.Contains(line, "import") && !strings.HasPrefix(strings.TrimSpace(line), `"`) {
			return
		}
		if m := goImportPattern.FindStringSubmatch(line); m != nil {
			alias, path := m[1], m[2]
			if alias == "" {
				segments := strings.Split(path, "/")
				alias = segments[len(segments)-1]
			}
			record(alias, path)
		}
	case "python":
		if m := pythonFromPattern.FindStringSubmatch(line); m != nil {
			module := m[1]
			for _, name := range strings.Split(m[2], ",") {
				name = strings.TrimSpace(name)
				alias := name
				if idx := strings.Index(name, " as "); idx > 0 {
					alias = strings.TrimSpace(name[idx+4:])
					name = strings.TrimSpace(name[:idx])
				}
				if name != "" && name != "*" {
					record(alias, module+"."+name)
				}
			}
			return
		}
		if m := pythonImportPattern.FindStringSubmatch(line); m != nil {
			path, alias := m[1], m[2]
			if alias == "" {
				alias = strings.SplitN(path, ".", 2)[0]
			}
			record(alias, path)
		}
	case "javascript", "typescript":
		if m := jsImportPattern.FindStringSubmatch(line); m != nil {
			clause, source := m[1], m[2]
			clause = strings.Trim(clause, "{} ")
			for _, name := range strings.Split(clause, ",") {
				name = strings.TrimSpace(name)
				if idx := strings.Index(name, " as "); idx > 0 {
					name = strings.TrimSpace(name[idx+4:])
				}
				record(name, source)
			}
		}
	}
}

func patternDefinitions(result *FragmentResult, language, line string, lineNo int, filePath string) {
	add := func(name string, kind SymbolKind, scope string) {
		result.Definitions = append(result.Definitions, &Symbol{
			Name:           name,
			Kind:           kind,
			File:           filePath,
			Line:           lineNo,
			Role:           RoleDefinition,
			EnclosingScope: scope,
		})
	}

	if language == "go" {
		if m := goMethodPattern.FindStringSubmatch(line); m != nil {
			add(m[2], SymbolKindMethod, m[1])
			return
		}
		for _, p := range goDefinitions {
			if m := p.re.FindStringSubmatch(line); m != nil {
				add(m[1], p.kind, "")
				return
			}
		}
		return
	}

	for _, p := range genericDefinitions {
		if m := p.re.FindStringSubmatch(line); m != nil {
			add(m[1], p.kind, "")
			return
		}
	}
}

func patternUsages(result *FragmentResult, language, line string, lineNo int, filePath string) {
	for _, m := range callPattern.FindAllStringSubmatch(line, -1) {
		segments := splitAccessChain(m[1])
		if len(segments) == 0 {
			continue
		}
		name := segments[len(segments)-1]
		container := ""
		if len(segments) >= 2 {
			container = segments[len(segments)-2]
		}
		if isCommonBuiltin(language, name) || isKeyword(language, name) {
			continue
		}
		result.Usages = append(result.Usages, &Symbol{
			Name:                name,
			Kind:                SymbolKindFunction,
			File:                filePath,
			Line:                lineNo,
			Role:                RoleUsage,
			QualifyingContainer: container,
		})
	}
}

// languageKeywords are control-flow words that precede parentheses and
// would otherwise be mistaken for calls by the line patterns.
var languageKeywords = map[string]struct{}{
	"if": {}, "for": {}, "while": {}, "switch": {}, "return": {},
	"func": {}, "def": {}, "catch": {}, "with": {}, "select": {},
	"go": {}, "defer": {}, "elif": {}, "except": {}, "assert": {},
}

func isKeyword(_ string, name string) bool {
	_, ok := languageKeywords[name]
	return ok
}
