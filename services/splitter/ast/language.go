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
	"path/filepath"
	"strings"
)

// extensionLanguages maps file extensions to canonical language names.
var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".kt":    "kotlin",
	".swift": "swift",
}

// DetectLanguage infers the source language of a file from its extension.
//
// Returns the canonical language name ("go", "python", "typescript", ...)
// or "" when the extension is not recognized. Unrecognized files still go
// through pattern-based extraction with generic identifier rules.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return ""
}

// HasSyntaxParser reports whether a tree-sitter grammar is wired for the
// given language. Languages without a grammar use pattern extraction.
func HasSyntaxParser(language string) bool {
	switch language {
	case "go", "python", "javascript", "typescript":
		return true
	default:
		return false
	}
}
