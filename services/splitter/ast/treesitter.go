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
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// sitterLanguage returns the tree-sitter grammar for a language, or nil.
func sitterLanguage(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// extractWithTreeSitter parses a fragment with tree-sitter and runs the
// three extraction passes (imports, definitions, usages) over the tree.
//
// Tree-sitter is error-tolerant: partial hunks produce trees with ERROR
// nodes, and recognizable subtrees are still extracted. An error is
// returned only when the parser itself fails; callers degrade to patterns.
func extractWithTreeSitter(ctx context.Context, fragment []byte, language, filePath string, baseLine int) (*FragmentResult, error) {
	grammar := sitterLanguage(language)
	if grammar == nil {
		return nil, fmt.Errorf("no grammar for language %q", language)
	}

	// New parser instance per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, fragment)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root node")
	}

	w := &fragmentWalker{
		content:  fragment,
		language: language,
		filePath: filePath,
		baseLine: baseLine,
		result:   NewFragmentResult(language),
	}

	// Pass 1: imports build the alias map used by usage resolution.
	w.walk(root, w.visitImport)
	// Pass 2: definitions, with enclosing containers.
	w.walk(root, w.visitDefinition)
	// Pass 3: usages, resolving member-access chains.
	w.walk(root, w.visitUsage)

	return w.result, nil
}

// fragmentWalker carries per-extraction state through the tree passes.
type fragmentWalker struct {
	content  []byte
	language string
	filePath string
	baseLine int
	result   *FragmentResult
}

// walk traverses the tree iteratively, invoking visit on every node.
// Iterative with an explicit stack: deeply nested or broken fragments
// must not overflow the goroutine stack.
func (w *fragmentWalker) walk(root *sitter.Node, visit func(*sitter.Node)) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(node)

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// text returns the source text of a node.
func (w *fragmentWalker) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(w.content[node.StartByte():node.EndByte()])
}

// line returns the 1-indexed file line for a node, offset by the
// fragment's base line.
func (w *fragmentWalker) line(node *sitter.Node) int {
	return w.baseLine + int(node.StartPoint().Row)
}

// addDefinition appends a definition symbol.
func (w *fragmentWalker) addDefinition(name string, kind SymbolKind, scope string, node *sitter.Node) {
	if name == "" {
		return
	}
	w.result.Definitions = append(w.result.Definitions, &Symbol{
		Name:           name,
		Kind:           kind,
		File:           w.filePath,
		Line:           w.line(node),
		Role:           RoleDefinition,
		EnclosingScope: scope,
	})
}

// addUsage appends a usage symbol.
func (w *fragmentWalker) addUsage(name string, kind SymbolKind, container string, node *sitter.Node) {
	if name == "" || isCommonBuiltin(w.language, name) {
		return
	}
	w.result.Usages = append(w.result.Usages, &Symbol{
		Name:                name,
		Kind:                kind,
		File:                w.filePath,
		Line:                w.line(node),
		Role:                RoleUsage,
		QualifyingContainer: container,
	})
}

// =============================================================================
// Pass 1: Imports
// =============================================================================

func (w *fragmentWalker) visitImport(node *sitter.Node) {
	switch w.language {
	case "go":
		if node.Type() == "import_spec" {
			w.goImportSpec(node)
		}
	case "python":
		switch node.Type() {
		case "import_statement":
			w.pythonImport(node)
		case "import_from_statement":
			w.pythonImportFrom(node)
		}
	case "javascript", "typescript":
		if node.Type() == "import_statement" {
			w.jsImport(node)
		}
	}
}

// goImportSpec handles `alias "path/to/pkg"` import specs. The default
// alias is the last path segment.
func (w *fragmentWalker) goImportSpec(node *sitter.Node) {
	var alias, path string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "package_identifier":
			alias = w.text(child)
		case "interpreted_string_literal", "raw_string_literal":
			path = strings.Trim(w.text(child), "`\"")
		}
	}
	if path == "" {
		return
	}
	if alias == "" {
		segments := strings.Split(path, "/")
		alias = segments[len(segments)-1]
	}
	w.recordImport(alias, path, node)
}

// pythonImport handles `import a.b` and `import a.b as c`.
func (w *fragmentWalker) pythonImport(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			path := w.text(child)
			// Unaliased dotted imports bind the first segment in scope.
			alias := strings.SplitN(path, ".", 2)[0]
			w.recordImport(alias, path, node)
		case "aliased_import":
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "dotted_name":
					path = w.text(grandchild)
				case "identifier":
					alias = w.text(grandchild)
				}
			}
			if path != "" && alias != "" {
				w.recordImport(alias, path, node)
			}
		}
	}
}

// pythonImportFrom handles `from x import y [as z]`.
func (w *fragmentWalker) pythonImportFrom(node *sitter.Node) {
	var modulePath string
	sawImport := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "dotted_name":
			name := w.text(child)
			if !sawImport {
				modulePath = name
			} else if modulePath != "" {
				w.recordImport(name, modulePath+"."+name, node)
			}
		case "aliased_import":
			var name, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "dotted_name":
					name = w.text(grandchild)
				case "identifier":
					alias = w.text(grandchild)
				}
			}
			if modulePath != "" && name != "" {
				if alias == "" {
					alias = name
				}
				w.recordImport(alias, modulePath+"."+name, node)
			}
		}
	}
}

// jsImport handles default, named, and namespace ES imports.
func (w *fragmentWalker) jsImport(node *sitter.Node) {
	var source string
	if src := node.ChildByFieldName("source"); src != nil {
		source = strings.Trim(w.text(src), "'\"`")
	}
	if source == "" {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			clause := child.Child(j)
			switch clause.Type() {
			case "identifier": // default import
				w.recordImport(w.text(clause), source, node)
			case "namespace_import": // import * as ns
				for k := 0; k < int(clause.ChildCount()); k++ {
					if clause.Child(k).Type() == "identifier" {
						w.recordImport(w.text(clause.Child(k)), source, node)
					}
				}
			case "named_imports":
				for k := 0; k < int(clause.ChildCount()); k++ {
					spec := clause.Child(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name, alias := "", ""
					if n := spec.ChildByFieldName("name"); n != nil {
						name = w.text(n)
					}
					if a := spec.ChildByFieldName("alias"); a != nil {
						alias = w.text(a)
					}
					if alias == "" {
						alias = name
					}
					if alias != "" {
						w.recordImport(alias, source, node)
					}
				}
			}
		}
	}
}

// recordImport stores the alias mapping and emits an import definition
// symbol so import-before-use edges can be built.
func (w *fragmentWalker) recordImport(alias, path string, node *sitter.Node) {
	if alias == "" || path == "" {
		return
	}
	// First writer wins: repeated aliases in one fragment keep the
	// earliest mapping for deterministic resolution.
	if _, exists := w.result.ImportAliases[alias]; !exists {
		w.result.ImportAliases[alias] = path
	}
	w.result.Definitions = append(w.result.Definitions, &Symbol{
		Name: alias,
		Kind: SymbolKindImport,
		File: w.filePath,
		Line: w.line(node),
		Role: RoleDefinition,
	})
}

// =============================================================================
// Pass 2: Definitions
// =============================================================================

func (w *fragmentWalker) visitDefinition(node *sitter.Node) {
	switch w.language {
	case "go":
		w.goDefinition(node)
	case "python":
		w.pythonDefinition(node)
	case "javascript", "typescript":
		w.jsDefinition(node)
	}
}

func (w *fragmentWalker) goDefinition(node *sitter.Node) {
	switch node.Type() {
	case "function_declaration":
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindFunction, "", node)

	case "method_declaration":
		name := w.text(node.ChildByFieldName("name"))
		receiver := goReceiverType(node, w)
		w.addDefinition(name, SymbolKindMethod, receiver, node)

	case "type_spec":
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindType, "", node)

	case "var_spec", "const_spec":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "identifier" {
				w.addDefinition(w.text(child), SymbolKindVariable, "", child)
			}
		}

	case "field_declaration":
		scope := enclosingTypeSpecName(node, w)
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "field_identifier" {
				w.addDefinition(w.text(child), SymbolKindField, scope, child)
			}
		}
	}
}

// goReceiverType extracts the receiver type name of a method declaration,
// stripping any pointer star.
func goReceiverType(node *sitter.Node, w *fragmentWalker) string {
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	for i := 0; i < int(receiver.ChildCount()); i++ {
		param := receiver.Child(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		if t := param.ChildByFieldName("type"); t != nil {
			name := w.text(t)
			name = strings.TrimPrefix(name, "*")
			// Drop generic type parameters on the receiver.
			if idx := strings.IndexByte(name, '['); idx > 0 {
				name = name[:idx]
			}
			return name
		}
	}
	return ""
}

// enclosingTypeSpecName walks up to the nearest type_spec ancestor and
// returns its declared name, or "".
func enclosingTypeSpecName(node *sitter.Node, w *fragmentWalker) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Type() == "type_spec" {
			return w.text(parent.ChildByFieldName("name"))
		}
	}
	return ""
}

func (w *fragmentWalker) pythonDefinition(node *sitter.Node) {
	switch node.Type() {
	case "function_definition":
		name := w.text(node.ChildByFieldName("name"))
		scope := enclosingPythonClass(node, w)
		kind := SymbolKindFunction
		if scope != "" {
			kind = SymbolKindMethod
		}
		w.addDefinition(name, kind, scope, node)

	case "class_definition":
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindType, "", node)

	case "assignment":
		// Only direct module- or class-level assignments count as
		// definitions; locals inside functions are noise.
		if insidePythonFunction(node) {
			return
		}
		left := node.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			scope := enclosingPythonClass(node, w)
			kind := SymbolKindVariable
			if scope != "" {
				kind = SymbolKindField
			}
			w.addDefinition(w.text(left), kind, scope, left)
		}
	}
}

func enclosingPythonClass(node *sitter.Node, w *fragmentWalker) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Type() {
		case "class_definition":
			return w.text(parent.ChildByFieldName("name"))
		case "function_definition":
			// A def nested in a def belongs to the function, not a class.
			return ""
		}
	}
	return ""
}

func insidePythonFunction(node *sitter.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Type() == "function_definition" {
			return true
		}
	}
	return false
}

func (w *fragmentWalker) jsDefinition(node *sitter.Node) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindFunction, "", node)

	case "class_declaration", "abstract_class_declaration":
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindType, "", node)

	case "method_definition":
		name := w.text(node.ChildByFieldName("name"))
		scope := enclosingJSClass(node, w)
		w.addDefinition(name, SymbolKindMethod, scope, node)

	case "variable_declarator":
		if name := node.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			kind := SymbolKindVariable
			// Arrow functions and function expressions assigned to a
			// binding are function definitions in practice.
			if value := node.ChildByFieldName("value"); value != nil {
				switch value.Type() {
				case "arrow_function", "function_expression", "function":
					kind = SymbolKindFunction
				}
			}
			w.addDefinition(w.text(name), kind, "", name)
		}

	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		// TypeScript-only node types; absent from JS trees.
		w.addDefinition(w.text(node.ChildByFieldName("name")), SymbolKindType, "", node)

	case "public_field_definition":
		name := w.text(node.ChildByFieldName("name"))
		w.addDefinition(name, SymbolKindField, enclosingJSClass(node, w), node)
	}
}

func enclosingJSClass(node *sitter.Node, w *fragmentWalker) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Type() {
		case "class_declaration", "abstract_class_declaration", "class":
			return w.text(parent.ChildByFieldName("name"))
		}
	}
	return ""
}

// =============================================================================
// Pass 3: Usages
// =============================================================================

func (w *fragmentWalker) visitUsage(node *sitter.Node) {
	switch w.language {
	case "go":
		switch node.Type() {
		case "call_expression":
			w.callUsage(node.ChildByFieldName("function"))
		case "type_identifier":
			// Type references outside the declaring type_spec name
			// position are usages (parameters, struct literals, fields).
			if parent := node.Parent(); parent != nil && parent.Type() == "type_spec" {
				if name := parent.ChildByFieldName("name"); name != nil && name.StartByte() == node.StartByte() {
					return
				}
			}
			w.addUsage(w.text(node), SymbolKindType, "", node)
		}
	case "python":
		if node.Type() == "call" {
			w.callUsage(node.ChildByFieldName("function"))
		}
	case "javascript", "typescript":
		switch node.Type() {
		case "call_expression":
			w.callUsage(node.ChildByFieldName("function"))
		case "new_expression":
			w.callUsage(node.ChildByFieldName("constructor"))
		}
	}
}

// callUsage records the called symbol of a call expression, resolving
// chained member access (`a.b.c(...)`) into a (name, container) pair:
// the called name is the final segment and the inferred container is the
// second-to-last segment. This covers the common case of a value whose
// declared type name matches the chain segment; it is a name-based guess
// with no type information.
func (w *fragmentWalker) callUsage(fn *sitter.Node) {
	if fn == nil {
		return
	}

	switch fn.Type() {
	case "identifier", "field_identifier":
		w.addUsage(w.text(fn), SymbolKindFunction, "", fn)

	case "selector_expression", "attribute", "member_expression":
		segments := splitAccessChain(w.text(fn))
		if len(segments) == 0 {
			return
		}
		name := segments[len(segments)-1]
		container := ""
		if len(segments) >= 2 {
			container = segments[len(segments)-2]
		}
		w.addUsage(name, SymbolKindFunction, container, fn)

	case "parenthesized_expression":
		// Unwrap a single level: `(f)(x)` is still a call of f.
		for i := 0; i < int(fn.ChildCount()); i++ {
			child := fn.Child(i)
			if child.Type() != "(" && child.Type() != ")" {
				w.callUsage(child)
				return
			}
		}
	}
}

// commonBuiltins lists per-language names that never resolve to changes
// in the diff; skipping them avoids useless index lookups.
var commonBuiltins = map[string]map[string]struct{}{
	"go": {
		"append": {}, "cap": {}, "close": {}, "copy": {}, "delete": {},
		"len": {}, "make": {}, "new": {}, "panic": {}, "print": {},
		"println": {}, "recover": {}, "string": {}, "int": {}, "byte": {},
		"error": {}, "bool": {}, "float64": {}, "int64": {}, "rune": {},
	},
	"python": {
		"print": {}, "len": {}, "range": {}, "str": {}, "int": {},
		"dict": {}, "list": {}, "set": {}, "isinstance": {}, "super": {},
		"enumerate": {}, "zip": {}, "open": {}, "type": {},
	},
	"javascript": {
		"require": {}, "console": {}, "parseInt": {}, "parseFloat": {},
		"String": {}, "Number": {}, "Boolean": {}, "Array": {}, "Object": {},
	},
	"typescript": {
		"require": {}, "console": {}, "parseInt": {}, "parseFloat": {},
		"String": {}, "Number": {}, "Boolean": {}, "Array": {}, "Object": {},
	},
}

func isCommonBuiltin(language, name string) bool {
	if builtins, ok := commonBuiltins[language]; ok {
		_, found := builtins[name]
		return found
	}
	return false
}
