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
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Default extractor configuration values.
const (
	// DefaultMaxFragmentSize is the maximum fragment size in bytes.
	// Hunks beyond this are extracted with patterns only (tree-sitter
	// parse time grows superlinearly on broken input).
	DefaultMaxFragmentSize = 1 << 20 // 1MB
)

// ExtractorOptions configures Extractor behavior.
type ExtractorOptions struct {
	// MaxFragmentSize is the maximum fragment size in bytes for
	// syntax-aware extraction. Default: 1MB.
	MaxFragmentSize int
}

// DefaultExtractorOptions returns the default options.
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		MaxFragmentSize: DefaultMaxFragmentSize,
	}
}

// ExtractorOption is a functional option for configuring Extractor.
type ExtractorOption func(*ExtractorOptions)

// WithMaxFragmentSize sets the maximum fragment size in bytes.
func WithMaxFragmentSize(bytes int) ExtractorOption {
	return func(o *ExtractorOptions) {
		if bytes > 0 {
			o.MaxFragmentSize = bytes
		}
	}
}

// Extractor extracts symbol definitions and usages from code fragments.
//
// # Description
//
// Extract never fails on malformed or partial fragments: diff hunks are not
// complete files, so the extractor runs tree-sitter in error-tolerant mode
// and falls back to pattern-based extraction when no grammar is available
// or the parse produces nothing usable. Extraction proceeds in three passes
// per fragment: imports (building the alias map), definitions (recording
// enclosing containers), and usages (resolving member-access chains).
//
// # Thread Safety
//
// Extractor is stateless between calls and safe for concurrent use. Each
// Extract call creates its own tree-sitter parser instance.
type Extractor struct {
	options ExtractorOptions
}

// NewExtractor creates an Extractor with the given options.
//
// Example:
//
//	ex := ast.NewExtractor()
//	result, err := ex.Extract(ctx, code, "go", "auth/handler.go", 120)
func NewExtractor(opts ...ExtractorOption) *Extractor {
	options := DefaultExtractorOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Extractor{options: options}
}

// Extract extracts symbols from a code fragment.
//
// Description:
//
//	Runs syntax-aware extraction when a grammar exists for the language,
//	otherwise pattern-based extraction. A failed or empty syntax-aware
//	pass degrades to patterns for the same fragment rather than failing;
//	the only hard errors are invalid UTF-8 content and context
//	cancellation.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	fragment - Raw fragment bytes (added/modified lines of a hunk).
//	language - Canonical language name ("go", "python", ...). May be ""
//	           for unknown languages; generic patterns are used.
//	filePath - File the fragment belongs to (recorded on symbols).
//	baseLine - 1-indexed line number of the fragment's first line in the
//	           new version of the file.
//
// Outputs:
//
//	*FragmentResult - Definitions, usages, and the import alias map.
//	                  Never nil on success; may be empty.
//	error - Non-nil only for invalid content or cancellation.
//
// Thread Safety: safe for concurrent use.
func (e *Extractor) Extract(ctx context.Context, fragment []byte, language, filePath string, baseLine int) (*FragmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction canceled before start: %w", err)
	}
	if !utf8.Valid(fragment) {
		return nil, fmt.Errorf("%w: fragment is not valid UTF-8", ErrInvalidContent)
	}
	if baseLine < 1 {
		baseLine = 1
	}

	ctx, span := tracer.Start(ctx, "ast.Extract",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("fragment_bytes", len(fragment)),
		),
	)
	defer span.End()

	start := time.Now()

	var result *FragmentResult
	useSyntax := HasSyntaxParser(language) && len(fragment) <= e.options.MaxFragmentSize

	if useSyntax {
		parsed, err := extractWithTreeSitter(ctx, fragment, language, filePath, baseLine)
		if err != nil {
			// Degrade, never raise: partial hunks routinely break parsers.
			slog.Debug("syntax-aware extraction failed, using patterns",
				slog.String("file", filePath),
				slog.String("language", language),
				slog.String("error", err.Error()),
			)
		} else if parsed != nil {
			result = parsed
		}
	}

	if result == nil {
		result = extractWithPatterns(fragment, language, filePath, baseLine)
		result.UsedFallback = true
	}

	symbolCount := len(result.Definitions) + len(result.Usages)
	span.SetAttributes(
		attribute.Int("definitions", len(result.Definitions)),
		attribute.Int("usages", len(result.Usages)),
		attribute.Bool("fallback", result.UsedFallback),
	)
	recordExtraction(ctx, language, time.Since(start), symbolCount, result.UsedFallback)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction canceled: %w", err)
	}
	return result, nil
}
