// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
)

// ParserOptions configures Parser behavior.
type ParserOptions struct {
	// PathPrefix restricts parsing to files under this prefix ("" = all).
	PathPrefix string

	// Workers is the extraction fan-out width. Default: runtime.NumCPU().
	Workers int
}

// DefaultParserOptions returns sensible defaults.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		Workers: runtime.NumCPU(),
	}
}

// ParserOption is a functional option for configuring Parser.
type ParserOption func(*ParserOptions)

// WithPathPrefix restricts parsing to files under the given prefix.
func WithPathPrefix(prefix string) ParserOption {
	return func(o *ParserOptions) {
		o.PathPrefix = prefix
	}
}

// WithWorkers sets the extraction fan-out width.
func WithWorkers(n int) ParserOption {
	return func(o *ParserOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// Parser turns unified-diff text into Change records.
//
// # Thread Safety
//
// Parser is stateless between calls and safe for concurrent use.
type Parser struct {
	options   ParserOptions
	extractor *ast.Extractor
}

// NewParser creates a Parser with the given options.
func NewParser(extractor *ast.Extractor, opts ...ParserOption) *Parser {
	options := DefaultParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU()
	}
	return &Parser{options: options, extractor: extractor}
}

// Parse parses unified-diff text into Changes.
//
// Description:
//
//	Parses with the strict unified-diff reader first; files the strict
//	reader rejects are recovered by a lenient line scanner so a single
//	malformed file never aborts the run. Per-hunk symbol extraction is
//	fanned out across workers with a join barrier; each worker fills in
//	its own Change and no shared state is written during the fan-out.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	diffText - Unified-diff text (UTF-8), possibly spanning many files.
//
// Outputs:
//
//	[]*Change - One Change per hunk, in input order.
//	error - ErrEmptyDiff when nothing could be extracted, or a
//	        cancellation/extraction error.
func (p *Parser) Parse(ctx context.Context, diffText string) ([]*Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileDiffs, err := godiff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		slog.Warn("strict diff parse failed, using lenient splitter",
			slog.String("error", err.Error()))
		fileDiffs = splitLeniently(diffText)
	}

	changes := make([]*Change, 0)
	for _, fd := range fileDiffs {
		path := normalizeDiffPath(fd.NewName)
		if path == "" || path == "/dev/null" {
			path = normalizeDiffPath(fd.OrigName)
		}
		if p.options.PathPrefix != "" && !strings.HasPrefix(path, p.options.PathPrefix) {
			continue
		}

		newFile := fd.OrigName == "/dev/null"
		deletedFile := fd.NewName == "/dev/null"
		language := ast.DetectLanguage(path)

		for i, hunk := range fd.Hunks {
			changes = append(changes, buildChange(path, i, hunk, language, newFile, deletedFile))
		}
	}

	if len(changes) == 0 {
		return nil, ErrEmptyDiff
	}

	if err := p.extractAll(ctx, changes); err != nil {
		return nil, err
	}

	slog.Debug("diff parsed",
		slog.Int("files", len(fileDiffs)),
		slog.Int("changes", len(changes)),
	)
	return changes, nil
}

// buildChange converts one hunk into a Change (symbols filled in later).
func buildChange(path string, hunkIndex int, hunk *godiff.Hunk, language string, newFile, deletedFile bool) *Change {
	body := string(hunk.Body)
	added, deleted := 0, 0
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			deleted++
		}
	}

	kind := KindModify
	switch {
	case deletedFile || (added == 0 && deleted > 0):
		kind = KindDelete
	case newFile || (deleted == 0 && added > 0):
		kind = KindAdd
	}

	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@",
		hunk.OrigStartLine, hunk.OrigLines, hunk.NewStartLine, hunk.NewLines)

	return &Change{
		ID:        ChangeID(path, hunkIndex),
		File:      path,
		HunkIndex: hunkIndex,
		Kind:      kind,
		Lines: LineRange{
			Start: int(hunk.NewStartLine),
			End:   int(hunk.NewStartLine) + int(hunk.NewLines) - 1,
		},
		RawText:      header + "\n" + body,
		AddedLines:   added,
		DeletedLines: deleted,
		Language:     language,
	}
}

// extractAll fans per-change symbol extraction out across workers.
// Each worker writes only its own Change; results join at the barrier.
func (p *Parser) extractAll(ctx context.Context, changes []*Change) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Workers)

	for _, change := range changes {
		g.Go(func() error {
			addedSide, deletedSide := hunkSides(change.RawText)

			fragment, err := p.extractor.Extract(ctx, []byte(addedSide), change.Language, change.File, change.Lines.Start)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", change.ID, err)
			}
			change.Fragment = fragment

			if change.DeletedLines > 0 {
				deletedFragment, err := p.extractor.Extract(ctx, []byte(deletedSide), change.Language, change.File, change.Lines.Start)
				if err != nil {
					return fmt.Errorf("extracting deleted side of %s: %w", change.ID, err)
				}
				change.DeletedFragment = deletedFragment
			}
			return nil
		})
	}

	return g.Wait()
}

// hunkSides reconstructs the new-side (context + added) and old-side
// (context + deleted) text of a hunk, prefixes stripped. Keeping context
// lines preserves line offsets and gives the parser enclosing scopes.
func hunkSides(rawText string) (addedSide, deletedSide string) {
	var newSide, oldSide strings.Builder
	for _, line := range strings.Split(rawText, "\n") {
		if line == "" || strings.HasPrefix(line, "@@") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			newSide.WriteString(line[1:])
			newSide.WriteByte('\n')
		case strings.HasPrefix(line, "-"):
			oldSide.WriteString(line[1:])
			oldSide.WriteByte('\n')
		default:
			text := strings.TrimPrefix(line, " ")
			newSide.WriteString(text)
			newSide.WriteByte('\n')
			oldSide.WriteString(text)
			oldSide.WriteByte('\n')
		}
	}
	return newSide.String(), oldSide.String()
}
