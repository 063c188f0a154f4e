// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package splitter orchestrates the diff-splitting pipeline.
//
// # Description
//
// One Run consumes unified-diff text and produces an immutable
// PatchSplitResult: parse into changes, analyze dependencies, derive
// atomic groups, propose semantic groups, merge into ordered patches,
// validate. An optional Enhancer is consulted between stages; its
// output is appended and its failures are logged and ignored. Each
// stage consumes the complete output of the prior stage; only the
// per-change and per-pair work inside a stage fans out.
//
// # Thread Safety
//
// A Pipeline is immutable after construction and safe for concurrent
// Run calls.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/enhance"
	"github.com/AleutianAI/patchflow/services/splitter/graph"
	"github.com/AleutianAI/patchflow/services/splitter/output"
	"github.com/AleutianAI/patchflow/services/splitter/patch"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

// Options configures a Pipeline.
type Options struct {
	// TargetSize is the per-patch changed-line budget.
	TargetSize int

	// PathPrefix restricts the run to files under this prefix.
	PathPrefix string

	// Enhancer supplies advisory model-backed refinement. Defaults to
	// enhance.NoopEnhancer.
	Enhancer enhance.Enhancer
}

// DefaultOptions returns the standard pipeline configuration.
func DefaultOptions() Options {
	return Options{
		TargetSize: 150,
		Enhancer:   enhance.NoopEnhancer{},
	}
}

// Option is a functional option for configuring Pipeline.
type Option func(*Options)

// WithTargetSize sets the per-patch changed-line budget.
func WithTargetSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.TargetSize = n
		}
	}
}

// WithPathPrefix restricts parsing to files under prefix.
func WithPathPrefix(prefix string) Option {
	return func(o *Options) { o.PathPrefix = prefix }
}

// WithEnhancer installs an advisory enhancer.
func WithEnhancer(e enhance.Enhancer) Option {
	return func(o *Options) {
		if e != nil {
			o.Enhancer = e
		}
	}
}

// Pipeline wires the stages together.
type Pipeline struct {
	options  Options
	parser   *diff.Parser
	analyzer *analyze.Analyzer
	grouper  *semantic.Grouper
	splitter *patch.Splitter
}

// NewPipeline builds a ready-to-run pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	extractor := ast.NewExtractor()
	return &Pipeline{
		options:  options,
		parser:   diff.NewParser(extractor, diff.WithPathPrefix(options.PathPrefix)),
		analyzer: analyze.NewAnalyzer(),
		grouper:  semantic.NewGrouper(),
		splitter: patch.NewSplitter(patch.WithTargetSize(options.TargetSize)),
	}
}

// RunResult bundles the split with everything a caller needs to
// persist or display it.
type RunResult struct {
	Result  *patch.PatchSplitResult
	Changes []*diff.Change
	Run     output.RunInfo
}

// Run executes the full pipeline over diffText.
//
// Description:
//
//	Fatal errors are limited to unparseable-or-empty input and a
//	validation failure that would mean emitting an incomplete result.
//	Everything else degrades: lenient re-parsing, pattern-fallback
//	extraction, skipped resolutions, broken cycles, and ignored
//	enhancer failures all surface as warnings on the result.
func (p *Pipeline) Run(ctx context.Context, diffText string) (res *RunResult, err error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.Run")
	defer span.End()
	defer func() { recordRunOutcome(err) }()

	stats := output.RunStats{}
	timer := newStageTimer(&stats)

	// Parse.
	changes, err := p.parser.Parse(ctx, diffText)
	if err != nil {
		if errors.Is(err, diff.ErrEmptyDiff) {
			return nil, fmt.Errorf("%w: no changes could be extracted", ErrNoUsableChanges)
		}
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	stats.Changes = len(changes)
	timer.mark(ctx, "parse")

	// Analyze, then let the enhancer append missed edges.
	deps, err := p.analyzer.Analyze(ctx, changes)
	if err != nil {
		return nil, fmt.Errorf("analyzing dependencies: %w", err)
	}
	timer.mark(ctx, "analyze")

	if extra, err := p.options.Enhancer.EnhanceDependencies(ctx, changes, deps); err != nil {
		slog.Warn("dependency enhancement unavailable", "error", err)
	} else {
		deps = append(deps, extra...)
	}
	stats.Dependencies = len(deps)
	stats.EdgesByKind = make(map[string]int, 5)
	for _, d := range deps {
		stats.EdgesByKind[string(d.Kind)]++
	}
	timer.mark(ctx, "enhance_dependencies")

	// Graph constraints.
	g := graph.NewGraph(changes, deps)
	atomics := g.AtomicGroups()
	_, cycleWarnings := g.TopologicalOrder()
	stats.AtomicGroups = len(atomics)
	stats.CyclesBroken = len(cycleWarnings)
	timer.mark(ctx, "graph")

	// Semantic grouping, then enhancer additions.
	groups, err := p.grouper.Group(ctx, changes)
	if err != nil {
		return nil, fmt.Errorf("semantic grouping: %w", err)
	}
	if extra, err := p.options.Enhancer.EnhanceGroups(ctx, changes, groups); err != nil {
		slog.Warn("group enhancement unavailable", "error", err)
	} else {
		groups = append(groups, extra...)
	}
	stats.SemanticGroups = len(groups)
	timer.mark(ctx, "semantic")

	// Split and validate.
	result, err := p.splitter.Split(ctx, changes, deps, atomics, groups)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}
	result.Warnings = append(result.Warnings, cycleWarnings...)
	stats.Patches = len(result.Patches)
	timer.mark(ctx, "split")

	p.describePatches(ctx, result, changes)
	p.reviewSplit(ctx, result)
	timer.mark(ctx, "enhance_result")

	slog.Info("pipeline complete",
		"changes", stats.Changes,
		"dependencies", stats.Dependencies,
		"patches", stats.Patches,
		"warnings", len(result.Warnings))

	return &RunResult{
		Result:  result,
		Changes: changes,
		Run: output.RunInfo{
			Settings: output.RunSettings{
				TargetSize: p.options.TargetSize,
				PathPrefix: p.options.PathPrefix,
				Enhanced:   !isNoop(p.options.Enhancer),
			},
			Stats: stats,
		},
	}, nil
}

// describePatches replaces heuristic descriptions with enhancer ones
// where available, passing the last three summaries for continuity.
func (p *Pipeline) describePatches(ctx context.Context, result *patch.PatchSplitResult, changes []*diff.Change) {
	var prior []string
	for _, pat := range result.Patches {
		desc, err := p.options.Enhancer.DescribePatch(ctx, pat, changes, prior)
		if err != nil {
			slog.Warn("patch description enhancement unavailable", "patch", pat.ID, "error", err)
			continue
		}
		if desc != "" {
			pat.Description = desc
		}
		if pat.Description != "" {
			prior = append(prior, pat.Description)
			if len(prior) > 3 {
				prior = prior[1:]
			}
		}
	}
}

// reviewSplit appends enhancer findings as informational warnings.
// The computed split itself is never altered here.
func (p *Pipeline) reviewSplit(ctx context.Context, result *patch.PatchSplitResult) {
	findings, err := p.options.Enhancer.ReviewSplit(ctx, result)
	if err != nil {
		slog.Warn("split review unavailable", "error", err)
		return
	}
	for _, finding := range findings {
		result.Warnings = append(result.Warnings, "review: "+finding)
	}
}

func isNoop(e enhance.Enhancer) bool {
	_, ok := e.(enhance.NoopEnhancer)
	return ok
}

// stageTimer appends wall-clock stage durations to RunStats.
type stageTimer struct {
	stats *output.RunStats
	last  time.Time
}

func newStageTimer(stats *output.RunStats) *stageTimer {
	return &stageTimer{stats: stats, last: time.Now()}
}

func (t *stageTimer) mark(ctx context.Context, stage string) {
	now := time.Now()
	elapsed := now.Sub(t.last)
	t.last = now
	t.stats.Timings = append(t.stats.Timings, output.StageTiming{
		Stage:      stage,
		DurationMS: elapsed.Milliseconds(),
	})
	recordStageDuration(ctx, stage, elapsed)
}
