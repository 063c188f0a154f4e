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
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/patchflow/services/splitter/ast"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
)

// Strength constants for emitted edges.
const (
	// strengthCritical marks edges that force co-location or strict order.
	strengthCritical = 1.0

	// strengthAdditive marks edges where both sides are pure additions.
	strengthAdditive = 0.8
)

// AnalyzerOptions configures Analyzer behavior.
type AnalyzerOptions struct {
	// EmitSelfEdges keeps edges whose source and target are the same
	// change. Off by default; a fragment trivially uses what it defines.
	EmitSelfEdges bool
}

// DefaultAnalyzerOptions returns sensible defaults.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{}
}

// AnalyzerOption is a functional option for configuring Analyzer.
type AnalyzerOption func(*AnalyzerOptions)

// WithSelfEdges enables emission of self edges.
func WithSelfEdges() AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.EmitSelfEdges = true
	}
}

// Analyzer resolves symbol usages into dependency edges.
//
// # Thread Safety
//
// Safe for concurrent use; all per-run state lives in the Analyze call.
type Analyzer struct {
	options AnalyzerOptions
}

// NewAnalyzer creates an Analyzer with the given options.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	options := DefaultAnalyzerOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Analyzer{options: options}
}

// Analyze derives dependency edges for the full change set.
//
// Description:
//
//	Runs the four analysis phases in order: per-change extraction results
//	are read from the changes (the parser populated and cached them),
//	a qualified symbol index and a module index are built with
//	first-writer-wins semantics, then every usage is resolved through the
//	strategy cascade. Unresolved usages are logged at debug level and
//	produce no edge.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	changes - The complete change set from the diff parser.
//
// Outputs:
//
//	[]*Dependency - Deduplicated edges, deterministic order.
//	error - ErrNoChanges for an empty set, or ctx cancellation.
func (a *Analyzer) Analyze(ctx context.Context, changes []*diff.Change) ([]*Dependency, error) {
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	ctx, span := analyzerTracer.Start(ctx, "Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("changes", len(changes)))

	byID := make(map[string]*diff.Change, len(changes))
	for _, c := range changes {
		byID[c.ID] = c
	}
	idx := buildSymbolIndex(changes)

	edges := make(map[string]*Dependency)
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, usage := range change.Usages() {
			res, strategy, ok := a.resolve(usage, change, idx)
			symbolResolutionAttempts.WithLabelValues(strategy).Inc()
			if !ok {
				slog.Debug("usage unresolved",
					slog.String("change", change.ID),
					slog.String("symbol", usage.QualifiedName()))
				continue
			}
			symbolResolutionConfidence.Observe(res.confidence)

			target, known := byID[res.targetChangeID]
			if !known {
				continue
			}
			if target.ID == change.ID && !a.options.EmitSelfEdges {
				continue
			}
			dep := buildEdge(usage, change, target, res)
			addEdge(edges, dep)
		}
	}

	result := make([]*Dependency, 0, len(edges))
	for _, dep := range edges {
		result = append(result, dep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceChangeID != result[j].SourceChangeID {
			return result[i].SourceChangeID < result[j].SourceChangeID
		}
		if result[i].TargetChangeID != result[j].TargetChangeID {
			return result[i].TargetChangeID < result[j].TargetChangeID
		}
		return result[i].Kind < result[j].Kind
	})

	span.SetAttributes(attribute.Int("edges", len(result)))
	slog.Info("dependency analysis complete",
		slog.Int("changes", len(changes)),
		slog.Int("edges", len(result)),
	)
	return result, nil
}

// resolve runs the strategy cascade for one usage.
func (a *Analyzer) resolve(usage *ast.Symbol, source *diff.Change, idx *symbolIndex) (resolution, string, bool) {
	start := time.Now()
	defer func() {
		symbolResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	for _, s := range resolutionStrategies {
		if res, ok := s.fn(usage, source, idx); ok {
			return res, s.name, true
		}
	}
	return resolution{}, "failed", false
}

// buildEdge classifies and weights one resolved usage.
func buildEdge(usage *ast.Symbol, source, target *diff.Change, res resolution) *Dependency {
	kind := classifyEdge(usage, res)
	strength := strengthAdditive
	reason := fmt.Sprintf("%s uses %s defined in %s", source.ID, usage.QualifiedName(), target.ID)

	switch {
	case kind == KindImport:
		// Import-before-use is always a hard constraint.
		strength = strengthCritical
		reason = fmt.Sprintf("%s imports module provided by %s", source.ID, target.ID)
	case target.Kind == diff.KindModify:
		// An existing symbol's contract changed under the source.
		strength = strengthCritical
		kind = KindModifiesUses
		reason = fmt.Sprintf("%s uses %s whose definition %s modifies", source.ID, usage.QualifiedName(), target.ID)
	case res.exact:
		// The source needs this exact definition present first.
		strength = strengthCritical
	}

	dep := &Dependency{
		SourceChangeID: source.ID,
		TargetChangeID: target.ID,
		Kind:           kind,
		Strength:       strength,
		Reason:         reason,
	}
	dependencyEdges.WithLabelValues(string(kind)).Inc()
	return dep
}

// classifyEdge picks the edge kind from the usage shape.
func classifyEdge(usage *ast.Symbol, res resolution) DependencyKind {
	switch {
	case res.viaImport:
		return KindImport
	case res.definition != nil && res.definition.Kind == ast.SymbolKindImport:
		return KindImport
	case usage.Kind == ast.SymbolKindType:
		return KindTypeDependency
	case usage.QualifyingContainer != "":
		return KindCallChain
	default:
		return KindDefinesUses
	}
}

// addEdge deduplicates by (source, target, kind), keeping max strength.
func addEdge(edges map[string]*Dependency, dep *Dependency) {
	key := dep.SourceChangeID + "|" + dep.TargetChangeID + "|" + string(dep.Kind)
	if existing, ok := edges[key]; ok {
		if dep.Strength > existing.Strength {
			edges[key] = dep
		}
		return
	}
	edges[key] = dep
}
