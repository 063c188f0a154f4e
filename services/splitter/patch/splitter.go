// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/graph"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

var splitterTracer = otel.Tracer("patchflow.patch")

// Splitting thresholds.
const (
	// defaultTargetSize is the per-patch changed-line budget.
	defaultTargetSize = 150

	// permittedSizeFactor bounds voluntary merges at 1.5x the target.
	permittedSizeFactor = 1.5

	// similarityThreshold is the minimum semantic-membership similarity
	// for a permitted merge.
	similarityThreshold = 0.5

	// rebalanceFactor triggers bisection of patches over 2x the target.
	rebalanceFactor = 2

	// warnLines and warnHunks attach per-patch size warnings.
	warnLines = 500
	warnHunks = 20
)

// SplitterOptions configures Splitter behavior.
type SplitterOptions struct {
	// TargetSize is the desired changed-line count per patch.
	TargetSize int
}

// DefaultSplitterOptions returns sensible defaults.
func DefaultSplitterOptions() SplitterOptions {
	return SplitterOptions{TargetSize: defaultTargetSize}
}

// SplitterOption is a functional option for configuring Splitter.
type SplitterOption func(*SplitterOptions)

// WithTargetSize sets the per-patch changed-line budget.
func WithTargetSize(n int) SplitterOption {
	return func(o *SplitterOptions) {
		if n > 0 {
			o.TargetSize = n
		}
	}
}

// Splitter merges changes into ordered patches.
type Splitter struct {
	options SplitterOptions
}

// NewSplitter creates a Splitter with the given options.
func NewSplitter(opts ...SplitterOption) *Splitter {
	options := DefaultSplitterOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Splitter{options: options}
}

// splitState tracks progress through the per-run state machine.
type splitState int

const (
	stateSeed splitState = iota
	stateMerge
	stateName
	stateOrder
	stateValidate
	stateRebalance
	stateDone
)

// candidate is a patch under construction.
type candidate struct {
	members map[string]struct{}
	size    int
}

// splitRun holds all per-run state.
type splitRun struct {
	options    SplitterOptions
	changes    map[string]*diff.Change
	deps       []*analyze.Dependency
	atomics    []*graph.AtomicGroup
	membership map[string]map[string]struct{}

	candidates []*candidate
	patches    []*Patch
	warnings   []string
	rebalanced bool
}

// Split runs the full state machine: seed, merge, name, order,
// validate, and optionally rebalance.
//
// Description:
//
//	Atomic groups seed non-negotiable candidates and every remaining
//	change seeds a singleton. Mandatory merges (critical cross-candidate
//	edges, atomic co-membership) are applied first and never reverted;
//	permitted merges apply greedily by descending semantic similarity
//	within the size budget. After naming, a patch-level graph is
//	topologically sorted; advisory-edge cycles at this level are broken
//	by dropping the weakest edge, with a warning on the result.
//	Validation checks completeness
//	and ordering and computes quality metrics. One rebalance pass then
//	bisects patches over twice the target size where no mandatory pair
//	would be separated.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	changes - The complete change set.
//	deps - Dependency edges over the changes.
//	atomics - Hard co-location constraints.
//	semantics - Advisory groups used as soft merge preferences.
//
// Outputs:
//
//	*PatchSplitResult - Complete, validated, immutable result.
//	error - ErrNoChanges, ErrChangeOmitted, or ctx cancellation.
//	        A non-nil error means no usable result.
func (s *Splitter) Split(
	ctx context.Context,
	changes []*diff.Change,
	deps []*analyze.Dependency,
	atomics []*graph.AtomicGroup,
	semantics []*semantic.SemanticGroup,
) (*PatchSplitResult, error) {
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	ctx, span := splitterTracer.Start(ctx, "Split")
	defer span.End()

	run := &splitRun{
		options:    s.options,
		changes:    make(map[string]*diff.Change, len(changes)),
		deps:       deps,
		atomics:    atomics,
		membership: semantic.MembershipIndex(semantics),
	}
	for _, c := range changes {
		run.changes[c.ID] = c
	}

	state := stateSeed
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch state {
		case stateSeed:
			run.seed()
			state = stateMerge
		case stateMerge:
			run.mergeMandatory()
			run.mergePermitted()
			state = stateName
		case stateName:
			run.name()
			state = stateOrder
		case stateOrder:
			if err := run.order(); err != nil {
				return nil, err
			}
			state = stateValidate
		case stateValidate:
			if err := run.validate(); err != nil {
				return nil, err
			}
			if run.rebalanced {
				state = stateDone
			} else {
				state = stateRebalance
			}
		case stateRebalance:
			run.rebalanced = true
			if run.rebalance() {
				state = stateName
			} else {
				state = stateDone
			}
		}
	}

	result := &PatchSplitResult{
		Patches:        run.patches,
		AtomicGroups:   atomics,
		SemanticGroups: semantics,
		Dependencies:   deps,
		Warnings:       run.warnings,
		Metrics:        computeMetrics(run.patches),
	}
	span.SetAttributes(
		attribute.Int("changes", len(changes)),
		attribute.Int("patches", len(result.Patches)),
	)
	slog.Info("split complete",
		slog.Int("changes", len(changes)),
		slog.Int("patches", len(result.Patches)),
		slog.Int("warnings", len(run.warnings)),
	)
	return result, nil
}

// ===== Seed =====

// seed creates one candidate per atomic group plus singletons.
func (r *splitRun) seed() {
	seeded := make(map[string]struct{})
	for _, group := range r.atomics {
		cand := &candidate{members: make(map[string]struct{})}
		for _, id := range group.Members() {
			if _, known := r.changes[id]; !known {
				continue
			}
			cand.members[id] = struct{}{}
			seeded[id] = struct{}{}
		}
		if len(cand.members) > 0 {
			r.addCandidate(cand)
		}
	}

	ids := make([]string, 0, len(r.changes))
	for id := range r.changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, done := seeded[id]; done {
			continue
		}
		r.addCandidate(&candidate{members: map[string]struct{}{id: {}}})
	}
}

func (r *splitRun) addCandidate(c *candidate) {
	c.size = 0
	for id := range c.members {
		c.size += r.changes[id].Size()
	}
	r.candidates = append(r.candidates, c)
}

// ===== Merge =====

// mergeMandatory unifies candidates joined by strength-1.0 edges.
// Mandatory merges are never reverted.
func (r *splitRun) mergeMandatory() {
	owner := r.ownership()
	parent := make([]int, len(r.candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for _, dep := range r.deps {
		if !dep.Critical() {
			continue
		}
		src, okSrc := owner[dep.SourceChangeID]
		dst, okDst := owner[dep.TargetChangeID]
		if !okSrc || !okDst || find(src) == find(dst) {
			continue
		}
		parent[find(src)] = find(dst)
	}

	merged := make(map[int]*candidate)
	for i, cand := range r.candidates {
		root := find(i)
		target, ok := merged[root]
		if !ok {
			merged[root] = cand
			continue
		}
		for id := range cand.members {
			target.members[id] = struct{}{}
		}
		target.size += cand.size
	}

	r.candidates = r.candidates[:0]
	roots := make([]int, 0, len(merged))
	for root := range merged {
		roots = append(roots, root)
	}
	sort.Ints(roots)
	for _, root := range roots {
		r.candidates = append(r.candidates, merged[root])
	}
}

// mergePermitted greedily merges the most similar permitted pair until
// no pair remains within the size budget and above the similarity bar.
func (r *splitRun) mergePermitted() {
	maxSize := int(float64(r.options.TargetSize) * permittedSizeFactor)

	for {
		bestA, bestB := -1, -1
		bestSim := similarityThreshold
		for a := 0; a < len(r.candidates); a++ {
			for b := a + 1; b < len(r.candidates); b++ {
				if r.candidates[a].size+r.candidates[b].size > maxSize {
					continue
				}
				sim := r.membershipSimilarity(r.candidates[a], r.candidates[b])
				if sim > bestSim {
					bestSim = sim
					bestA, bestB = a, b
				}
			}
		}
		if bestA < 0 {
			return
		}
		target, absorbed := r.candidates[bestA], r.candidates[bestB]
		for id := range absorbed.members {
			target.members[id] = struct{}{}
		}
		target.size += absorbed.size
		r.candidates = append(r.candidates[:bestB], r.candidates[bestB+1:]...)
	}
}

// membershipSimilarity computes the Jaccard similarity of two
// candidates' semantic-group-membership sets.
func (r *splitRun) membershipSimilarity(a, b *candidate) float64 {
	groupsA := r.groupSet(a)
	groupsB := r.groupSet(b)
	if len(groupsA) == 0 || len(groupsB) == 0 {
		return 0
	}
	intersection := 0
	for id := range groupsA {
		if _, ok := groupsB[id]; ok {
			intersection++
		}
	}
	union := len(groupsA) + len(groupsB) - intersection
	return float64(intersection) / float64(union)
}

func (r *splitRun) groupSet(c *candidate) map[string]struct{} {
	set := make(map[string]struct{})
	for changeID := range c.members {
		for groupID := range r.membership[changeID] {
			set[groupID] = struct{}{}
		}
	}
	return set
}

// ownership maps change ids to their current candidate index.
func (r *splitRun) ownership() map[string]int {
	owner := make(map[string]int, len(r.changes))
	for i, cand := range r.candidates {
		for id := range cand.members {
			owner[id] = i
		}
	}
	return owner
}

// ===== Name =====

// name materializes candidates into patches with generated names,
// descriptions, and size warnings. Naming is deterministic for a given
// candidate set.
func (r *splitRun) name() {
	r.patches = make([]*Patch, 0, len(r.candidates))
	for _, cand := range r.candidates {
		members := make([]*diff.Change, 0, len(cand.members))
		for id := range cand.members {
			members = append(members, r.changes[id])
		}
		p := describePatch(members)
		if p.SizeLines > warnLines {
			p.Warnings = append(p.Warnings, fmt.Sprintf("patch exceeds %d changed lines", warnLines))
		}
		if len(p.ChangeIDs) > warnHunks {
			p.Warnings = append(p.Warnings, fmt.Sprintf("patch contains more than %d hunks", warnHunks))
		}
		r.patches = append(r.patches, p)
	}
}

// ===== Order =====

// order topologically sorts patches and assigns sequential ids.
// Mandatory merges keep critical edges inside a single patch, so any
// cycle in the patch graph rides on advisory edges; the weakest edge
// on a detected cycle is dropped with a warning and the sort retried,
// the same way change-level ordering breaks cycles.
func (r *splitRun) order() error {
	owner := make(map[string]int, len(r.changes))
	for i, p := range r.patches {
		for _, id := range p.ChangeIDs {
			owner[id] = i
		}
	}

	n := len(r.patches)
	dependsOn := make([]map[int]struct{}, n)
	for i := range dependsOn {
		dependsOn[i] = make(map[int]struct{})
	}
	strengths := make(map[[2]int]float64)
	for _, dep := range r.deps {
		src, okSrc := owner[dep.SourceChangeID]
		dst, okDst := owner[dep.TargetChangeID]
		if !okSrc || !okDst || src == dst {
			continue
		}
		dependsOn[src][dst] = struct{}{}
		key := [2]int{src, dst}
		if dep.Strength > strengths[key] {
			strengths[key] = dep.Strength
		}
	}

	var ordered []int
	for {
		var ok bool
		ordered, ok = r.kahnPatches(dependsOn)
		if ok {
			break
		}
		from, to, found := weakestCycleEdge(dependsOn, strengths)
		if !found {
			return fmt.Errorf("%w: %d of %d patches unorderable", ErrPatchCycle, n-len(ordered), n)
		}
		delete(dependsOn[from], to)
		r.warnings = append(r.warnings, fmt.Sprintf(
			"broke patch cycle by dropping dependency %s -> %s (strength %.2f)",
			r.patches[from].ChangeIDs[0], r.patches[to].ChangeIDs[0],
			strengths[[2]int{from, to}]))
	}

	// Renumber in application order and remap depends_on.
	position := make([]int, n)
	for pos, idx := range ordered {
		position[idx] = pos
	}
	final := make([]*Patch, n)
	for pos, idx := range ordered {
		p := r.patches[idx]
		p.ID = patchID(pos + 1)
		ids := make([]string, 0, len(dependsOn[idx]))
		for dst := range dependsOn[idx] {
			ids = append(ids, patchID(position[dst]+1))
		}
		sort.Strings(ids)
		p.DependsOn = ids
		final[pos] = p
	}
	r.patches = final
	return nil
}

// kahnPatches attempts a topological sort of the patch graph,
// prerequisites first, ties broken by smallest member id. Reports
// false when a cycle blocks completion.
func (r *splitRun) kahnPatches(dependsOn []map[int]struct{}) ([]int, bool) {
	n := len(r.patches)
	remaining := make([]int, n)
	dependents := make([][]int, n)
	for i := range dependsOn {
		remaining[i] = len(dependsOn[i])
		for dst := range dependsOn[i] {
			dependents[dst] = append(dependents[dst], i)
		}
	}
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			return r.patches[ready[a]].ChangeIDs[0] < r.patches[ready[b]].ChangeIDs[0]
		})
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)
		for _, dep := range dependents[next] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return ordered, len(ordered) == n
}

// weakestCycleEdge locates one cycle in the patch graph via DFS and
// returns its lowest-strength edge.
func weakestCycleEdge(dependsOn []map[int]struct{}, strengths map[[2]int]float64) (from, to int, found bool) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // finished
	)
	n := len(dependsOn)
	color := make([]int, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}

	var cycle [][2]int
	var visit func(int) bool
	visit = func(node int) bool {
		color[node] = gray
		dsts := make([]int, 0, len(dependsOn[node]))
		for dst := range dependsOn[node] {
			dsts = append(dsts, dst)
		}
		sort.Ints(dsts)
		for _, dst := range dsts {
			switch color[dst] {
			case white:
				parent[dst] = node
				if visit(dst) {
					return true
				}
			case gray:
				// Back edge: walk parents from node up to dst.
				cycle = [][2]int{{node, dst}}
				for at := node; at != dst && parent[at] != -1; at = parent[at] {
					cycle = append(cycle, [2]int{parent[at], at})
				}
				return true
			}
		}
		color[node] = black
		return false
	}
	for start := 0; start < n && cycle == nil; start++ {
		if color[start] == white {
			visit(start)
		}
	}
	if cycle == nil {
		return 0, 0, false
	}

	weakest := cycle[0]
	for _, e := range cycle[1:] {
		if strengths[e] < strengths[weakest] {
			weakest = e
		}
	}
	return weakest[0], weakest[1], true
}

// ===== Validate =====

// validate checks completeness and ordering, then scores the result.
func (r *splitRun) validate() error {
	seen := make(map[string]string, len(r.changes))
	position := make(map[string]int, len(r.patches))
	for pos, p := range r.patches {
		position[p.ID] = pos
		for _, id := range p.ChangeIDs {
			if prior, dup := seen[id]; dup {
				return fmt.Errorf("change %s in both %s and %s", id, prior, p.ID)
			}
			seen[id] = p.ID
		}
	}
	for id := range r.changes {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: %s", ErrChangeOmitted, id)
		}
	}

	for _, dep := range r.deps {
		srcPatch, okSrc := seen[dep.SourceChangeID]
		dstPatch, okDst := seen[dep.TargetChangeID]
		if !okSrc || !okDst || srcPatch == dstPatch {
			continue
		}
		if position[dstPatch] > position[srcPatch] {
			return fmt.Errorf("ordering violation: %s (in %s) depends on %s (in %s)",
				dep.SourceChangeID, srcPatch, dep.TargetChangeID, dstPatch)
		}
	}

	for _, p := range r.patches {
		p.ReviewabilityScore = reviewabilityScore(p)
	}
	return nil
}

// ===== Rebalance =====

// rebalance bisects pathologically oversized patches. Returns true when
// any patch was split, prompting a re-name, re-order, re-validate pass.
func (r *splitRun) rebalance() bool {
	limit := r.options.TargetSize * rebalanceFactor
	changed := false
	next := make([]*candidate, 0, len(r.candidates))

	for _, cand := range r.candidates {
		if cand.size <= limit || len(cand.members) < 2 {
			next = append(next, cand)
			continue
		}
		left, right, ok := r.bisect(cand)
		if !ok {
			r.warnings = append(r.warnings, fmt.Sprintf(
				"patch with changes %v left oversized (%d lines): bisection would separate a mandatory pair",
				sortedSet(cand.members), cand.size))
			next = append(next, cand)
			continue
		}
		next = append(next, left, right)
		changed = true
	}

	r.candidates = next
	return changed
}

// bisect splits a candidate in half by change id, refusing when the cut
// would separate an atomic group or a critical dependency.
func (r *splitRun) bisect(cand *candidate) (*candidate, *candidate, bool) {
	ids := sortedSet(cand.members)
	mid := len(ids) / 2
	left := &candidate{members: make(map[string]struct{})}
	right := &candidate{members: make(map[string]struct{})}
	for _, id := range ids[:mid] {
		left.members[id] = struct{}{}
	}
	for _, id := range ids[mid:] {
		right.members[id] = struct{}{}
	}

	for _, group := range r.atomics {
		inLeft, inRight := false, false
		for id := range group.ChangeIDs {
			if _, ok := left.members[id]; ok {
				inLeft = true
			}
			if _, ok := right.members[id]; ok {
				inRight = true
			}
		}
		if inLeft && inRight {
			return nil, nil, false
		}
	}
	for _, dep := range r.deps {
		if !dep.Critical() {
			continue
		}
		_, srcLeft := left.members[dep.SourceChangeID]
		_, dstLeft := left.members[dep.TargetChangeID]
		_, srcRight := right.members[dep.SourceChangeID]
		_, dstRight := right.members[dep.TargetChangeID]
		if (srcLeft && dstRight) || (srcRight && dstLeft) {
			return nil, nil, false
		}
	}

	for id := range left.members {
		left.size += r.changes[id].Size()
	}
	for id := range right.members {
		right.size += r.changes[id].Size()
	}
	return left, right, true
}
