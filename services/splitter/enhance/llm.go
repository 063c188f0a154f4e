// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/patchflow/services/llm"
	"github.com/AleutianAI/patchflow/services/splitter/analyze"
	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/patch"
	"github.com/AleutianAI/patchflow/services/splitter/semantic"
)

const (
	// maxPromptChanges bounds how many changes a single prompt carries.
	// Larger diffs send a truncated view rather than a bigger prompt.
	maxPromptChanges = 50

	// descriptionLimit is the longest description passed through
	// verbatim. Beyond it the text is cut to descriptionTruncated runes
	// with an ellipsis.
	descriptionLimit     = 80
	descriptionTruncated = 77

	defaultTimeout = 2 * time.Minute

	// llmEdgeStrength marks model-suggested edges as advisory. The
	// analyzer reserves 1.0 for symbol-verified dependencies.
	llmEdgeStrength = 0.8
)

// LLMEnhancer implements Enhancer over any llm.LLMClient backend.
type LLMEnhancer struct {
	client  llm.LLMClient
	timeout time.Duration
	temp    float32
}

// LLMEnhancerOption configures an LLMEnhancer.
type LLMEnhancerOption func(*LLMEnhancer)

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) LLMEnhancerOption {
	return func(e *LLMEnhancer) { e.timeout = d }
}

// NewLLMEnhancer wraps client with the pipeline injection points.
func NewLLMEnhancer(client llm.LLMClient, opts ...LLMEnhancerOption) *LLMEnhancer {
	e := &LLMEnhancer{
		client:  client,
		timeout: defaultTimeout,
		temp:    0.2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ===== Wire Schemas =====

type promptChange struct {
	ID      string   `json:"id"`
	File    string   `json:"file"`
	Kind    string   `json:"kind"`
	Size    int      `json:"size"`
	Symbols []string `json:"symbols,omitempty"`
}

type suggestedDependency struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type dependencyResponse struct {
	Dependencies []suggestedDependency `json:"dependencies"`
}

type suggestedGroup struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Cohesion    float64  `json:"cohesion"`
	ChangeIDs   []string `json:"change_ids"`
}

type groupResponse struct {
	Groups []suggestedGroup `json:"groups"`
}

type describeResponse struct {
	Description string `json:"description"`
}

type reviewResponse struct {
	Findings []string `json:"findings"`
}

// ===== Injection Points =====

// EnhanceDependencies asks the model for coupled change pairs the
// symbol analyzer could not see. Suggested edges come back advisory,
// deduplicated against existing, with unknown change ids dropped.
func (e *LLMEnhancer) EnhanceDependencies(ctx context.Context, changes []*diff.Change, existing []*analyze.Dependency) ([]*analyze.Dependency, error) {
	prompt := e.dependencyPrompt(changes, existing)
	body, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp dependencyResponse
	if err := ExtractJSON(body, &resp); err != nil {
		slog.Warn("dependency enhancement response unparseable", "error", err)
		return nil, err
	}

	known := changeIDSet(changes)
	seen := make(map[string]struct{}, len(existing))
	for _, dep := range existing {
		seen[dep.SourceChangeID+"|"+dep.TargetChangeID] = struct{}{}
	}

	var added []*analyze.Dependency
	for _, s := range resp.Dependencies {
		if _, ok := known[s.Source]; !ok {
			continue
		}
		if _, ok := known[s.Target]; !ok {
			continue
		}
		if s.Source == s.Target {
			continue
		}
		key := s.Source + "|" + s.Target
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, &analyze.Dependency{
			SourceChangeID: s.Source,
			TargetChangeID: s.Target,
			Kind:           analyze.KindCallChain,
			Strength:       llmEdgeStrength,
			Reason:         "llm: " + s.Reason,
		})
	}
	slog.Info("dependency enhancement complete",
		"suggested", len(resp.Dependencies), "accepted", len(added))
	return added, nil
}

// EnhanceGroups asks the model for thematic groupings beyond the
// pattern detectors. Groups with unknown members or fewer than two
// valid members are dropped; cohesion is clamped to [0.5, 1.0].
func (e *LLMEnhancer) EnhanceGroups(ctx context.Context, changes []*diff.Change, existing []*semantic.SemanticGroup) ([]*semantic.SemanticGroup, error) {
	prompt := e.groupPrompt(changes, existing)
	body, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp groupResponse
	if err := ExtractJSON(body, &resp); err != nil {
		slog.Warn("group enhancement response unparseable", "error", err)
		return nil, err
	}

	known := changeIDSet(changes)
	var added []*semantic.SemanticGroup
	for _, s := range resp.Groups {
		var members []string
		for _, id := range s.ChangeIDs {
			if _, ok := known[id]; ok {
				members = append(members, id)
			}
		}
		if len(members) < 2 || s.Name == "" {
			continue
		}
		cohesion := s.Cohesion
		if cohesion < 0.5 {
			cohesion = 0.5
		}
		if cohesion > 1.0 {
			cohesion = 1.0
		}
		added = append(added, semantic.NewSemanticGroup(s.Name, s.Description, cohesion, members...))
	}
	slog.Info("group enhancement complete",
		"suggested", len(resp.Groups), "accepted", len(added))
	return added, nil
}

// DescribePatch asks the model for a one-line reviewer summary of a
// patch. At most the last three prior summaries travel with the
// request for continuity. The result is used verbatim up to
// descriptionLimit runes.
func (e *LLMEnhancer) DescribePatch(ctx context.Context, p *patch.Patch, changes []*diff.Change, prior []string) (string, error) {
	prompt := e.describePrompt(p, changes, prior)
	body, err := e.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	var resp describeResponse
	if err := ExtractJSON(body, &resp); err != nil {
		if field, ok := ExtractField(body, "description"); ok {
			resp.Description = field
		} else {
			resp.Description = strings.TrimSpace(body)
		}
	}
	return truncateDescription(resp.Description), nil
}

// ReviewSplit asks the model to audit the finished split. Findings are
// returned for the caller to surface as informational warnings.
func (e *LLMEnhancer) ReviewSplit(ctx context.Context, result *patch.PatchSplitResult) ([]string, error) {
	prompt := e.reviewPrompt(result)
	body, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp reviewResponse
	if err := ExtractJSON(body, &resp); err != nil {
		slog.Warn("split review response unparseable", "error", err)
		return nil, err
	}

	var findings []string
	for _, f := range resp.Findings {
		f = strings.TrimSpace(f)
		if f != "" {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// ===== Prompt Construction =====

func (e *LLMEnhancer) dependencyPrompt(changes []*diff.Change, existing []*analyze.Dependency) string {
	var b strings.Builder
	b.WriteString("You are reviewing hunks of a unified diff for hidden coupling.\n")
	b.WriteString("Changes:\n")
	b.WriteString(encodeChanges(changes))
	b.WriteString("\nKnown dependency pairs (source depends on target):\n")
	limit := len(existing)
	if limit > maxPromptChanges {
		limit = maxPromptChanges
	}
	for _, dep := range existing[:limit] {
		fmt.Fprintf(&b, "- %s -> %s (%s)\n", dep.SourceChangeID, dep.TargetChangeID, dep.Kind)
	}
	b.WriteString("\nList additional pairs where applying the source without the target ")
	b.WriteString("would break behavior, even without shared symbols. Respond with JSON only:\n")
	b.WriteString(`{"dependencies":[{"source":"<change id>","target":"<change id>","reason":"<short reason>"}]}`)
	return b.String()
}

func (e *LLMEnhancer) groupPrompt(changes []*diff.Change, existing []*semantic.SemanticGroup) string {
	var b strings.Builder
	b.WriteString("You are clustering hunks of a unified diff by shared intent.\n")
	b.WriteString("Changes:\n")
	b.WriteString(encodeChanges(changes))
	b.WriteString("\nGroups already detected:\n")
	for _, g := range existing {
		fmt.Fprintf(&b, "- %s: %s\n", g.Name, strings.Join(g.Members(), ", "))
	}
	b.WriteString("\nPropose further groups of changes that belong in one reviewable unit. ")
	b.WriteString("Cohesion is your confidence from 0.5 to 1.0. Respond with JSON only:\n")
	b.WriteString(`{"groups":[{"name":"<short name>","description":"<one line>","cohesion":0.8,"change_ids":["<change id>"]}]}`)
	return b.String()
}

func (e *LLMEnhancer) describePrompt(p *patch.Patch, changes []*diff.Change, prior []string) string {
	members := make(map[string]struct{}, len(p.ChangeIDs))
	for _, id := range p.ChangeIDs {
		members[id] = struct{}{}
	}
	var included []*diff.Change
	for _, c := range changes {
		if _, ok := members[c.ID]; ok {
			included = append(included, c)
		}
	}

	var b strings.Builder
	b.WriteString("Summarize this patch for a code reviewer in one sentence.\n")
	fmt.Fprintf(&b, "Patch %q (%s), files: %s\n", p.Name, p.Category, strings.Join(p.Files, ", "))
	b.WriteString("Changes:\n")
	b.WriteString(encodeChanges(included))
	if len(prior) > 3 {
		prior = prior[len(prior)-3:]
	}
	for _, summary := range prior {
		fmt.Fprintf(&b, "Earlier patch: %s\n", summary)
	}
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"description":"<one sentence>"}`)
	return b.String()
}

func (e *LLMEnhancer) reviewPrompt(result *patch.PatchSplitResult) string {
	var b strings.Builder
	b.WriteString("You are auditing a proposed split of one diff into ordered patches.\n")
	for _, p := range result.Patches {
		fmt.Fprintf(&b, "- %s %q: %d lines, depends on [%s], changes [%s]\n",
			p.ID, p.Name, p.SizeLines,
			strings.Join(p.DependsOn, ", "), strings.Join(p.ChangeIDs, ", "))
	}
	b.WriteString("\nReport problems a reviewer would hit: changes that look misplaced, ")
	b.WriteString("patches mixing unrelated concerns, or ordering that reads backwards. ")
	b.WriteString("An empty list means the split is sound. Respond with JSON only:\n")
	b.WriteString(`{"findings":["<one finding per entry>"]}`)
	return b.String()
}

// encodeChanges renders at most maxPromptChanges changes as JSON lines.
func encodeChanges(changes []*diff.Change) string {
	limit := len(changes)
	truncated := false
	if limit > maxPromptChanges {
		limit = maxPromptChanges
		truncated = true
	}

	var b strings.Builder
	for _, c := range changes[:limit] {
		names := c.SymbolNames()
		symbols := make([]string, 0, len(names))
		for name := range names {
			symbols = append(symbols, name)
		}
		sort.Strings(symbols)
		if len(symbols) > 10 {
			symbols = symbols[:10]
		}
		line, err := json.Marshal(promptChange{
			ID:      c.ID,
			File:    c.File,
			Kind:    string(c.Kind),
			Size:    c.Size(),
			Symbols: symbols,
		})
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if truncated {
		fmt.Fprintf(&b, "(%d further changes omitted)\n", len(changes)-limit)
	}
	return b.String()
}

// ===== Helpers =====

func (e *LLMEnhancer) generate(ctx context.Context, prompt string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	body, err := e.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &e.temp,
	})
	if err != nil {
		slog.Warn("enhancement call failed", "error", err)
		return "", fmt.Errorf("llm generate: %w", err)
	}
	return body, nil
}

func truncateDescription(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= descriptionLimit {
		return s
	}
	return string(runes[:descriptionTruncated]) + "..."
}

func changeIDSet(changes []*diff.Change) map[string]struct{} {
	ids := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		ids[c.ID] = struct{}{}
	}
	return ids
}
