// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/patchflow/services/splitter/diff"
	"github.com/AleutianAI/patchflow/services/splitter/patch"
)

var writerTracer = otel.Tracer("patchflow.output")

const (
	metadataFile = "patches.yaml"
	summaryFile  = "SUMMARY.txt"
	applyScript  = "apply.sh"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Writer persists one PatchSplitResult to a directory.
type Writer struct {
	dir string
}

// NewWriter writes into dir, creating it if needed on Write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write emits the patch files, metadata record, summary, and apply
// script for one run. changes must be the full change set the result
// was computed from.
//
// Description:
//
//	Patch files are named <patch id>-<name slug>.patch and contain a
//	comment header (name, category, files, description) ahead of the
//	unified-diff body. git apply tolerates the header as leading junk.
//
// Inputs:
//
//	ctx - cancellation.
//	result - the finished, validated split.
//	changes - all parsed changes, keyed into patches by change id.
//	run - settings and statistics for the metadata record.
//
// Outputs:
//
//	error - the first filesystem or serialization failure.
func (w *Writer) Write(ctx context.Context, result *patch.PatchSplitResult, changes []*diff.Change, run RunInfo) error {
	_, span := writerTracer.Start(ctx, "output.Write")
	defer span.End()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	byID := make(map[string]*diff.Change, len(changes))
	for _, c := range changes {
		byID[c.ID] = c
	}

	patchFiles := make(map[string]string, len(result.Patches))
	for _, p := range result.Patches {
		name := patchFileName(p)
		patchFiles[p.ID] = name
		body, err := renderPatchFile(p, byID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(w.dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	meta, err := yaml.Marshal(buildMetadata(result, changes, run, patchFiles))
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, metadataFile), meta, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", metadataFile, err)
	}

	summary := RenderSummary(result, run)
	if err := os.WriteFile(filepath.Join(w.dir, summaryFile), []byte(summary), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", summaryFile, err)
	}

	script := renderApplyScript(result, patchFiles)
	if err := os.WriteFile(filepath.Join(w.dir, applyScript), []byte(script), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", applyScript, err)
	}

	slog.Info("split written", "dir", w.dir, "patches", len(result.Patches))
	return nil
}

// ===== Patch Files =====

func patchFileName(p *patch.Patch) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		return p.ID + ".patch"
	}
	return p.ID + "-" + slug + ".patch"
}

// renderPatchFile emits the structured header, then the patch's hunks
// regrouped under per-file ---/+++ headers in hunk order.
func renderPatchFile(p *patch.Patch, byID map[string]*diff.Change) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Patch: %s\n", p.Name)
	fmt.Fprintf(&b, "# Category: %s\n", p.Category)
	fmt.Fprintf(&b, "# Files: %s\n", strings.Join(p.Files, ", "))
	if p.Description != "" {
		fmt.Fprintf(&b, "# Description: %s\n", p.Description)
	}
	b.WriteString("#\n")

	members := make([]*diff.Change, 0, len(p.ChangeIDs))
	for _, id := range p.ChangeIDs {
		c, ok := byID[id]
		if !ok {
			return "", fmt.Errorf("patch %s references unknown change %s", p.ID, id)
		}
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].File != members[j].File {
			return members[i].File < members[j].File
		}
		return members[i].HunkIndex < members[j].HunkIndex
	})

	currentFile := ""
	for _, c := range members {
		if c.File != currentFile {
			currentFile = c.File
			oldName, newName := "a/"+c.File, "b/"+c.File
			switch c.Kind {
			case diff.KindAdd:
				oldName = "/dev/null"
			case diff.KindDelete:
				newName = "/dev/null"
			}
			fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
		}
		b.WriteString(strings.TrimRight(c.RawText, "\n"))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// ===== Metadata =====

func buildMetadata(result *patch.PatchSplitResult, changes []*diff.Change, run RunInfo, patchFiles map[string]string) *metadataRecord {
	meta := &metadataRecord{
		Run:      run,
		Quality:  qualityFromMetrics(result.Metrics),
		Warnings: result.Warnings,
	}

	for _, c := range changes {
		meta.Changes = append(meta.Changes, changeRecord{
			ID:       c.ID,
			File:     c.File,
			Kind:     string(c.Kind),
			Added:    c.AddedLines,
			Deleted:  c.DeletedLines,
			Language: c.Language,
		})
	}
	sort.Slice(meta.Changes, func(i, j int) bool { return meta.Changes[i].ID < meta.Changes[j].ID })

	for _, d := range result.Dependencies {
		meta.Dependencies = append(meta.Dependencies, dependencyRecord{
			Source:   d.SourceChangeID,
			Target:   d.TargetChangeID,
			Kind:     string(d.Kind),
			Strength: d.Strength,
			Reason:   d.Reason,
		})
	}

	for _, g := range result.AtomicGroups {
		meta.AtomicGroups = append(meta.AtomicGroups, atomicGroupRecord{
			ID:        g.ID,
			Reason:    g.Reason,
			ChangeIDs: g.Members(),
		})
	}

	for _, g := range result.SemanticGroups {
		meta.SemanticGroups = append(meta.SemanticGroups, semanticGroupRecord{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Cohesion:    g.CohesionScore,
			ChangeIDs:   g.Members(),
		})
	}

	for _, p := range result.Patches {
		meta.Patches = append(meta.Patches, patchRecord{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Category:      p.Category,
			File:          patchFiles[p.ID],
			SizeLines:     p.SizeLines,
			RiskLevel:     p.RiskLevel,
			Reviewability: p.ReviewabilityScore,
			Files:         p.Files,
			ChangeIDs:     p.ChangeIDs,
			DependsOn:     p.DependsOn,
			Warnings:      p.Warnings,
		})
	}
	return meta
}

// ===== Summary and Apply Script =====

// RenderSummary formats the run for humans. The CLI prints this to
// stdout as well as writing it next to the patches.
func RenderSummary(result *patch.PatchSplitResult, run RunInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Split %d changes into %d patches (%d lines total)\n",
		run.Stats.Changes, len(result.Patches), result.Metrics.TotalLines)
	fmt.Fprintf(&b, "balance %.2f, mean reviewability %.2f\n\n",
		result.Metrics.BalanceScore, result.Metrics.MeanReviewability)

	for _, p := range result.Patches {
		fmt.Fprintf(&b, "%s  %-40s  %4d lines  %d files  risk=%s\n",
			p.ID, p.Name, p.SizeLines, len(p.Files), p.RiskLevel)
		if p.Description != "" {
			fmt.Fprintf(&b, "           %s\n", p.Description)
		}
		if len(p.DependsOn) > 0 {
			fmt.Fprintf(&b, "           depends on %s\n", strings.Join(p.DependsOn, ", "))
		}
		for _, warning := range p.Warnings {
			fmt.Fprintf(&b, "           warning: %s\n", warning)
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\nRun warnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warning)
		}
	}
	return b.String()
}

// renderApplyScript replays the patches in application order, checking
// each with git apply --check first and halting on the first failure.
func renderApplyScript(result *patch.PatchSplitResult, patchFiles map[string]string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Applies the patches in dependency order. Run from the repo root.\n")
	b.WriteString("set -u\n")
	b.WriteString("dir=$(dirname \"$0\")\n\n")
	b.WriteString("apply_patch() {\n")
	b.WriteString("  echo \"applying $1\"\n")
	b.WriteString("  git apply --check \"$dir/$1\" || { echo \"pre-check failed: $1\" >&2; exit 1; }\n")
	b.WriteString("  git apply \"$dir/$1\" || { echo \"apply failed: $1\" >&2; exit 1; }\n")
	b.WriteString("}\n\n")
	for _, p := range result.Patches {
		fmt.Fprintf(&b, "apply_patch %q\n", patchFiles[p.ID])
	}
	b.WriteString("\necho \"all patches applied\"\n")
	return b.String()
}
