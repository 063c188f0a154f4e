// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package output persists a finished split to disk.
//
// # Description
//
// One run writes, in order: a .patch file per patch with a structured
// header ahead of the unified-diff body, a YAML metadata record
// enumerating everything the run computed, a human-readable summary,
// and an apply script that replays the patches in application order
// and halts on the first failure. Output is written whole or not at
// all; a failed write leaves no partial file behind beyond the one
// that failed.
//
// # Thread Safety
//
// A Writer is stateless between calls; concurrent Write calls into
// distinct directories are safe.
package output

import (
	"github.com/AleutianAI/patchflow/services/splitter/patch"
)

// RunSettings records the knobs the run was invoked with.
type RunSettings struct {
	TargetSize int    `yaml:"target_size"`
	PathPrefix string `yaml:"path_prefix,omitempty"`
	Enhanced   bool   `yaml:"llm_enhanced"`
}

// StageTiming is one pipeline stage's wall-clock duration.
type StageTiming struct {
	Stage      string `yaml:"stage"`
	DurationMS int64  `yaml:"duration_ms"`
}

// RunStats carries per-run counters for the metadata record.
type RunStats struct {
	Changes        int            `yaml:"changes"`
	Dependencies   int            `yaml:"dependencies"`
	AtomicGroups   int            `yaml:"atomic_groups"`
	SemanticGroups int            `yaml:"semantic_groups"`
	Patches        int            `yaml:"patches"`
	CyclesBroken   int            `yaml:"cycles_broken"`
	EdgesByKind    map[string]int `yaml:"edges_by_kind,omitempty"`
	Timings        []StageTiming  `yaml:"timings,omitempty"`
}

// RunInfo is everything about the run that is not in the result itself.
type RunInfo struct {
	Settings RunSettings `yaml:"settings"`
	Stats    RunStats    `yaml:"stats"`
}

// ===== Metadata Record Schema =====

type changeRecord struct {
	ID       string `yaml:"id"`
	File     string `yaml:"file"`
	Kind     string `yaml:"kind"`
	Added    int    `yaml:"added_lines"`
	Deleted  int    `yaml:"deleted_lines"`
	Language string `yaml:"language,omitempty"`
}

type dependencyRecord struct {
	Source   string  `yaml:"source"`
	Target   string  `yaml:"target"`
	Kind     string  `yaml:"kind"`
	Strength float64 `yaml:"strength"`
	Reason   string  `yaml:"reason,omitempty"`
}

type atomicGroupRecord struct {
	ID        string   `yaml:"id"`
	Reason    string   `yaml:"reason"`
	ChangeIDs []string `yaml:"change_ids"`
}

type semanticGroupRecord struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Cohesion    float64  `yaml:"cohesion"`
	ChangeIDs   []string `yaml:"change_ids"`
}

type patchRecord struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Category      string   `yaml:"category"`
	File          string   `yaml:"file"`
	SizeLines     int      `yaml:"size_lines"`
	RiskLevel     string   `yaml:"risk_level"`
	Reviewability float64  `yaml:"reviewability"`
	Files         []string `yaml:"files"`
	ChangeIDs     []string `yaml:"change_ids"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
	Warnings      []string `yaml:"warnings,omitempty"`
}

type qualityRecord struct {
	BalanceScore      float64 `yaml:"balance_score"`
	MeanReviewability float64 `yaml:"mean_reviewability"`
	TotalLines        int     `yaml:"total_lines"`
	PatchCount        int     `yaml:"patch_count"`
}

type metadataRecord struct {
	Run            RunInfo               `yaml:"run"`
	Quality        qualityRecord         `yaml:"quality"`
	Warnings       []string              `yaml:"warnings,omitempty"`
	Changes        []changeRecord        `yaml:"changes"`
	Dependencies   []dependencyRecord    `yaml:"dependencies,omitempty"`
	AtomicGroups   []atomicGroupRecord   `yaml:"atomic_groups,omitempty"`
	SemanticGroups []semanticGroupRecord `yaml:"semantic_groups,omitempty"`
	Patches        []patchRecord         `yaml:"patches"`
}

func qualityFromMetrics(m patch.QualityMetrics) qualityRecord {
	return qualityRecord{
		BalanceScore:      m.BalanceScore,
		MeanReviewability: m.MeanReviewability,
		TotalLines:        m.TotalLines,
		PatchCount:        m.PatchCount,
	}
}
