// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/patchflow/services/llm"
	"github.com/AleutianAI/patchflow/services/splitter"
	"github.com/AleutianAI/patchflow/services/splitter/enhance"
	"github.com/AleutianAI/patchflow/services/splitter/output"
)

var (
	flagTargetSize int
	flagPrefix     string
	flagOutputDir  string
	flagLLM        bool
	flagBackend    string

	rootCmd = &cobra.Command{
		Use:   "patchflow",
		Short: "Split large diffs into reviewable, dependency-ordered patches",
		Long: `Patchflow parses a unified diff, analyzes symbol-level dependencies
between hunks, and splits the diff into ordered patches that apply
cleanly one after another.`,
	}

	splitCmd = &cobra.Command{
		Use:   "split [diff-file]",
		Short: "Split a unified diff into ordered patch files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSplit,
	}
)

func init() {
	splitCmd.Flags().IntVar(&flagTargetSize, "target-size", 0, "per-patch changed-line budget (overrides config)")
	splitCmd.Flags().StringVar(&flagPrefix, "prefix", "", "only include files under this path prefix")
	splitCmd.Flags().StringVarP(&flagOutputDir, "output", "o", "", "output directory (overrides config)")
	splitCmd.Flags().BoolVar(&flagLLM, "llm", false, "enable advisory LLM enhancement")
	splitCmd.Flags().StringVar(&flagBackend, "llm-backend", "", "llm backend: openai or ollama (overrides config)")
	rootCmd.AddCommand(splitCmd)
}

// runSplit reads the diff, runs the pipeline, and writes the result.
func runSplit(cmd *cobra.Command, args []string) error {
	diffText, err := readDiff(args)
	if err != nil {
		return err
	}

	targetSize := config.TargetSize
	if flagTargetSize > 0 {
		targetSize = flagTargetSize
	}
	prefix := config.PathPrefix
	if flagPrefix != "" {
		prefix = flagPrefix
	}
	outputDir := config.OutputDir
	if flagOutputDir != "" {
		outputDir = flagOutputDir
	}

	enhancer, err := buildEnhancer()
	if err != nil {
		return err
	}

	pipeline := splitter.NewPipeline(
		splitter.WithTargetSize(targetSize),
		splitter.WithPathPrefix(prefix),
		splitter.WithEnhancer(enhancer),
	)
	res, err := pipeline.Run(cmd.Context(), diffText)
	if err != nil {
		return fmt.Errorf("split failed: %w", err)
	}

	if err := output.NewWriter(outputDir).Write(cmd.Context(), res.Result, res.Changes, res.Run); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	summary := output.RenderSummary(res.Result, res.Run)
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Print(summary)
		fmt.Printf("\nwrote %d patches to %s\n", len(res.Result.Patches), outputDir)
	} else {
		// Piped output gets just the machine-relevant pointer.
		fmt.Println(outputDir)
	}
	return nil
}

// readDiff loads the diff from the named file, or from stdin when the
// input is piped.
func readDiff(args []string) (string, error) {
	if len(args) == 1 {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading diff file: %w", err)
		}
		return string(body), nil
	}

	if isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no diff file given and stdin is a terminal; pipe a diff or pass a file")
	}
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(body), nil
}

// buildEnhancer wires the configured LLM backend, or the noop default.
func buildEnhancer() (enhance.Enhancer, error) {
	enabled := config.LLM.Enabled || flagLLM
	if !enabled {
		return enhance.NoopEnhancer{}, nil
	}

	backend := config.LLM.Backend
	if flagBackend != "" {
		backend = flagBackend
	}
	client, err := llm.NewClient(backend)
	if err != nil {
		return nil, fmt.Errorf("building llm backend: %w", err)
	}
	slog.Info("llm enhancement enabled", "backend", backend)

	timeout := time.Duration(config.LLM.TimeoutSeconds) * time.Second
	return enhance.NewLLMEnhancer(client, enhance.WithTimeout(timeout)), nil
}
