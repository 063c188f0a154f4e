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
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LLMConfig selects and bounds the optional enhancement backend.
type LLMConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Backend        string `yaml:"backend" validate:"omitempty,oneof=openai ollama"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0,lte=3600"`
}

// Config is the file-backed configuration. Flags override it.
type Config struct {
	TargetSize int       `yaml:"target_size" validate:"gte=0,lte=100000"`
	PathPrefix string    `yaml:"path_prefix"`
	OutputDir  string    `yaml:"output_dir"`
	LogLevel   string    `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogDir     string    `yaml:"log_dir"`
	LLM        LLMConfig `yaml:"llm"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		TargetSize: 150,
		OutputDir:  "patches",
		LogLevel:   "info",
		LLM: LLMConfig{
			Backend:        "ollama",
			TimeoutSeconds: 120,
		},
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// loadConfig reads path if it exists, otherwise returns defaults. A
// file that exists but fails to parse or validate is an error.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
