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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for fragment extraction.
var (
	tracer = otel.Tracer("patchflow.ast")
	meter  = otel.Meter("patchflow.ast")
)

// Metrics for fragment extraction operations.
var (
	extractLatency   metric.Float64Histogram
	extractTotal     metric.Int64Counter
	symbolsExtracted metric.Int64Histogram
	fallbackTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"ast_extract_duration_seconds",
			metric.WithDescription("Duration of fragment extraction operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"ast_extract_total",
			metric.WithDescription("Total number of fragment extractions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		symbolsExtracted, err = meter.Int64Histogram(
			"ast_symbols_extracted",
			metric.WithDescription("Number of symbols extracted per fragment"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fallbackTotal, err = meter.Int64Counter(
			"ast_extract_fallback_total",
			metric.WithDescription("Total number of pattern-fallback extractions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExtraction records metrics for one extraction. No-op when metric
// initialization failed (metrics are best-effort).
func recordExtraction(ctx context.Context, language string, duration time.Duration, symbolCount int, fallback bool) {
	if initMetrics() != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("fallback", fallback),
	)

	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)
	symbolsExtracted.Record(ctx, int64(symbolCount), attrs)
	if fallback {
		fallbackTotal.Add(ctx, 1, attrs)
	}
}
