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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var analyzerTracer = otel.Tracer("patchflow.analyze")

var (
	// symbolResolutionAttempts tracks total resolution attempts by strategy.
	//
	// Labels:
	//   - strategy: Resolution strategy used (qualified, container,
	//               kind_fallback, module, failed)
	symbolResolutionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchflow_symbol_resolution_attempts_total",
		Help: "Total symbol resolution attempts by strategy",
	}, []string{"strategy"})

	// symbolResolutionDuration tracks time spent resolving one usage.
	//
	// Buckets: 10us to 10ms. Resolution is an in-memory map cascade and
	// should stay at the bottom of this range.
	symbolResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "patchflow_symbol_resolution_duration_seconds",
		Help:    "Symbol resolution duration in seconds",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01},
	})

	// symbolResolutionConfidence tracks per-strategy confidence constants
	// of successful resolutions.
	symbolResolutionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "patchflow_symbol_resolution_confidence",
		Help:    "Confidence of successful symbol resolutions",
		Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	// dependencyEdges tracks emitted dependency edges by kind.
	dependencyEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchflow_dependency_edges_total",
		Help: "Total dependency edges emitted by kind",
	}, []string{"kind"})
)
