// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package options holds the user-facing knobs for compilation and for
// performance estimation. A zero value is not meaningful; use the Default*
// constructors and override fields as needed.
package options

// DebugInfo controls the dumping of intermediate artifacts while compiling.
type DebugInfo struct {
	// DumpDebugFiles enables writing textual dumps of the plans and
	// combinations considered during compilation.
	DumpDebugFiles bool
	// DebugDir is the directory the dumps are written into.
	DebugDir string
}

// CompilationOptions controls which optimizations the compiler may apply.
type CompilationOptions struct {
	// EnableIntermediateCompression allows intermediate DRAM buffers to use
	// the FCAF compressed formats where the surrounding stripe shapes permit.
	EnableIntermediateCompression bool
	// DisableWinograd forces all convolutions to use the direct MCE
	// algorithm even where Winograd would be applicable.
	DisableWinograd bool

	DebugInfo DebugInfo
}

// DefaultCompilationOptions returns the options used when the caller has no
// special requirements.
func DefaultCompilationOptions() CompilationOptions {
	return CompilationOptions{
		EnableIntermediateCompression: true,
	}
}

// EstimationOptions tunes the performance model used when estimating a
// network rather than compiling it for real hardware.
type EstimationOptions struct {
	// ActivationCompressionSaving is the assumed space saving ratio for
	// compressed activations, in [0, 1).
	ActivationCompressionSaving float64
	// UseWeightCompressionOverride replaces the weight encoder's measured
	// compression ratio with WeightCompressionSaving.
	UseWeightCompressionOverride bool
	// WeightCompressionSaving is the assumed space saving ratio for weights,
	// in [0, 1). Only used when UseWeightCompressionOverride is set.
	WeightCompressionSaving float64
	// Current estimates the performance of the current implementation
	// rather than an idealized one. When false, operations the hardware
	// cannot yet run natively are estimated as if they could.
	Current bool
	// MetricAggregation combines per-pass metrics into the whole-graph
	// metric. Nil means plain summation. Cascaded passes overlap in time,
	// so callers with a more precise overlap model can plug it in here.
	MetricAggregation func(passMetrics []float64) float64
}

// DefaultEstimationOptions returns the estimation options matching the
// behavior of real hardware.
func DefaultEstimationOptions() EstimationOptions {
	return EstimationOptions{Current: true}
}
