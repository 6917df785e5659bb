// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package estimation is the cost oracle for op graphs. It partitions a
// graph into passes, models the DMA engines, MCE and PLE of each pass and
// reduces everything to a single scalar metric that the combiner ranks
// candidate combinations by.
package estimation

// StripesStats counts the stripe transfers of one data stream.
type StripesStats struct {
	NumCentralStripes  uint32
	NumBoundaryStripes uint32
	NumReloads         uint32
}

// MemoryStats splits the byte traffic of one data stream into the portion
// that can overlap with compute and the portion that cannot.
type MemoryStats struct {
	DramParallel    uint32
	DramNonParallel uint32
	// Sram is set instead of the Dram fields when the stream never leaves
	// on-chip memory.
	Sram uint32
}

// InputStats describes the traffic feeding one input of a pass.
type InputStats struct {
	StripesStats StripesStats
	MemoryStats  MemoryStats
}

// Add accumulates another input stream, for passes with several inputs.
func (s *InputStats) Add(o InputStats) {
	s.StripesStats.NumCentralStripes += o.StripesStats.NumCentralStripes
	s.StripesStats.NumBoundaryStripes += o.StripesStats.NumBoundaryStripes
	s.StripesStats.NumReloads += o.StripesStats.NumReloads
	s.MemoryStats.DramParallel += o.MemoryStats.DramParallel
	s.MemoryStats.DramNonParallel += o.MemoryStats.DramNonParallel
	s.MemoryStats.Sram += o.MemoryStats.Sram
}

// OutputStats describes the traffic draining the output of a pass.
type OutputStats = InputStats

// WeightsStats describes the weight stream of a pass.
type WeightsStats struct {
	StripesStats StripesStats
	MemoryStats  MemoryStats
	// CompressionSavings is the measured or assumed space saving of the
	// encoded weight stream, in [0, 1).
	CompressionSavings float64
}

// MceStats is the compute cost of the MCE portion of a pass.
type MceStats struct {
	CycleCount uint64
	// Operations is the MAC count, double-counted for multiply and add.
	Operations uint64
}

// PleStats is the compute cost of the PLE portion of a pass.
type PleStats struct {
	NumPatches uint32
	CycleCount uint64
}

// PassStats gathers the per-stream and per-unit stats of a single pass.
type PassStats struct {
	Input   InputStats
	Output  OutputStats
	Weights WeightsStats
	Mce     MceStats
	Ple     PleStats
}

// PassDebugStats records the intermediate terms of the metric calculation
// so they can be dumped alongside the final number.
type PassDebugStats struct {
	NumInputStripes        uint32
	InputBytes             float64
	InputCycles            float64
	InputParallelCycles    float64
	InputNonParallelCycles float64

	NumWeightStripes        uint32
	WeightBytes             float64
	WeightCycles            float64
	WeightParallelCycles    float64
	WeightNonParallelCycles float64

	DmaReadParallelCycles    float64
	DmaReadNonParallelCycles float64

	NumOutputStripes        uint32
	OutputBytes             float64
	OutputCycles            float64
	OutputParallelCycles    float64
	OutputNonParallelCycles float64

	DmaWriteParallelCycles    float64
	DmaWriteNonParallelCycles float64

	MceCycles     float64
	NumMceStripes uint32
	PleCycles     float64
	NumPleStripes uint32

	Valid bool
}
