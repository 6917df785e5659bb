// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package estimation

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// PassDesc identifies the ops and SRAM buffers of one pass, so the metric
// calculation can derive stripe counts without re-walking the graph.
type PassDesc struct {
	Input0Sram   *opgraph.SramBuffer
	PleInputSram *opgraph.PleInputSramBuffer
	OutputSram   *opgraph.SramBuffer

	Mce *opgraph.MceOp
	Ple *opgraph.PleOp
}

const (
	perStripeOverheadCycles   = 100.0
	perStripeMinimumCycles    = 2500.0
	perDmaStripeMinimumCycles = 2500.0

	// Bytes the DMA transfers per cycle of the MCE/PLE clock.
	dmaBytesPerCycle = 16.0
)

// dmaCycles models one DMA stream and splits its cycles into the portion
// overlapping with compute and the rest.
func dmaCycles(mem MemoryStats, stripes StripesStats) (numStripes uint32, bytes, cycles, parallel, nonParallel float64) {
	numStripes = stripes.NumCentralStripes * (stripes.NumReloads + 1)
	bytes = float64(mem.DramParallel) + float64(mem.DramNonParallel)
	cycles = shapes.Max(bytes/dmaBytesPerCycle+float64(numStripes)*perStripeOverheadCycles,
		perDmaStripeMinimumCycles*float64(numStripes))
	if bytes != 0 {
		parallel = cycles * (float64(mem.DramParallel) / bytes)
	}
	nonParallel = cycles - parallel
	return
}

// CalculateMetric reduces one pass to an estimated cycle count. The four
// hardware units (DMA read, DMA write, MCE, PLE) run in parallel with each
// other, except for the DMA traffic that dependencies force to be serial.
func CalculateMetric(stats PassStats, passDesc PassDesc, debug *PassDebugStats) float64 {
	numInputStripes, inputBytes, inputCycles, inputParallel, inputNonParallel :=
		dmaCycles(stats.Input.MemoryStats, stats.Input.StripesStats)
	numWeightStripes, weightBytes, weightCycles, weightParallel, weightNonParallel :=
		dmaCycles(stats.Weights.MemoryStats, stats.Weights.StripesStats)

	dmaReadParallelCycles := inputParallel + weightParallel
	dmaReadNonParallelCycles := inputNonParallel + weightNonParallel

	numOutputStripes, outputBytes, outputCycles, outputParallel, outputNonParallel :=
		dmaCycles(stats.Output.MemoryStats, stats.Output.StripesStats)

	dmaWriteParallelCycles := outputParallel
	dmaWriteNonParallelCycles := outputNonParallel

	mceCycles := 0.0
	var numMceStripes uint32
	if passDesc.Mce != nil {
		ifmStripes := shapes.DivRoundUp(passDesc.Input0Sram.TensorShape.Channels(),
			passDesc.Mce.InputStripeShape.Channels())
		if passDesc.Mce.Operation == opgraph.MceOperationDepthwiseConvolution {
			ifmStripes = 1
		}
		numMceStripes = ifmStripes *
			shapes.DivRoundUp(passDesc.PleInputSram.TensorShape.Channels(),
				passDesc.Mce.OutputStripeShape.Channels()) *
			shapes.DivRoundUp(passDesc.PleInputSram.TensorShape.Width(),
				passDesc.Mce.OutputStripeShape.Width()) *
			shapes.DivRoundUp(passDesc.PleInputSram.TensorShape.Height(),
				passDesc.Mce.OutputStripeShape.Height())

		mceCycles = shapes.Max(
			float64(stats.Mce.CycleCount)+float64(numMceStripes)*perStripeOverheadCycles,
			perStripeMinimumCycles*float64(numMceStripes))
	}

	pleCycles := 0.0
	var numPleStripes uint32
	if passDesc.Ple != nil {
		perPleStripeOverhead := float64(pleStripeOverhead(passDesc.Ple.Kernel))
		numPleStripes = shapes.DivRoundUp(passDesc.OutputSram.TensorShape.Channels(),
			passDesc.Ple.OutputStripeShape.Channels()) *
			shapes.DivRoundUp(passDesc.OutputSram.TensorShape.Width(),
				passDesc.Ple.OutputStripeShape.Width()) *
			shapes.DivRoundUp(passDesc.OutputSram.TensorShape.Height(),
				passDesc.Ple.OutputStripeShape.Height())

		pleCycles = shapes.Max(
			float64(stats.Ple.CycleCount)+float64(numPleStripes)*perPleStripeOverhead,
			perStripeMinimumCycles*float64(numPleStripes))
	}

	metric := dmaReadNonParallelCycles + dmaWriteNonParallelCycles +
		shapes.Max(shapes.Max(dmaReadParallelCycles, dmaWriteParallelCycles),
			shapes.Max(mceCycles, pleCycles))

	if debug != nil {
		debug.NumInputStripes = numInputStripes
		debug.InputBytes = inputBytes
		debug.InputCycles = inputCycles
		debug.InputParallelCycles = inputParallel
		debug.InputNonParallelCycles = inputNonParallel
		debug.NumWeightStripes = numWeightStripes
		debug.WeightBytes = weightBytes
		debug.WeightCycles = weightCycles
		debug.WeightParallelCycles = weightParallel
		debug.WeightNonParallelCycles = weightNonParallel
		debug.DmaReadParallelCycles = dmaReadParallelCycles
		debug.DmaReadNonParallelCycles = dmaReadNonParallelCycles
		debug.NumOutputStripes = numOutputStripes
		debug.OutputBytes = outputBytes
		debug.OutputCycles = outputCycles
		debug.OutputParallelCycles = outputParallel
		debug.OutputNonParallelCycles = outputNonParallel
		debug.DmaWriteParallelCycles = dmaWriteParallelCycles
		debug.DmaWriteNonParallelCycles = dmaWriteNonParallelCycles
		debug.MceCycles = mceCycles
		debug.NumMceStripes = numMceStripes
		debug.PleCycles = pleCycles
		debug.NumPleStripes = numPleStripes
		debug.Valid = true
	}

	return metric
}
