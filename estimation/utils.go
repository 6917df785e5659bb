// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package estimation

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// effectiveSize is the size of one dimension including the boundary data
// re-fetched around every stripe edge.
func effectiveSize(size, stripeSize, borderBefore, borderAfter uint32) uint32 {
	return size + (borderBefore+borderAfter)*((size-1)/stripeSize)
}

// GetInputStats models the DMA read traffic feeding an MCE or PLE input.
// dram is the buffer the data is fetched from, or nil when the input is
// already resident in SRAM.
func GetInputStats(ifm *opgraph.SramBuffer, weightsShape shapes.TensorShape,
	dram *opgraph.DramBuffer) InputStats {
	var data InputStats

	if dram == nil {
		data.MemoryStats.Sram = ifm.TensorShape.NumElements()
		return data
	}

	numStripes := shapes.GetNumStripesTotal(ifm.TensorShape, ifm.StripeShape)
	data.StripesStats.NumReloads = ifm.NumLoads - 1

	// Total traffic including reloads and packed boundary data. Partial
	// stripes make numStripes*slotSize an overestimate, so work from the
	// tensor shape instead.
	effectiveHeight := effectiveSize(ifm.TensorShape.Height(), ifm.StripeShape.Height(),
		ifm.PackedBoundary.Top, ifm.PackedBoundary.Bottom)
	effectiveWidth := effectiveSize(ifm.TensorShape.Width(), ifm.StripeShape.Width(),
		ifm.PackedBoundary.Left, ifm.PackedBoundary.Right)
	if dram.Format != opgraph.BufferFormatNhwc {
		effectiveHeight = shapes.RoundUpToMultiple(effectiveHeight, 8)
		effectiveWidth = shapes.RoundUpToMultiple(effectiveWidth, 8)
	}
	total := ifm.NumLoads * ifm.TensorShape.Batch() * effectiveHeight * effectiveWidth *
		ifm.TensorShape.Channels()

	// Traffic for a single stripe, again accounting for partial stripes.
	stripeHeight := shapes.Min(ifm.TensorShape.Height(), ifm.StripeShape.Height())
	stripeWidth := shapes.Min(ifm.TensorShape.Width(), ifm.StripeShape.Width())
	stripeChannels := shapes.Min(ifm.TensorShape.Channels(), ifm.StripeShape.Channels())
	if dram.Format != opgraph.BufferFormatNhwc {
		stripeHeight = shapes.RoundUpToMultiple(stripeHeight, 8)
		stripeWidth = shapes.RoundUpToMultiple(stripeWidth, 8)
	}
	stripeBytes := stripeHeight * stripeWidth * stripeChannels

	boundaryStripesNeeded :=
		(weightsShape.Height() > 1 && ifm.StripeShape.Height() < ifm.TensorShape.Height()) ||
			(weightsShape.Width() > 1 && ifm.StripeShape.Width() < ifm.TensorShape.Width())

	// Minimum data needed before processing can start, as a conservative
	// overestimate assuming non-partial stripes.
	numStripesToStart := uint32(1)
	if boundaryStripesNeeded {
		numStripesToStart = 2
	}
	bytesToStart := shapes.Min(numStripesToStart*stripeBytes, total)

	numStripesPerOfmStripe := uint32(1)
	if boundaryStripesNeeded {
		numStripesPerOfmStripe = 3
	}
	minNumSlotsForBuffering := numStripesPerOfmStripe + 1

	if ifm.NumStripes >= minNumSlotsForBuffering {
		data.MemoryStats.DramNonParallel = bytesToStart
		data.MemoryStats.DramParallel = total - bytesToStart
	} else {
		data.MemoryStats.DramNonParallel = total
	}

	data.StripesStats.NumCentralStripes = numStripes
	return data
}

// GetOutputStats models the DMA write traffic draining a pass output.
// dram is nil when the output stays in SRAM.
func GetOutputStats(ofm *opgraph.SramBuffer, dram *opgraph.DramBuffer) OutputStats {
	var data OutputStats

	shape := ofm.TensorShape
	if dram != nil && dram.Format != opgraph.BufferFormatNhwc {
		shape = shapes.RoundUpHeightAndWidthToBrickGroup(shape)
	}

	stripeShapeValid := shapes.TensorShape{
		shapes.Min(ofm.StripeShape[0], shape[0]),
		shapes.Min(ofm.StripeShape[1], shape[1]),
		shapes.Min(ofm.StripeShape[2], shape[2]),
		shapes.Min(ofm.StripeShape[3], shape[3]),
	}
	stripeSize := stripeShapeValid.NumElements()
	total := shape.NumElements()

	if dram == nil {
		data.MemoryStats.Sram = total
		return data
	}

	if ofm.NumStripes >= 2 {
		// Only the final stripe has to be waited for.
		data.MemoryStats.DramNonParallel = stripeSize
		data.MemoryStats.DramParallel = total - stripeSize
	} else {
		data.MemoryStats.DramNonParallel = total
	}
	data.StripesStats.NumCentralStripes = shapes.GetNumStripesTotal(shape, ofm.StripeShape)
	return data
}

// pleCyclesPerPatch was estimated from internal benchmarks on the model.
func pleCyclesPerPatch(kernel opgraph.PleKernel) uint32 {
	switch kernel {
	case opgraph.PleKernelAddition:
		return 15
	case opgraph.PleKernelAdditionRescale:
		return 35
	case opgraph.PleKernelAvgPool3x3:
		return 97
	case opgraph.PleKernelDownsample2x2:
		return 10
	case opgraph.PleKernelInterleave:
		return 13
	case opgraph.PleKernelMaxPool2x2:
		return 13
	case opgraph.PleKernelMaxPool3x3:
		return 37
	case opgraph.PleKernelMeanXy:
		return 37
	case opgraph.PleKernelPassthrough:
		return 6
	case opgraph.PleKernelLeakyRelu:
		return 37
	case opgraph.PleKernelSigmoid:
		return 41
	case opgraph.PleKernelTranspose:
		return 14
	default:
		return 0
	}
}

func pleStripeOverhead(kernel opgraph.PleKernel) uint32 {
	switch kernel {
	case opgraph.PleKernelAddition, opgraph.PleKernelAdditionRescale:
		return 1500
	default:
		return 100
	}
}

// pleHasBlockConfig reports whether the kernel is driven block by block.
// Standalone kernels and addition have no per-block overhead.
func pleHasBlockConfig(ple *opgraph.PleOp) bool {
	return ple.Kernel != opgraph.PleKernelAddition &&
		ple.Kernel != opgraph.PleKernelAdditionRescale &&
		ple.BlockConfig.Width != 0 && ple.BlockConfig.Height != 0
}

// GetPleStats models the PLE compute cost for the given input shapes.
func GetPleStats(caps *capabilities.Capabilities, inputShapes []shapes.TensorShape,
	outputShape shapes.TensorShape, ple *opgraph.PleOp) PleStats {
	var stats PleStats

	var patchesH, patchesW, patchesC uint32
	hasBlockConfig := pleHasBlockConfig(ple)
	patch := caps.PatchShape()

	for _, inputShape := range inputShapes {
		effectiveHeight := inputShape.Height()
		effectiveWidth := inputShape.Width()
		// The PLE always processes whole blocks, even partial ones.
		if hasBlockConfig {
			effectiveHeight = shapes.RoundUpToMultiple(effectiveHeight, ple.BlockConfig.Height)
			effectiveWidth = shapes.RoundUpToMultiple(effectiveWidth, ple.BlockConfig.Width)
		}
		patchesH = shapes.Max(shapes.DivRoundUp(effectiveHeight, patch.Height()), patchesH)
		patchesW = shapes.Max(shapes.DivRoundUp(effectiveWidth, patch.Width()), patchesW)
		patchesC = shapes.Max(
			shapes.DivRoundUp(inputShape.Channels(), caps.NumberOfEngines()*caps.NumPleLanes()),
			patchesC)
	}

	stats.NumPatches = patchesH * patchesW * patchesC

	var blockOverhead uint64
	if hasBlockConfig {
		numBlocks := uint64(shapes.DivRoundUp(outputShape.Height(), ple.BlockConfig.Height)) *
			uint64(shapes.DivRoundUp(outputShape.Width(), ple.BlockConfig.Width)) *
			uint64(patchesC)
		const overheadPerBlock = 10
		blockOverhead = overheadPerBlock * numBlocks
	}
	stats.CycleCount = uint64(stats.NumPatches)*uint64(pleCyclesPerPatch(ple.Kernel)) + blockOverhead

	return stats
}

// GetConversionStats models a format conversion pass: a copy between two
// DRAM buffers through an intermediate SRAM buffer.
func GetConversionStats(input, output *opgraph.DramBuffer, stripeShape shapes.TensorShape) PassStats {
	var stats PassStats

	inputSize := input.TensorShape.NumElements()
	if input.Format != opgraph.BufferFormatNhwc {
		inputSize = shapes.RoundUpHeightAndWidthToBrickGroup(input.TensorShape).NumElements()
	}
	outputSize := output.TensorShape.NumElements()
	if output.Format != opgraph.BufferFormatNhwc {
		outputSize = shapes.RoundUpHeightAndWidthToBrickGroup(output.TensorShape).NumElements()
	}

	stats.Input.MemoryStats.DramNonParallel = inputSize
	stats.Input.StripesStats.NumCentralStripes = shapes.GetNumStripesTotal(input.TensorShape, stripeShape)
	stats.Output.MemoryStats.DramNonParallel = outputSize
	stats.Output.StripesStats.NumCentralStripes = shapes.GetNumStripesTotal(output.TensorShape, stripeShape)
	return stats
}

// AccountForActivationCompression scales the DRAM traffic of a stream by
// the assumed compression saving.
func AccountForActivationCompression(stats InputStats, spaceSavingRatio float64) InputStats {
	ret := stats
	ret.MemoryStats.DramNonParallel =
		uint32(float64(stats.MemoryStats.DramNonParallel) * (1 - spaceSavingRatio))
	ret.MemoryStats.DramParallel =
		uint32(float64(stats.MemoryStats.DramParallel) * (1 - spaceSavingRatio))
	return ret
}

// AccountForDmaChunking inflates the stripe count when an NHWCB transfer
// has to be broken into multiple chunks because the DRAM data is not
// contiguous across the stripe.
func AccountForDmaChunking(stats StripesStats, sram *opgraph.SramBuffer,
	dram *opgraph.DramBuffer, dramStridingAllowed bool) StripesStats {
	result := stats

	if dram.Format != opgraph.BufferFormatNhwcb {
		return result
	}

	brick := shapes.BrickGroupShape
	stripeShape := sram.StripeShape
	supertensorSizeInCells := shapes.TensorShape{
		1,
		shapes.DivRoundUp(dram.TensorShape.Height(), brick.Height()),
		shapes.DivRoundUp(dram.TensorShape.Width(), brick.Width()),
		shapes.DivRoundUp(dram.TensorShape.Channels(), brick.Channels()),
	}

	// Output streaming can use DRAM striding when the stride is consistent,
	// which needs stripes exactly one brick group deep.
	canDramStride := dramStridingAllowed &&
		shapes.DivRoundUp(stripeShape.Channels(), brick.Channels()) == 1 &&
		supertensorSizeInCells.Channels() > 1

	numChunksH := uint32(1)
	numChunksW := uint32(1)

	partialDepth := shapes.DivRoundUp(stripeShape.Channels(), brick.Channels()) <
		supertensorSizeInCells.Channels()
	partialWidth := shapes.DivRoundUp(stripeShape.Width(), brick.Width()) <
		supertensorSizeInCells.Width()

	if partialDepth && !canDramStride {
		numChunksW = shapes.DivRoundUp(stripeShape.Width(), brick.Width())
	}
	if (partialDepth && !canDramStride) || partialWidth {
		numChunksH = shapes.DivRoundUp(stripeShape.Height(), brick.Height())
	}

	result.NumCentralStripes *= numChunksH * numChunksW
	return result
}
