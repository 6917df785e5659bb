// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package estimation

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func macUnitsPerEngine(caps *capabilities.Capabilities) uint32 {
	return caps.MacUnitsPerOg() * caps.OgsPerEngine()
}

func mceCycleCountWinograd(caps *capabilities.Capabilities,
	inputShape, outputShape shapes.TensorShape, weightsHeight, weightsWidth uint32) uint64 {
	ifmConsumed := caps.IgsPerEngine() * caps.NumberOfEngines()
	ofmProduced := caps.OgsPerEngine() * caps.NumberOfEngines()

	// Winograd output size is 2x2 for 2D kernels, 1x2 or 2x1 for 1D.
	winogradOutputH := caps.OutputSizePerWinograd2D()
	if weightsHeight == 1 {
		winogradOutputH = caps.OutputSizePerWinograd1D()
	}
	winogradOutputW := caps.OutputSizePerWinograd2D()
	if weightsWidth == 1 {
		winogradOutputW = caps.OutputSizePerWinograd1D()
	}

	numTotIfms := shapes.RoundUpToMultiple(inputShape.Channels(), ifmConsumed)
	numWinogradOutputs := shapes.DivRoundUp(outputShape.Width(), winogradOutputW) *
		shapes.DivRoundUp(outputShape.Height(), winogradOutputH)

	wideKernelSize := caps.WideKernelSize()
	var numMacsPerElemHW uint64
	if weightsHeight == 1 || weightsWidth == 1 {
		numMacsPerElemHW = uint64(caps.MacsPerWinograd1D()) *
			uint64(shapes.DivRoundUp(weightsWidth*weightsHeight, wideKernelSize))
	} else {
		numMacsPerElemHW = uint64(caps.MacsPerWinograd2D()) *
			uint64(shapes.DivRoundUp(weightsWidth, wideKernelSize)) *
			uint64(shapes.DivRoundUp(weightsHeight, wideKernelSize))
	}

	numMacOps := uint64(numWinogradOutputs) * numMacsPerElemHW
	numCyclesPerOfm := (uint64(numTotIfms) * numMacOps) /
		uint64(ifmConsumed*macUnitsPerEngine(caps))

	return numCyclesPerOfm * uint64(shapes.DivRoundUp(outputShape.Channels(), ofmProduced))
}

func mceCycleCountDirect(caps *capabilities.Capabilities, mce *opgraph.MceOp,
	inputShape, outputShape shapes.TensorShape, weightsHeight, weightsWidth uint32) uint64 {
	numKernelElements := weightsWidth * weightsHeight
	ifmConsumed := caps.IgsPerEngine() * caps.NumberOfEngines()
	ofmProduced := caps.OgsPerEngine() * caps.NumberOfEngines()
	halfPatchH := caps.PatchShape().Height()
	halfPatchW := shapes.DivRoundUp(caps.PatchShape().Width(), 2)
	numActualIfms := inputShape.Channels() / (mce.StrideX * mce.StrideY)

	numIfms := numActualIfms
	numOfms := outputShape.Channels()
	if mce.Operation == opgraph.MceOperationDepthwiseConvolution {
		numIfms = ifmConsumed
		numOfms = numActualIfms
	}

	numTotIfms := shapes.RoundUpToMultiple(numIfms, ifmConsumed)
	numOutputElements := shapes.RoundUpToMultiple(outputShape.Width(), halfPatchW) *
		shapes.RoundUpToMultiple(outputShape.Height(), halfPatchH)

	numMacOps := uint64(numOutputElements) * uint64(numKernelElements)
	numCyclesPerOfm := (uint64(numTotIfms) * numMacOps) /
		uint64(ifmConsumed*macUnitsPerEngine(caps))

	return numCyclesPerOfm * uint64(shapes.DivRoundUp(numOfms, ofmProduced))
}

func mceNumOperations(mce *opgraph.MceOp, inputShape, outputShape shapes.TensorShape,
	weightsHeight, weightsWidth uint32) uint64 {
	numKernelElements := uint64(weightsWidth) * uint64(weightsHeight)
	// Multiply and accumulate both count.
	numOpsPerElement := numKernelElements + numKernelElements
	numActualIfms := uint64(shapes.DivRoundUp(inputShape.Channels(), mce.StrideX*mce.StrideY))
	numInputElements := uint64(inputShape.Height()) * uint64(inputShape.Width())
	numOpsPerIfm := numInputElements * numOpsPerElement

	numIfms := numActualIfms
	numOfms := uint64(outputShape.Channels())
	if mce.Operation == opgraph.MceOperationDepthwiseConvolution {
		numIfms = 1
		numOfms = numActualIfms
	}

	return numIfms * numOpsPerIfm * numOfms
}

// GetMceStats models the MCE compute cost of one pass, working on the
// stripe shapes recorded in the op.
func GetMceStats(caps *capabilities.Capabilities, mce *opgraph.MceOp) MceStats {
	var stats MceStats
	weightsHeight := mce.WeightsStripeShape.Height()
	weightsWidth := mce.WeightsStripeShape.Width()

	if mce.Algorithm == opgraph.MceAlgorithmWinograd {
		stats.CycleCount = mceCycleCountWinograd(caps, mce.InputStripeShape,
			mce.OutputStripeShape, weightsHeight, weightsWidth)
	} else {
		stats.CycleCount = mceCycleCountDirect(caps, mce, mce.InputStripeShape,
			mce.OutputStripeShape, weightsHeight, weightsWidth)
	}
	stats.Operations = mceNumOperations(mce, mce.InputStripeShape, mce.OutputStripeShape,
		weightsHeight, weightsWidth)
	return stats
}

// GetWeightsStats models the weight stream of a pass. The encoded stream
// size is approximated from the raw weight payload and the assumed
// compression saving, since the real encoder runs outside this layer.
func GetWeightsStats(weightsDram *opgraph.DramBuffer, weightsSram *opgraph.SramBuffer,
	inputSram *opgraph.SramBuffer, estOpt *options.EstimationOptions) WeightsStats {
	var stats WeightsStats

	savings := 0.0
	if estOpt.UseWeightCompressionOverride {
		savings = estOpt.WeightCompressionSaving
	}
	encodedBytes := uint32(float64(weightsDram.SizeInBytes) * (1 - savings))

	numStripes := shapes.DivRoundUp(weightsDram.TensorShape.Channels(),
		weightsSram.StripeShape.Channels())
	stats.StripesStats.NumCentralStripes = numStripes
	stats.CompressionSavings = savings

	// Streaming the input in both depth and height forces the weights to be
	// re-fetched for every input stripe row, unless the whole stream fits
	// in the tile.
	numStripesH := shapes.GetNumStripesH(inputSram.TensorShape, inputSram.StripeShape)
	numStripesW := shapes.GetNumStripesW(inputSram.TensorShape, inputSram.StripeShape)
	numStripesC := shapes.GetNumStripesC(inputSram.TensorShape, inputSram.StripeShape)
	isStreamingHC := numStripesH > 1 && numStripesW == 1 && numStripesC > 1
	if isStreamingHC && weightsSram.SizeInBytes < encodedBytes {
		stats.StripesStats.NumReloads = numStripesW*numStripesH - 1
	}

	buffering := weightsSram.SizeInBytes > weightsSram.SlotSizeInBytes
	if buffering {
		// One weight stripe must land before processing starts.
		firstStripeBytes := shapes.DivRoundUp(encodedBytes, numStripes)
		stats.MemoryStats.DramNonParallel = firstStripeBytes
		stats.MemoryStats.DramParallel =
			(stats.StripesStats.NumReloads+1)*encodedBytes - firstStripeBytes
	} else {
		stats.MemoryStats.DramNonParallel = (stats.StripesStats.NumReloads + 1) * encodedBytes
	}

	return stats
}
