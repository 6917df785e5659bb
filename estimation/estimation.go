// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package estimation

import (
	"github.com/pkg/errors"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// EstimatedPass is the cost of one pass: an MCE and/or PLE op with the DMA
// ops feeding and draining it, or a pure DMA conversion.
type EstimatedPass struct {
	// Metric is the estimated cycle count for this pass.
	Metric float64
	// DebugStats holds the intermediate terms behind Metric.
	DebugStats PassDebugStats
	// Ops included in this pass.
	Ops []opgraph.Op

	Stats PassStats

	// EstimateOnlyReason is non-empty when this pass could not be modeled
	// properly and its metric is a degraded-confidence guess.
	EstimateOnlyReason string
}

// EstimatedOpGraph is the result of estimating a whole op graph.
type EstimatedOpGraph struct {
	// Metric is the aggregated cycle count for the entire graph.
	Metric float64
	Passes []EstimatedPass
	// OpToPass maps each op to the index of the pass it was estimated in.
	OpToPass map[opgraph.Op]uint32
}

func isFcaf(format opgraph.BufferFormat) bool {
	return format == opgraph.BufferFormatFcafDeep || format == opgraph.BufferFormatFcafWide
}

// estimatePassGrownFrom estimates a pass containing the given MCE or PLE op
// and the neighbouring DMA ops, removing everything it includes from
// unestimated.
func estimatePassGrownFrom(g *opgraph.OpGraph, op opgraph.Op,
	caps *capabilities.Capabilities, estOpt *options.EstimationOptions,
	unestimated map[opgraph.Op]bool) (EstimatedPass, error) {
	var pass EstimatedPass
	var stats PassStats

	var mceOpIface, pleOpIface opgraph.Op
	mce := op.Mce()
	ple := op.Ple()
	if mce != nil {
		mceOpIface = op
		// An MCE op must feed a PLE op through PLE input SRAM.
		mceOutput := g.GetOutput(op)
		if mceOutput == nil || mceOutput.Base().Location != opgraph.LocationPleInputSram {
			return pass, errors.New("MCE op must output into PLE input SRAM")
		}
		consumers := g.GetConsumers(mceOutput)
		if len(consumers) != 1 {
			return pass, errors.New("MCE op output must have exactly one consumer")
		}
		pleOpIface = consumers[0].Op
		ple = pleOpIface.Ple()
		if ple == nil || !unestimated[pleOpIface] {
			return pass, errors.New("MCE op output consumer must be an unestimated PLE op")
		}
	} else {
		pleOpIface = op
		// A lone PLE op may still have an MCE op in front of it.
		if inputs := g.GetInputs(op); len(inputs) == 1 {
			if producers := g.GetProducers(inputs[0]); len(producers) == 1 && producers[0].Mce() != nil {
				if !unestimated[producers[0]] {
					return pass, errors.New("MCE op feeding a PLE op estimated in another pass")
				}
				mceOpIface = producers[0]
				mce = mceOpIface.Mce()
			}
		}
	}

	// Default weights shape for PLE-only passes.
	weightsShape := shapes.TensorShape{1, 1, 1, 1}
	var desc PassDesc

	if mce != nil {
		stats.Mce = GetMceStats(caps, mce)

		inputs := g.GetInputs(mceOpIface)
		if len(inputs) != 2 {
			return pass, errors.Errorf("MCE op must have 2 inputs, got %d", len(inputs))
		}
		inputSram := inputs[0].Sram()
		weightsSram := inputs[1].Sram()
		if inputSram == nil || weightsSram == nil {
			return pass, errors.New("MCE op inputs must be in SRAM")
		}
		producers := g.GetProducers(inputs[1])
		if len(producers) != 1 || producers[0].Dma() == nil || !unestimated[producers[0]] {
			return pass, errors.New("weights must be DMA'd into SRAM")
		}
		weightsDmaIface := producers[0]
		dmaInputs := g.GetInputs(weightsDmaIface)
		if len(dmaInputs) != 1 || dmaInputs[0].Dram() == nil {
			return pass, errors.New("weights must be DMA'd from DRAM")
		}
		if len(g.GetProducers(dmaInputs[0])) != 0 {
			return pass, errors.New("weights DRAM buffer must not have a producer")
		}
		weightsDram := dmaInputs[0].Dram()

		weightsShape = weightsDram.TensorShape
		stats.Weights = GetWeightsStats(weightsDram, weightsSram, inputSram, estOpt)

		delete(unestimated, weightsDmaIface)
		pass.Ops = append(pass.Ops, weightsDmaIface)
		delete(unestimated, mceOpIface)
		pass.Ops = append(pass.Ops, mceOpIface)

		desc.Mce = mce
		desc.Input0Sram = inputSram
		pleInput := g.GetOutput(mceOpIface)
		desc.PleInputSram = pleInput.PleInputSram()
	}

	delete(unestimated, pleOpIface)
	pass.Ops = append(pass.Ops, pleOpIface)
	desc.Ple = ple

	frontOp := pleOpIface
	if mce != nil {
		frontOp = mceOpIface
	}

	sramOutput := g.GetOutput(pleOpIface)
	if sramOutput == nil || sramOutput.Sram() == nil {
		return pass, errors.New("PLE op output must be in SRAM")
	}
	desc.OutputSram = sramOutput.Sram()

	// Input stats, absorbing any DMA op in front of each input.
	var pleInputShapes []shapes.TensorShape
	for inputIdx, input := range g.GetInputs(frontOp) {
		if frontOp == mceOpIface && inputIdx > 0 {
			// The second MCE input is the weights, handled above.
			break
		}
		inputSram := input.Sram()
		if inputSram == nil {
			return pass, errors.New("compute op input must be in SRAM")
		}
		if desc.Input0Sram == nil {
			desc.Input0Sram = inputSram
		}

		var inputDram *opgraph.DramBuffer
		if producers := g.GetProducers(input); len(producers) == 1 &&
			producers[0].Dma() != nil && unestimated[producers[0]] {
			dmaIface := producers[0]
			dmaInputs := g.GetInputs(dmaIface)
			if len(dmaInputs) != 1 {
				return pass, errors.New("DMA op must have exactly one input")
			}
			inputDram = dmaInputs[0].Dram()
			if inputDram == nil {
				return pass, errors.New("compute op input must be DMA'd from DRAM")
			}
			delete(unestimated, dmaIface)
			pass.Ops = append(pass.Ops, dmaIface)
		}

		inStats := GetInputStats(inputSram, weightsShape, inputDram)
		if inputDram != nil {
			inStats.StripesStats = AccountForDmaChunking(inStats.StripesStats, inputSram, inputDram, false)
			if isFcaf(inputDram.Format) {
				inStats = AccountForActivationCompression(inStats, estOpt.ActivationCompressionSaving)
			}
		}
		stats.Input.Add(inStats)
	}
	for _, input := range g.GetInputs(pleOpIface) {
		pleInputShapes = append(pleInputShapes, input.Base().TensorShape)
	}
	stats.Ple = GetPleStats(caps, pleInputShapes, sramOutput.Base().TensorShape, ple)

	// Output stats, absorbing a DMA op draining the output.
	var outputDram *opgraph.DramBuffer
	if consumers := g.GetConsumers(sramOutput); len(consumers) == 1 &&
		consumers[0].Op.Dma() != nil && unestimated[consumers[0].Op] {
		dmaIface := consumers[0].Op
		dmaOutput := g.GetOutput(dmaIface)
		if dmaOutput == nil || dmaOutput.Dram() == nil {
			return pass, errors.New("output DMA op must write to DRAM")
		}
		outputDram = dmaOutput.Dram()
		delete(unestimated, dmaIface)
		pass.Ops = append(pass.Ops, dmaIface)
	}
	outStats := GetOutputStats(desc.OutputSram, outputDram)
	if outputDram != nil {
		outStats.StripesStats = AccountForDmaChunking(outStats.StripesStats, desc.OutputSram, outputDram, true)
		if isFcaf(outputDram.Format) {
			outStats = AccountForActivationCompression(outStats, estOpt.ActivationCompressionSaving)
		}
	}
	stats.Output = outStats

	pass.Stats = stats
	pass.Metric = CalculateMetric(stats, desc, &pass.DebugStats)
	return pass, nil
}

// estimateConversionPassGrownFrom estimates a pass that is a pure copy
// between two DRAM buffers through an intermediate SRAM buffer.
func estimateConversionPassGrownFrom(g *opgraph.OpGraph, op opgraph.Op,
	unestimated map[opgraph.Op]bool) (EstimatedPass, bool) {
	var pass EstimatedPass

	inputs := g.GetInputs(op)
	// When grown from the SRAM-to-DRAM half of the chain, step back to the
	// DRAM-to-SRAM half first.
	if len(inputs) == 1 && inputs[0].Sram() != nil {
		if producers := g.GetProducers(inputs[0]); len(producers) == 1 &&
			producers[0].Dma() != nil && unestimated[producers[0]] {
			op = producers[0]
			inputs = g.GetInputs(op)
		}
	}
	if len(inputs) != 1 || inputs[0].Dram() == nil {
		return pass, false
	}
	inputDram := inputs[0].Dram()
	mid := g.GetOutput(op)
	if mid == nil || mid.Sram() == nil {
		return pass, false
	}
	consumers := g.GetConsumers(mid)
	if len(consumers) != 1 || consumers[0].Op.Dma() == nil || !unestimated[consumers[0].Op] {
		return pass, false
	}
	secondDma := consumers[0].Op
	out := g.GetOutput(secondDma)
	if out == nil || out.Dram() == nil {
		return pass, false
	}
	outputDram := out.Dram()

	delete(unestimated, op)
	delete(unestimated, secondDma)
	pass.Ops = append(pass.Ops, op, secondDma)

	pass.Stats = GetConversionStats(inputDram, outputDram, mid.Sram().StripeShape)
	pass.Metric = CalculateMetric(pass.Stats, PassDesc{}, &pass.DebugStats)
	return pass, true
}

// estimateEstimateOnlyPass gives a degraded-confidence estimate for an op
// the performance model cannot represent, assuming its inputs and outputs
// each cross DRAM once.
func estimateEstimateOnlyPass(g *opgraph.OpGraph, op opgraph.Op,
	unestimated map[opgraph.Op]bool) EstimatedPass {
	var pass EstimatedPass
	pass.EstimateOnlyReason = op.EstimateOnly().Reason

	for _, input := range g.GetInputs(op) {
		pass.Stats.Input.MemoryStats.DramNonParallel += input.Base().TensorShape.NumElements()
		pass.Stats.Input.StripesStats.NumCentralStripes++
	}
	if out := g.GetOutput(op); out != nil {
		pass.Stats.Output.MemoryStats.DramNonParallel = out.Base().TensorShape.NumElements()
		pass.Stats.Output.StripesStats.NumCentralStripes = 1
	}

	delete(unestimated, op)
	pass.Ops = append(pass.Ops, op)
	pass.Metric = CalculateMetric(pass.Stats, PassDesc{}, &pass.DebugStats)
	return pass
}

// EstimateOpGraph splits the graph into passes and estimates each one. Pass
// grouping and the resulting metric depend only on the graph contents, so
// identical inputs give identical results.
func EstimateOpGraph(g *opgraph.OpGraph, caps *capabilities.Capabilities,
	estOpt *options.EstimationOptions) (EstimatedOpGraph, error) {
	result := EstimatedOpGraph{OpToPass: make(map[opgraph.Op]uint32)}

	unestimated := make(map[opgraph.Op]bool, len(g.Ops()))
	for _, op := range g.Ops() {
		unestimated[op] = true
	}

	addPass := func(pass EstimatedPass) {
		for _, op := range pass.Ops {
			result.OpToPass[op] = uint32(len(result.Passes))
		}
		result.Passes = append(result.Passes, pass)
	}

	// Grow a pass around every MCE/PLE op, in graph order.
	for _, op := range g.Ops() {
		if !unestimated[op] {
			continue
		}
		if op.Mce() != nil || op.Ple() != nil {
			pass, err := estimatePassGrownFrom(g, op, caps, estOpt, unestimated)
			if err != nil {
				return result, errors.Wrapf(err, "estimating pass grown from %q", op.Base().DebugTag)
			}
			addPass(pass)
		}
	}

	// Whatever DMA ops are left must form DRAM-to-DRAM conversions.
	for _, op := range g.Ops() {
		if !unestimated[op] {
			continue
		}
		switch {
		case op.Dma() != nil:
			if pass, ok := estimateConversionPassGrownFrom(g, op, unestimated); ok {
				addPass(pass)
			}
		case op.EstimateOnly() != nil:
			addPass(estimateEstimateOnlyPass(g, op, unestimated))
		}
	}

	if len(unestimated) > 0 {
		for _, op := range g.Ops() {
			if unestimated[op] {
				return result, errors.Errorf("op %q could not be assigned to any pass", op.Base().DebugTag)
			}
		}
	}

	metrics := make([]float64, len(result.Passes))
	for i, pass := range result.Passes {
		metrics[i] = pass.Metric
	}
	if estOpt.MetricAggregation != nil {
		result.Metric = estOpt.MetricAggregation(metrics)
	} else {
		for _, m := range metrics {
			result.Metric += m
		}
	}
	return result, nil
}
