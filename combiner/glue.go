// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package combiner

import (
	"sort"

	"github.com/gomlx/exceptions"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// AddCopyBetweenBuffers adds the DMA op(s) to copy source into dest.
// Sram <-> Dram copies need a single DMA; Dram -> Dram copies stage through
// an intermediate SRAM buffer. When an external connections object is given
// for an end, the link to that end's buffer is recorded there instead of
// being made inside graph, for buffers that live in a neighbouring plan.
func AddCopyBetweenBuffers(graph *opgraph.OpGraph, source opgraph.Buffer, sourceExternal *GlueConnections,
	dest opgraph.Buffer, destExternal *GlueConnections, caps *capabilities.Capabilities) {

	sourceDram := source.Base().Location == opgraph.LocationDram
	destDram := dest.Base().Location == opgraph.LocationDram

	var sourceDma, destDma *opgraph.DmaOp
	switch {
	case sourceDram != destDram:
		dramFormat := dest.Base().Format
		if sourceDram {
			dramFormat = source.Base().Format
		}
		dma := opgraph.NewDmaOp(dramFormat)
		sourceDma, destDma = dma, dma
		graph.AddOp(dma)
	case sourceDram && destDram:
		sourceDma = opgraph.NewDmaOp(source.Base().Format)
		sramBuffer := parts.MakeGlueIntermediateSramBuffer(dest.Base().TensorShape, dest.Base().Quantization,
			[]opgraph.BufferFormat{dest.Base().Format, source.Base().Format}, caps)
		destDma = opgraph.NewDmaOp(dest.Base().Format)
		graph.AddOp(sourceDma)
		graph.AddOp(destDma)
		graph.AddBuffer(sramBuffer)
		graph.SetProducer(sramBuffer, sourceDma)
		graph.AddConsumer(sramBuffer, destDma, 0)
	default:
		exceptions.Panicf("cannot copy SRAM to SRAM directly: %q to %q",
			source.Base().DebugTag, dest.Base().DebugTag)
	}

	if sourceExternal == nil {
		graph.AddConsumer(source, sourceDma, 0)
	} else {
		sourceExternal.BuffersToOps = append(sourceExternal.BuffersToOps, BufferToOp{source, sourceDma})
	}
	if destExternal == nil {
		graph.AddProducer(dest, destDma)
	} else {
		destExternal.OpsToBuffers = append(destExternal.OpsToBuffers, OpToBuffer{destDma, dest})
	}
}

// gluePartToCombinationSrcToDests synthesizes the glue between one output
// slot of a source part and all its consumers in the combination. DRAM
// buffers created along the way are pooled per format and shared between
// consumers when compatible, so a branch of three SRAM consumers costs one
// DRAM round trip, not three.
func (c *Combiner) gluePartToCombinationSrcToDests(sourcePart parts.Part, comb Combination,
	outputSlotIdx uint32) Combination {

	result := comb.clone()

	outputSlot := parts.PartOutputSlot{PartId: sourcePart.ID(), Index: outputSlotIdx}
	sourcePlan := comb.Elem(sourcePart.ID()).Plan
	producedBuffer := sourcePlan.OutputBuffer(outputSlot)
	if producedBuffer == nil {
		exceptions.Panicf("plan for %q has no output buffer for %v", sourcePart.DebugTag(), outputSlot)
	}

	type consumerEntry struct {
		inputSlot parts.PartInputSlot
		buffer    opgraph.Buffer
	}
	var consumerBuffers []consumerEntry
	for _, inputSlot := range c.graph.GetConnectedInputSlots(outputSlot) {
		plan := comb.Elem(inputSlot.PartId).Plan
		consumerBuffer := plan.InputBuffer(inputSlot)
		if consumerBuffer == nil {
			exceptions.Panicf("plan for part %d has no input buffer for %v", inputSlot.PartId, inputSlot)
		}
		consumerBuffers = append(consumerBuffers, consumerEntry{inputSlot, consumerBuffer})
	}

	// DRAM consumers go first: their buffers can be re-used as glue for the
	// other consumers, saving copies. The sort is stable so the order stays
	// deterministic among equals.
	sort.SliceStable(consumerBuffers, func(i, j int) bool {
		iDram := consumerBuffers[i].buffer.Base().Location == opgraph.LocationDram
		jDram := consumerBuffers[j].buffer.Base().Location == opgraph.LocationDram
		return iDram && !jDram
	})

	// The pool of DRAM buffers available for sharing, one per format.
	// Iterated in format order to keep lookups deterministic.
	dramBuffers := make(map[opgraph.BufferFormat]*opgraph.DramBuffer)
	if dram := producedBuffer.Dram(); dram != nil {
		dramBuffers[dram.Format] = dram
	}

	endingGlue := NewEndingGlue()

	// addNewBuffer adds a DRAM buffer of the given format to the ending glue
	// and the pool, with the DMA(s) filling it from copiedFrom. When the copy
	// source is the plan's own output buffer the link is external; otherwise
	// the source already lives inside the ending glue.
	addNewBuffer := func(format opgraph.BufferFormat, copiedFrom opgraph.Buffer) *opgraph.DramBuffer {
		dramBuffer := opgraph.NewDramBuffer(producedBuffer.Base().TensorShape, format, opgraph.BufferTypeIntermediate)
		dramBuffer.Quantization = producedBuffer.Base().Quantization
		dramBuffer.DebugTag = "Glue " + producedBuffer.Base().DebugTag
		endingGlue.Graph.AddBuffer(dramBuffer)

		var connections *GlueConnections
		if copiedFrom == producedBuffer {
			connections = &endingGlue.ExternalConnections
		}
		AddCopyBetweenBuffers(endingGlue.Graph, copiedFrom, connections, dramBuffer, nil, c.caps)

		dramBuffers[format] = dramBuffer
		return dramBuffer
	}

	// getOrAddCompatibleDramBuffer returns a pooled DRAM buffer all the
	// given SRAM buffers can DMA to or from, adding one if none fits.
	getOrAddCompatibleDramBuffer := func(sramBuffers ...*opgraph.SramBuffer) *opgraph.DramBuffer {
		formats := make([]opgraph.BufferFormat, 0, len(dramBuffers))
		for format := range dramBuffers {
			formats = append(formats, format)
		}
		sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
		for _, format := range formats {
			allCompatible := true
			for _, b := range sramBuffers {
				if !opgraph.IsSramBufferCompatibleWithDramFormat(b, format, shapes.TensorShape{}) {
					allCompatible = false
					break
				}
			}
			if allCompatible {
				return dramBuffers[format]
			}
		}
		withOffsets := make([]opgraph.SramBufferWithOffset, 0, len(sramBuffers))
		for _, b := range sramBuffers {
			withOffsets = append(withOffsets, opgraph.SramBufferWithOffset{Buffer: b})
		}
		format := opgraph.GetBestDramBufferFormat(withOffsets, c.compOpt)
		return addNewBuffer(format, producedBuffer)
	}

	for _, entry := range consumerBuffers {
		inputSlot := entry.inputSlot
		consumerBuffer := entry.buffer
		startingGlue := NewStartingGlue()

		producedDram := producedBuffer.Base().Location == opgraph.LocationDram
		consumerDram := consumerBuffer.Base().Location == opgraph.LocationDram

		switch {
		case !producedDram && consumerDram:
			// An existing pooled buffer of the right format can stand in
			// for the consumer's buffer, but only intermediates can be
			// shared. Output buffers need their own copy.
			pooled, havePooled := dramBuffers[consumerBuffer.Base().Format]
			if havePooled && consumerBuffer.Dram().BufferType == opgraph.BufferTypeIntermediate {
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{consumerBuffer, pooled})
				break
			}
			// A single DMA straight from the producer works when the
			// layouts are compatible, otherwise stage via a compatible
			// pooled DRAM buffer.
			var bufferToCopyFrom opgraph.Buffer = producedBuffer
			if !opgraph.IsSramBufferCompatibleWithDramFormat(producedBuffer.Sram(),
				consumerBuffer.Base().Format, shapes.TensorShape{}) {
				bufferToCopyFrom = getOrAddCompatibleDramBuffer(producedBuffer.Sram())
			}
			if consumerBuffer.Dram().BufferType == opgraph.BufferTypeIntermediate {
				// Make the copy in the ending glue so other consumers can
				// share it, and replace the consumer's buffer with it.
				replacement := addNewBuffer(consumerBuffer.Base().Format, bufferToCopyFrom)
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{consumerBuffer, replacement})
			} else {
				// The copy still goes in the ending glue so the data leaves
				// SRAM before any branching.
				var connections *GlueConnections
				if bufferToCopyFrom == producedBuffer {
					connections = &endingGlue.ExternalConnections
				}
				AddCopyBetweenBuffers(endingGlue.Graph, bufferToCopyFrom, connections,
					consumerBuffer, &startingGlue.ExternalConnections, c.caps)
			}

		case producedDram && !consumerDram:
			var dramBufferToCopyFrom opgraph.Buffer = producedBuffer
			if !opgraph.IsSramBufferCompatibleWithDramFormat(consumerBuffer.Sram(),
				producedBuffer.Base().Format, shapes.TensorShape{}) {
				dramBufferToCopyFrom = getOrAddCompatibleDramBuffer(consumerBuffer.Sram())
			}
			AddCopyBetweenBuffers(startingGlue.Graph, dramBufferToCopyFrom, &startingGlue.ExternalConnections,
				consumerBuffer, &startingGlue.ExternalConnections, c.caps)

		case !producedDram && !consumerDram:
			// SRAM to SRAM outside a cascade always bounces through DRAM.
			dramBufferToCopyFrom := getOrAddCompatibleDramBuffer(producedBuffer.Sram(), consumerBuffer.Sram())
			AddCopyBetweenBuffers(startingGlue.Graph, dramBufferToCopyFrom, &startingGlue.ExternalConnections,
				consumerBuffer, &startingGlue.ExternalConnections, c.caps)

		default: // Dram -> Dram
			pooled, havePooled := dramBuffers[consumerBuffer.Base().Format]
			producedType := producedBuffer.Dram().BufferType
			consumerType := consumerBuffer.Dram().BufferType
			if havePooled && consumerType == opgraph.BufferTypeIntermediate {
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{consumerBuffer, pooled})
			} else if len(consumerBuffers) == 1 && consumerType == opgraph.BufferTypeOutput &&
				producedType == opgraph.BufferTypeIntermediate &&
				consumerBuffer.Base().Format == producedBuffer.Base().Format &&
				consumerBuffer.Base().Quantization == producedBuffer.Base().Quantization &&
				consumerBuffer.Base().TensorShape == producedBuffer.Base().TensorShape &&
				consumerBuffer.Base().SizeInBytes == producedBuffer.Base().SizeInBytes {
				// An intermediate flowing straight into a network output can
				// become the output buffer itself, dropping the copy. Only
				// done for the single-consumer case: with branches the merge
				// could invalidate other consumers' glue.
				merged := opgraph.NewDramBuffer(consumerBuffer.Base().TensorShape,
					consumerBuffer.Base().Format, consumerType)
				merged.Quantization = consumerBuffer.Base().Quantization
				merged.SizeInBytes = consumerBuffer.Base().SizeInBytes
				merged.DebugTag = "Merged " + consumerBuffer.Base().DebugTag
				merged.OperationID = consumerBuffer.Dram().OperationID
				merged.ProducerOutputIndex = consumerBuffer.Dram().ProducerOutputIndex
				endingGlue.Graph.AddBuffer(merged)

				endingGlue.ExternalConnections.ReplacementBuffers = append(
					endingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{producedBuffer, merged})
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{consumerBuffer, merged})
			} else if consumerType == opgraph.BufferTypeIntermediate {
				replacement := addNewBuffer(consumerBuffer.Base().Format, producedBuffer)
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{consumerBuffer, replacement})
			} else {
				// Output buffers cannot be read back, so they get a copy of
				// their own.
				AddCopyBetweenBuffers(endingGlue.Graph, producedBuffer, &endingGlue.ExternalConnections,
					consumerBuffer, &startingGlue.ExternalConnections, c.caps)
			}
		}

		result.SetStartingGlue(startingGlue, inputSlot)
	}

	result.SetEndingGlue(endingGlue, outputSlot)
	return result
}

// addTempGlues attaches a throwaway DRAM hop to every unglued SRAM boundary
// of a partial combination, so the op graph is complete enough to estimate.
// The chosen DRAM formats may differ from the final compilation, which does
// not know yet what the other users of each boundary will need.
func (c *Combiner) addTempGlues(combination Combination) Combination {
	result := combination.clone()
	for partId := result.FirstPartId(); partId < result.EndPartId(); partId++ {
		elem := result.Elem(partId)
		plan := elem.Plan

		for _, inputSlot := range c.graph.GetPartInputs(partId) {
			if _, ok := elem.StartingGlues[inputSlot]; ok {
				continue
			}
			buffer := plan.InputBuffer(inputSlot)
			startingGlue := NewStartingGlue()
			if buffer.Base().Location == opgraph.LocationSram {
				format := opgraph.GetBestDramBufferFormat(
					[]opgraph.SramBufferWithOffset{{Buffer: buffer.Sram()}}, c.compOpt)
				dramBuffer := opgraph.NewDramBuffer(buffer.Base().TensorShape, format, opgraph.BufferTypeIntermediate)
				dramBuffer.Quantization = buffer.Base().Quantization
				dramBuffer.DebugTag = "TempGlue " + buffer.Base().DebugTag
				dma := opgraph.NewDmaOp(buffer.Base().Format)
				startingGlue.Graph.AddBuffer(dramBuffer)
				startingGlue.Graph.AddOp(dma)
				startingGlue.Graph.AddConsumer(dramBuffer, dma, 0)
				startingGlue.ExternalConnections.OpsToBuffers = append(
					startingGlue.ExternalConnections.OpsToBuffers, OpToBuffer{dma, buffer})
			}
			elem.StartingGlues[inputSlot] = startingGlue
		}

		for _, outputSlot := range c.graph.GetPartOutputs(partId) {
			if _, ok := elem.EndingGlues[outputSlot]; ok {
				continue
			}
			buffer := plan.OutputBuffer(outputSlot)
			endingGlue := NewEndingGlue()
			if buffer.Base().Location == opgraph.LocationSram {
				format := opgraph.GetBestDramBufferFormat(
					[]opgraph.SramBufferWithOffset{{Buffer: buffer.Sram()}}, c.compOpt)
				dramBuffer := opgraph.NewDramBuffer(buffer.Base().TensorShape, format, opgraph.BufferTypeIntermediate)
				dramBuffer.Quantization = buffer.Base().Quantization
				dramBuffer.DebugTag = "TempGlue " + buffer.Base().DebugTag
				dma := opgraph.NewDmaOp(buffer.Base().Format)
				endingGlue.Graph.AddBuffer(dramBuffer)
				endingGlue.Graph.AddOp(dma)
				endingGlue.Graph.SetProducer(dramBuffer, dma)
				endingGlue.ExternalConnections.BuffersToOps = append(
					endingGlue.ExternalConnections.BuffersToOps, BufferToOp{buffer, dma})
			}
			elem.EndingGlues[outputSlot] = endingGlue
		}
	}
	return result
}

// GetOpGraphForCombination merges the plans and glue of a combination into
// one op graph. Elements are visited in part id order, which is topological,
// so every producer is in the graph before its consumers.
func GetOpGraphForCombination(combination Combination, graph *parts.GraphOfParts) *opgraph.OpGraph {
	result := opgraph.NewOpGraph()

	// Where a replacement elides a plan buffer, connections meant for it are
	// redirected to the buffer standing in for it.
	mergedBuffers := make(map[opgraph.Buffer]opgraph.Buffer)
	getEffectiveBuffer := func(b opgraph.Buffer) opgraph.Buffer {
		if replacement, ok := mergedBuffers[b]; ok {
			return replacement
		}
		return b
	}

	for partId := combination.FirstPartId(); partId < combination.EndPartId(); partId++ {
		elem := combination.Elem(partId)
		plan := elem.Plan

		inputSlots := graph.GetPartInputs(partId)
		for _, inputSlot := range inputSlots {
			result.MergeOpGraph(elem.StartingGlues[inputSlot].Graph)
		}

		// Plan buffers that a glue replaces are not added at all; they are
		// recorded as merged with their replacement instead.
		for _, b := range plan.OpGraph.Buffers() {
			if inputSlot, ok := plan.InputSlotFor(b); ok {
				glue := elem.StartingGlues[inputSlot]
				if replacement, ok := glue.ExternalConnections.ReplacementFor(b); ok {
					mergedBuffers[b] = replacement
					continue
				}
			}
			if outputSlot, ok := plan.OutputSlotFor(b); ok {
				glue := elem.EndingGlues[outputSlot]
				if replacement, ok := glue.ExternalConnections.ReplacementFor(b); ok {
					mergedBuffers[b] = replacement
					continue
				}
			}
			result.AddBuffer(b)
		}
		for _, op := range plan.OpGraph.Ops() {
			result.AddOp(op)
		}

		// Ending glue graphs must be in before the plan's internal
		// connections are made, since those may target merged buffers that
		// live in the ending glue.
		outputSlots := graph.GetPartOutputs(partId)
		for _, outputSlot := range outputSlots {
			result.MergeOpGraph(elem.EndingGlues[outputSlot].Graph)
		}

		for _, inputSlot := range inputSlots {
			glue := elem.StartingGlues[inputSlot]
			for _, bufAndOp := range glue.ExternalConnections.BuffersToOps {
				result.AddConsumer(getEffectiveBuffer(bufAndOp.Buffer), bufAndOp.Op, 0)
			}
			for _, opAndBuf := range glue.ExternalConnections.OpsToBuffers {
				result.SetProducer(getEffectiveBuffer(opAndBuf.Buffer), opAndBuf.Op)
			}
		}

		for _, b := range plan.OpGraph.Buffers() {
			for _, producer := range plan.OpGraph.GetProducers(b) {
				result.AddProducer(getEffectiveBuffer(b), producer)
			}
			for _, consumer := range plan.OpGraph.GetConsumers(b) {
				result.AddConsumer(getEffectiveBuffer(b), consumer.Op, consumer.InputIndex)
			}
		}

		for _, outputSlot := range outputSlots {
			glue := elem.EndingGlues[outputSlot]
			for _, bufAndOp := range glue.ExternalConnections.BuffersToOps {
				result.AddConsumer(getEffectiveBuffer(bufAndOp.Buffer), bufAndOp.Op, 0)
			}
			for _, opAndBuf := range glue.ExternalConnections.OpsToBuffers {
				result.SetProducer(getEffectiveBuffer(opAndBuf.Buffer), opAndBuf.Op)
			}
		}
	}

	return result
}
