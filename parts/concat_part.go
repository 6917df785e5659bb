// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// ConcatPart joins several tensors along one axis. Its plan stages each
// input through SRAM and DMAs it into the right region of one shared output
// DRAM buffer, whose format is the best one every transfer's offset
// alignment permits.
type ConcatPart struct {
	BasePart

	InputShapes  []shapes.TensorShape
	OutputShape  shapes.TensorShape
	Axis         int
	Quantization opgraph.QuantizationInfo

	// offsets[i] is where input i starts within the output tensor.
	offsets []shapes.TensorShape
}

var _ Part = (*ConcatPart)(nil)

func NewConcatPart(id PartId, inputShapes []shapes.TensorShape, axis int,
	quantization opgraph.QuantizationInfo, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) *ConcatPart {
	if axis < 1 || axis > 3 {
		exceptions.Panicf("concatenation axis %d out of range", axis)
	}
	if len(inputShapes) == 0 {
		exceptions.Panicf("concatenation needs at least one input")
	}
	outputShape := inputShapes[0]
	offsets := make([]shapes.TensorShape, len(inputShapes))
	var runningOffset uint32
	for i, shape := range inputShapes {
		for dim := 0; dim < 4; dim++ {
			if dim != axis && shape[dim] != outputShape[dim] {
				exceptions.Panicf("concatenation input %d disagrees on dimension %d", i, dim)
			}
		}
		offsets[i][axis] = runningOffset
		runningOffset += shape[axis]
	}
	outputShape[axis] = runningOffset
	return &ConcatPart{
		BasePart:     NewBasePart(id, "ConcatPart", operationIDs, caps, compOpt, estOpt),
		InputShapes:  inputShapes,
		OutputShape:  outputShape,
		Axis:         axis,
		Quantization: quantization,
		offsets:      offsets,
	}
}

func (p *ConcatPart) GetPlans(cascadeType CascadeType, _ opgraph.BlockConfig,
	_ *opgraph.SramBuffer, _ uint32) []*Plan {
	if cascadeType != CascadeTypeLonely {
		return nil
	}

	// Build the input SRAM buffers first so the output format choice can
	// see every transfer's stripe shape and offset.
	inputBuffers := make([]*opgraph.SramBuffer, len(p.InputShapes))
	withOffsets := make([]opgraph.SramBufferWithOffset, len(p.InputShapes))
	for i, shape := range p.InputShapes {
		stripeShape := CreateStripe(shape, shape, shapes.BrickGroupShape)
		buffer := opgraph.NewSramBuffer(shape, stripeShape, 1, opgraph.TraversalOrderXyz)
		buffer.Quantization = p.Quantization
		buffer.ForbidFcafWide = forbidFcafWideForStripe(stripeShape)
		buffer.DebugTag = fmt.Sprintf("ConcatSram%d", i)
		if shapes.TotalSizeBytesNHWCB(stripeShape) > p.Capabilities.TotalSramSize() {
			// An input bigger than SRAM cannot be staged whole.
			return nil
		}
		inputBuffers[i] = buffer
		withOffsets[i] = opgraph.SramBufferWithOffset{Buffer: buffer, Offset: p.offsets[i]}
	}

	format := opgraph.GetBestDramBufferFormat(withOffsets, p.CompOpt)
	for _, b := range withOffsets {
		if !opgraph.IsSramBufferCompatibleWithDramFormat(b.Buffer, format, b.Offset) {
			// Even the linear fallback cannot address this offset (a
			// channel offset with width > 1). Not supported.
			return nil
		}
	}

	plan := NewPlan()
	// The input buffers are staged one at a time, never all live together,
	// so the plan does its own SRAM lifetime management.
	plan.IsPreallocated = true

	output := opgraph.NewDramBuffer(p.OutputShape, format, opgraph.BufferTypeIntermediate)
	output.Quantization = p.Quantization
	output.DebugTag = "ConcatDram"
	plan.OpGraph.AddBuffer(output)
	plan.OutputMappings[PartOutputSlot{p.ID(), 0}] = output

	for i, buffer := range inputBuffers {
		offset := uint32(0)
		buffer.Offset = &offset
		plan.OpGraph.AddBuffer(buffer)
		plan.InputMappings[PartInputSlot{p.ID(), uint32(i)}] = buffer

		dma := opgraph.NewDmaOp(format)
		dma.DramOffset = p.offsets[i]
		dma.DebugTag = fmt.Sprintf("ConcatDma%d", i)
		dma.OperationIds = p.OperationIDs()
		plan.OpGraph.AddOp(dma)
		plan.OpGraph.AddConsumer(buffer, dma, 0)
		plan.OpGraph.AddProducer(output, dma)
	}
	return []*Plan{plan}
}
