// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// InputPart realizes a network input: a single DRAM buffer the caller fills
// before running the network. It has one output slot and no inputs.
type InputPart struct {
	BasePart

	OutputShape        shapes.TensorShape
	OutputFormat       opgraph.BufferFormat
	OutputQuantization opgraph.QuantizationInfo
}

var _ Part = (*InputPart)(nil)

func NewInputPart(id PartId, shape shapes.TensorShape, format opgraph.BufferFormat,
	quantization opgraph.QuantizationInfo, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) *InputPart {
	return &InputPart{
		BasePart:           NewBasePart(id, "InputPart", operationIDs, caps, compOpt, estOpt),
		OutputShape:        shape,
		OutputFormat:       format,
		OutputQuantization: quantization,
	}
}

func (p *InputPart) GetPlans(cascadeType CascadeType, _ opgraph.BlockConfig,
	_ *opgraph.SramBuffer, _ uint32) []*Plan {
	// The buffer lives in DRAM, so this part cannot take part in a
	// section; the glue bridges from it into the consumer's SRAM or DRAM.
	if cascadeType != CascadeTypeLonely {
		return nil
	}
	plan := NewPlan()
	buffer := opgraph.NewDramBuffer(p.OutputShape, p.OutputFormat, opgraph.BufferTypeInput)
	buffer.Quantization = p.OutputQuantization
	if len(p.operationIDs) > 0 {
		buffer.OperationID = p.operationIDs[0]
	}
	buffer.DebugTag = "InputDram"
	plan.OpGraph.AddBuffer(buffer)
	plan.OutputMappings[PartOutputSlot{p.ID(), 0}] = buffer
	return []*Plan{plan}
}

// OutputPart realizes a network output: a single DRAM buffer the caller
// reads after running the network. It has one input slot and no outputs.
type OutputPart struct {
	BasePart

	InputShape        shapes.TensorShape
	InputFormat       opgraph.BufferFormat
	InputQuantization opgraph.QuantizationInfo
}

var _ Part = (*OutputPart)(nil)

func NewOutputPart(id PartId, shape shapes.TensorShape, format opgraph.BufferFormat,
	quantization opgraph.QuantizationInfo, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) *OutputPart {
	return &OutputPart{
		BasePart:          NewBasePart(id, "OutputPart", operationIDs, caps, compOpt, estOpt),
		InputShape:        shape,
		InputFormat:       format,
		InputQuantization: quantization,
	}
}

func (p *OutputPart) GetPlans(cascadeType CascadeType, _ opgraph.BlockConfig,
	_ *opgraph.SramBuffer, _ uint32) []*Plan {
	// The buffer lives in DRAM, so this part cannot take part in a
	// section; the glue bridges from the producer's SRAM or DRAM.
	if cascadeType != CascadeTypeLonely {
		return nil
	}
	plan := NewPlan()
	buffer := opgraph.NewDramBuffer(p.InputShape, p.InputFormat, opgraph.BufferTypeOutput)
	buffer.Quantization = p.InputQuantization
	if len(p.operationIDs) > 0 {
		buffer.OperationID = p.operationIDs[0]
	}
	buffer.DebugTag = "OutputDram"
	plan.OpGraph.AddBuffer(buffer)
	plan.InputMappings[PartInputSlot{p.ID(), 0}] = buffer
	return []*Plan{plan}
}

// ReshapePart changes a tensor's shape without moving data. Its single plan
// is one DRAM buffer mapped as both the input and the output slot: the
// producer writes it with one shape and the consumer reads it with another.
// Only valid for the linear layout, where the element order is unaffected.
type ReshapePart struct {
	BasePart

	InputShape   shapes.TensorShape
	OutputShape  shapes.TensorShape
	Quantization opgraph.QuantizationInfo
}

var _ Part = (*ReshapePart)(nil)

func NewReshapePart(id PartId, inputShape, outputShape shapes.TensorShape,
	quantization opgraph.QuantizationInfo, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) *ReshapePart {
	return &ReshapePart{
		BasePart:     NewBasePart(id, "ReshapePart", operationIDs, caps, compOpt, estOpt),
		InputShape:   inputShape,
		OutputShape:  outputShape,
		Quantization: quantization,
	}
}

func (p *ReshapePart) GetPlans(cascadeType CascadeType, _ opgraph.BlockConfig,
	_ *opgraph.SramBuffer, _ uint32) []*Plan {
	if cascadeType != CascadeTypeLonely {
		return nil
	}
	plan := NewPlan()
	buffer := opgraph.NewDramBuffer(p.OutputShape, opgraph.BufferFormatNhwc, opgraph.BufferTypeIntermediate)
	buffer.Quantization = p.Quantization
	buffer.DebugTag = "ReshapeDram"
	plan.OpGraph.AddBuffer(buffer)
	plan.InputMappings[PartInputSlot{p.ID(), 0}] = buffer
	plan.OutputMappings[PartOutputSlot{p.ID(), 0}] = buffer
	return []*Plan{plan}
}
