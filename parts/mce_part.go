// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"fmt"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// McePartParams describes the convolution an McePart performs.
type McePartParams struct {
	InputShape  shapes.TensorShape
	OutputShape shapes.TensorShape

	KernelHeight uint32
	KernelWidth  uint32

	InputQuantization  opgraph.QuantizationInfo
	OutputQuantization opgraph.QuantizationInfo
	WeightQuantization opgraph.QuantizationInfo

	Operation opgraph.MceOperation
	StrideX   uint32
	StrideY   uint32
	PadLeft   uint32
	PadTop    uint32

	// UpscaleFactor is 1 for no upscaling.
	UpscaleFactor uint32

	// LowerBound and UpperBound clamp the output, in the quantized domain.
	LowerBound int16
	UpperBound int16
}

// McePart is a part whose work runs on the MCE: convolution, depthwise
// convolution or fully connected, with an identity PLE pass writing the
// result back to SRAM. One input slot, one output slot.
//
// Boundary buffers of every plan are SRAM; any DRAM hop needed at either
// end is glue, inserted by the combiner.
type McePart struct {
	BasePart

	params McePartParams
}

var _ Part = (*McePart)(nil)

func NewMcePart(id PartId, params McePartParams, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) *McePart {
	if params.UpscaleFactor == 0 {
		params.UpscaleFactor = 1
	}
	if params.StrideX == 0 {
		params.StrideX = 1
	}
	if params.StrideY == 0 {
		params.StrideY = 1
	}
	if params.LowerBound == 0 && params.UpperBound == 0 {
		params.UpperBound = 255
	}
	return &McePart{
		BasePart: NewBasePart(id, "McePart", operationIDs, caps, compOpt, estOpt),
		params:   params,
	}
}

// Params returns the convolution description.
func (p *McePart) Params() McePartParams { return p.params }

func (p *McePart) CanDoubleBufferWeights() bool { return true }

// ApplyActivationBounds intersects the new clamp with the existing one, so a
// following relu can be folded away.
func (p *McePart) ApplyActivationBounds(lowerBound, upperBound int16) bool {
	p.params.LowerBound = shapes.Max(p.params.LowerBound, lowerBound)
	p.params.UpperBound = shapes.Min(p.params.UpperBound, upperBound)
	return true
}

// defaultBlockConfigs are tried when the part is free to choose, widest
// variety first.
var defaultBlockConfigs = []opgraph.BlockConfig{
	{Width: 16, Height: 16},
	{Width: 32, Height: 8},
	{Width: 8, Height: 32},
	{Width: 16, Height: 8},
	{Width: 8, Height: 16},
}

// mceStripeInfo is one stripe strategy for a plan.
type mceStripeInfo struct {
	inputStripe  shapes.TensorShape
	outputStripe shapes.TensorShape
	// ofmPerStripe is the output channels computed per weight stripe.
	ofmPerStripe uint32

	inputNumStripes  uint32
	outputNumStripes uint32
}

func (p *McePart) GetPlans(cascadeType CascadeType, blockConfig opgraph.BlockConfig,
	sramInput *opgraph.SramBuffer, numWeightStripes uint32) []*Plan {
	if numWeightStripes == 0 {
		numWeightStripes = 1
	}
	switch cascadeType {
	case CascadeTypeLonely, CascadeTypeBeginning:
		blockConfigs := defaultBlockConfigs
		if blockConfig != (opgraph.BlockConfig{}) {
			blockConfigs = []opgraph.BlockConfig{blockConfig}
		}
		var plans []*Plan
		for _, bc := range blockConfigs {
			for _, info := range p.generateStripeInfos(cascadeType, bc) {
				plans = append(plans, p.buildPlan(cascadeType, bc, info, nil, numWeightStripes))
			}
		}
		return plans
	case CascadeTypeMiddle, CascadeTypeEnd:
		if sramInput == nil || sramInput.TensorShape != p.params.InputShape {
			return nil
		}
		info, ok := p.continueStripeInfo(sramInput)
		if !ok {
			return nil
		}
		return []*Plan{p.buildPlan(cascadeType, blockConfig, info, sramInput, numWeightStripes)}
	}
	return nil
}

// generateStripeInfos enumerates the stripe strategies for a plan that is
// free to choose its own input buffer: the whole tensor at once, splits
// along height and width in block-sized steps, and (outside a cascade) a
// split along output depth that makes weight streaming worthwhile.
func (p *McePart) generateStripeInfos(cascadeType CascadeType, bc opgraph.BlockConfig) []mceStripeInfo {
	in := p.params.InputShape
	out := p.params.OutputShape
	brick := shapes.BrickGroupShape

	fullIn := CreateStripe(in, in, brick)
	fullOut := CreateStripe(out, out, brick)

	var infos []mceStripeInfo

	// Whole tensor in one stripe.
	infos = append(infos, mceStripeInfo{
		inputStripe:      fullIn,
		outputStripe:     fullOut,
		ofmPerStripe:     fullOut.Channels(),
		inputNumStripes:  1,
		outputNumStripes: 1,
	})

	inputNumStripesSplit := uint32(2)
	if p.params.KernelHeight > 1 {
		// Neighbouring rows must stay resident for the kernel to read.
		inputNumStripesSplit = 3
	}

	// Split along height.
	if out.Height() > bc.Height {
		outStripe := CreateStripe(out, shapes.TensorShape{1, bc.Height, out.Width(), out.Channels()}, brick)
		inStripe := CreateStripe(in, shapes.TensorShape{1, bc.Height * p.params.StrideY / p.params.UpscaleFactor, in.Width(), in.Channels()}, brick)
		infos = append(infos, mceStripeInfo{
			inputStripe:      inStripe,
			outputStripe:     outStripe,
			ofmPerStripe:     outStripe.Channels(),
			inputNumStripes:  inputNumStripesSplit,
			outputNumStripes: 2,
		})
	}

	// Split along height and width.
	if out.Height() > bc.Height && out.Width() > bc.Width {
		outStripe := CreateStripe(out, shapes.TensorShape{1, bc.Height, bc.Width, out.Channels()}, brick)
		inStripe := CreateStripe(in, shapes.TensorShape{1, bc.Height * p.params.StrideY / p.params.UpscaleFactor, bc.Width * p.params.StrideX / p.params.UpscaleFactor, in.Channels()}, brick)
		infos = append(infos, mceStripeInfo{
			inputStripe:      inStripe,
			outputStripe:     outStripe,
			ofmPerStripe:     outStripe.Channels(),
			inputNumStripes:  inputNumStripesSplit,
			outputNumStripes: 2,
		})
	}

	// Split along output depth, streaming the weights. Not usable inside a
	// cascade, where the consumer needs the full depth of each stripe.
	if cascadeType == CascadeTypeLonely && out.Channels() > brick[3] {
		outStripe := CreateStripe(out, shapes.TensorShape{1, out.Height(), out.Width(), brick[3]}, brick)
		infos = append(infos, mceStripeInfo{
			inputStripe:      fullIn,
			outputStripe:     outStripe,
			ofmPerStripe:     brick[3],
			inputNumStripes:  1,
			outputNumStripes: 2,
		})
	}

	return infos
}

// continueStripeInfo derives the only stripe strategy compatible with the
// buffer handed over by the previous part in the section.
func (p *McePart) continueStripeInfo(sramInput *opgraph.SramBuffer) (mceStripeInfo, bool) {
	in := p.params.InputShape
	out := p.params.OutputShape
	inStripe := sramInput.StripeShape
	if inStripe.Channels() < shapes.RoundUpToMultiple(in.Channels(), shapes.BrickGroupShape[3]) {
		// A depth-split input cannot feed a convolution over all input
		// channels.
		return mceStripeInfo{}, false
	}
	outStripe := CreateStripe(out, shapes.TensorShape{
		1,
		inStripe.Height() * p.params.UpscaleFactor / p.params.StrideY,
		inStripe.Width() * p.params.UpscaleFactor / p.params.StrideX,
		out.Channels(),
	}, shapes.BrickGroupShape)
	outputNumStripes := uint32(1)
	if shapes.GetNumStripesTotal(out, outStripe) > 1 {
		outputNumStripes = 2
	}
	return mceStripeInfo{
		inputStripe:  inStripe,
		outputStripe: outStripe,
		ofmPerStripe: outStripe.Channels(),
		inputNumStripes:  sramInput.NumStripes,
		outputNumStripes: outputNumStripes,
	}, true
}

// weightBytes returns the raw weight payload size for ofm output channels.
func (p *McePart) weightBytes(ofm uint32) uint32 {
	ifm := p.params.InputShape.Channels()
	if p.params.Operation == opgraph.MceOperationDepthwiseConvolution {
		ifm = 1
	}
	return p.params.KernelHeight * p.params.KernelWidth * ifm * ofm
}

func (p *McePart) algorithm() opgraph.MceAlgorithm {
	if !p.CompOpt.DisableWinograd &&
		p.params.Operation == opgraph.MceOperationConvolution &&
		p.params.KernelHeight == 3 && p.params.KernelWidth == 3 &&
		p.params.StrideX == 1 && p.params.StrideY == 1 {
		return opgraph.MceAlgorithmWinograd
	}
	return opgraph.MceAlgorithmDirect
}

func (p *McePart) buildPlan(cascadeType CascadeType, bc opgraph.BlockConfig,
	info mceStripeInfo, sramInput *opgraph.SramBuffer, numWeightStripes uint32) *Plan {
	params := &p.params
	plan := NewPlan()
	g := plan.OpGraph

	// Input buffer: ours, or the one handed over by the predecessor.
	input := sramInput
	if input == nil {
		input = opgraph.NewSramBuffer(params.InputShape, info.inputStripe, info.inputNumStripes, opgraph.TraversalOrderXyz)
		input.Quantization = params.InputQuantization
		input.ForbidFcafWide = forbidFcafWideForStripe(info.inputStripe)
		input.DebugTag = "McePartInputSram"
	}
	g.AddBuffer(input)
	plan.InputMappings[PartInputSlot{p.ID(), 0}] = input

	// Weights: DRAM encoded stream and its SRAM tile.
	totalWeightStripes := shapes.DivRoundUp(
		shapes.RoundUpToMultiple(params.OutputShape.Channels(), shapes.BrickGroupShape[3]), info.ofmPerStripe)
	weightNumStripes := shapes.Min(numWeightStripes, totalWeightStripes)

	weightsDram := &opgraph.DramBuffer{
		BufferBase: opgraph.BufferBase{
			Location:     opgraph.LocationDram,
			Format:       opgraph.BufferFormatWeight,
			Quantization: params.WeightQuantization,
			TensorShape:  shapes.TensorShape{1, params.KernelHeight, params.KernelWidth, params.OutputShape.Channels()},
			SizeInBytes:  p.weightBytes(params.OutputShape.Channels()),
			DebugTag:     "McePartWeightsDram",
		},
		BufferType: opgraph.BufferTypeConstantDma,
	}
	g.AddBuffer(weightsDram)

	weightStripeShape := shapes.TensorShape{1, params.KernelHeight, params.KernelWidth, info.ofmPerStripe}
	weightSlotSize := p.weightBytes(info.ofmPerStripe)
	weightsSram := &opgraph.SramBuffer{
		BufferBase: opgraph.BufferBase{
			Location:     opgraph.LocationSram,
			Format:       opgraph.BufferFormatWeight,
			Quantization: params.WeightQuantization,
			TensorShape:  weightsDram.TensorShape,
			SizeInBytes:  weightSlotSize * weightNumStripes,
			DebugTag:     "McePartWeightsSram",
		},
		StripeShape:     weightStripeShape,
		Order:           opgraph.TraversalOrderXyz,
		SlotSizeInBytes: weightSlotSize,
		NumStripes:      weightNumStripes,
		NumLoads:        1,
	}
	g.AddBuffer(weightsSram)

	weightsDma := opgraph.NewDmaOp(opgraph.BufferFormatWeight)
	weightsDma.DebugTag = "McePartWeightsDma"
	weightsDma.OperationIds = p.OperationIDs()
	g.AddOp(weightsDma)
	g.AddConsumer(weightsDram, weightsDma, 0)
	g.SetProducer(weightsSram, weightsDma)

	// MCE into the PLE staging buffer.
	mce := &opgraph.MceOp{
		Operation:          params.Operation,
		Algorithm:          p.algorithm(),
		BlockConfig:        bc,
		InputStripeShape:   info.inputStripe,
		OutputStripeShape:  info.outputStripe,
		WeightsStripeShape: weightStripeShape,
		Order:              opgraph.TraversalOrderXyz,
		StrideX:            params.StrideX,
		StrideY:            params.StrideY,
		PadLeft:            params.PadLeft,
		PadTop:             params.PadTop,
		UpscaleFactor:      params.UpscaleFactor,
		LowerBound:         params.LowerBound,
		UpperBound:         params.UpperBound,
	}
	mce.DebugTag = fmt.Sprintf("McePartMce %v", bc)
	mce.OperationIds = p.OperationIDs()
	g.AddOp(mce)
	g.AddConsumer(input, mce, 0)
	g.AddConsumer(weightsSram, mce, 1)

	pleInput := opgraph.NewPleInputSramBuffer(params.OutputShape, info.outputStripe, 1)
	pleInput.Quantization = params.OutputQuantization
	pleInput.DebugTag = "McePartPleInputSram"
	g.AddBuffer(pleInput)
	g.SetProducer(pleInput, mce)

	// Identity PLE pass writing the result back to SRAM.
	ple := &opgraph.PleOp{
		Kernel:            opgraph.PleKernelPassthrough,
		BlockConfig:       bc,
		NumInputs:         1,
		InputStripeShapes: []shapes.TensorShape{info.outputStripe},
		OutputStripeShape: info.outputStripe,
		LoadKernel:        true,
	}
	ple.DebugTag = "McePartPle"
	ple.OperationIds = p.OperationIDs()
	g.AddOp(ple)
	g.AddConsumer(pleInput, ple, 0)

	output := opgraph.NewSramBuffer(params.OutputShape, info.outputStripe, info.outputNumStripes, opgraph.TraversalOrderXyz)
	output.Quantization = params.OutputQuantization
	output.ForbidFcafWide = forbidFcafWideForStripe(info.outputStripe)
	output.DebugTag = "McePartOutputSram"
	g.AddBuffer(output)
	g.SetProducer(output, ple)
	plan.OutputMappings[PartOutputSlot{p.ID(), 0}] = output

	return plan
}
