// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// OpBase holds the properties common to all ops.
type OpBase struct {
	// DebugTag names the op in dumps and log messages.
	DebugTag string
	// OperationIds traces the op back to the source-network operations it
	// implements. Empty for ops synthesized by the compiler itself, such
	// as glue DMAs.
	OperationIds []uint32
}

// Op is an agent that moves or transforms data between buffers. The concrete
// types are DmaOp, MceOp, PleOp and EstimateOnlyOp.
type Op interface {
	Base() *OpBase
	// Mce returns the op as an MCE op, or nil.
	Mce() *MceOp
	// Ple returns the op as a PLE op, or nil.
	Ple() *PleOp
	// Dma returns the op as a DMA op, or nil.
	Dma() *DmaOp
	// EstimateOnly returns the op as an estimate-only op, or nil.
	EstimateOnly() *EstimateOnlyOp
}

func (o *OpBase) Base() *OpBase                 { return o }
func (o *OpBase) Mce() *MceOp                   { return nil }
func (o *OpBase) Ple() *PleOp                   { return nil }
func (o *OpBase) Dma() *DmaOp                   { return nil }
func (o *OpBase) EstimateOnly() *EstimateOnlyOp { return nil }

// DmaOp transfers data between DRAM and SRAM, converting layout as it goes.
type DmaOp struct {
	OpBase

	// TransferFormat is the DRAM-side format of the transfer. When the DRAM
	// buffer is created later (glue synthesis), this records the format the
	// op was planned for.
	TransferFormat BufferFormat
	// DramOffset positions the SRAM data within a larger DRAM buffer, used
	// when several DMAs write disjoint regions of one tensor.
	DramOffset shapes.TensorShape
}

func (o *DmaOp) Dma() *DmaOp { return o }

// NewDmaOp builds a DMA op transferring the given DRAM-side format.
func NewDmaOp(format BufferFormat) *DmaOp {
	return &DmaOp{TransferFormat: format}
}

// MceOp is one run of the MCE: a convolution, depthwise convolution or fully
// connected layer, writing into PLE input SRAM.
type MceOp struct {
	OpBase

	Operation   MceOperation
	Algorithm   MceAlgorithm
	BlockConfig BlockConfig

	InputStripeShape   shapes.TensorShape
	OutputStripeShape  shapes.TensorShape
	WeightsStripeShape shapes.TensorShape
	Order              TraversalOrder

	// StrideX and StrideY are the convolution strides.
	StrideX uint32
	StrideY uint32
	PadLeft uint32
	PadTop  uint32

	// UpscaleFactor is 1 for no upscaling.
	UpscaleFactor uint32

	// LowerBound and UpperBound clamp the output activations, expressed in
	// the quantized domain. A folded-in relu.
	LowerBound int16
	UpperBound int16
}

func (o *MceOp) Mce() *MceOp { return o }

// PleOp is one run of a PLE kernel.
type PleOp struct {
	OpBase

	Kernel      PleKernel
	BlockConfig BlockConfig
	NumInputs   uint32

	InputStripeShapes []shapes.TensorShape
	OutputStripeShape shapes.TensorShape

	// LoadKernel is whether this op must DMA its kernel code into the PLE
	// before running, i.e. the kernel is not already resident from an
	// earlier op in the same section.
	LoadKernel bool
	// KernelOffset is the SRAM offset the kernel code is loaded at. Nil
	// until allocation.
	KernelOffset *uint32
}

func (o *PleOp) Ple() *PleOp { return o }

// PleKernelSize is the SRAM footprint of a PLE kernel's code, in bytes.
// Kernels are padded to a fixed size so residency does not depend on the
// kernel chosen.
const PleKernelSize uint32 = 4096

// EstimateOnlyOp stands in for an operation the hardware cannot run. It only
// ever appears when estimating performance, never when compiling.
type EstimateOnlyOp struct {
	OpBase

	// Reason says why the operation could not be mapped to hardware.
	Reason string
}

func (o *EstimateOnlyOp) EstimateOnly() *EstimateOnlyOp { return o }
