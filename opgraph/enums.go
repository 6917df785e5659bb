// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package opgraph defines the graph of hardware-level operations and buffers
// that a plan or a full compiled network is made of. Buffers describe data at
// rest (in DRAM or SRAM) and ops describe the agents that move or transform
// it (DMA transfers, MCE convolutions, PLE kernels).
//
// An OpGraph owns no scheduling information. It records which ops produce and
// consume which buffers, with consumer order significant because it maps to
// the input index of multi-input ops.
package opgraph

import "fmt"

// Location says which memory a buffer lives in.
type Location int

//go:generate go tool enumer -type=Location -trimprefix=Location enums.go

const (
	LocationDram Location = iota
	LocationSram
	// LocationPleInputSram is the dedicated staging storage between the MCE
	// and the PLE. Data there is transient and never DMA'd.
	LocationPleInputSram
	// LocationVirtualSram marks buffers that behave like SRAM for planning
	// purposes but are backed by DRAM through on-the-fly conversion.
	LocationVirtualSram
)

// BufferFormat is the data layout of a buffer.
type BufferFormat int

//go:generate go tool enumer -type=BufferFormat -trimprefix=BufferFormat enums.go

const (
	// BufferFormatNhwc is dense, linear NHWC. DRAM only.
	BufferFormatNhwc BufferFormat = iota
	// BufferFormatNchw is dense, linear NCHW. DRAM only.
	BufferFormatNchw
	// BufferFormatNhwcb is the brick-group interleaved layout used in SRAM
	// and for uncompressed intermediates in DRAM.
	BufferFormatNhwcb
	// BufferFormatWeight is the hardware weight stream layout.
	BufferFormatWeight
	// BufferFormatFcafDeep is the lossless compressed layout with 1x8x8x32
	// cells. DRAM only.
	BufferFormatFcafDeep
	// BufferFormatFcafWide is the lossless compressed layout with 1x8x16x16
	// cells. DRAM only.
	BufferFormatFcafWide
)

// TraversalOrder is the order stripes of a buffer are walked in.
type TraversalOrder int

//go:generate go tool enumer -type=TraversalOrder -trimprefix=TraversalOrder enums.go

const (
	// TraversalOrderXyz walks width, then height, then depth.
	TraversalOrderXyz TraversalOrder = iota
	// TraversalOrderZxy walks depth first.
	TraversalOrderZxy
)

// BufferType classifies DRAM buffers by their role in the compiled network.
type BufferType int

const (
	BufferTypeIntermediate BufferType = iota
	BufferTypeInput
	BufferTypeOutput
	BufferTypeConstantDma
	BufferTypeConstantControlUnit
)

func (t BufferType) String() string {
	switch t {
	case BufferTypeIntermediate:
		return "Intermediate"
	case BufferTypeInput:
		return "Input"
	case BufferTypeOutput:
		return "Output"
	case BufferTypeConstantDma:
		return "ConstantDma"
	case BufferTypeConstantControlUnit:
		return "ConstantControlUnit"
	}
	return fmt.Sprintf("BufferType(%d)", int(t))
}

// MceAlgorithm selects the convolution algorithm the MCE runs.
type MceAlgorithm int

const (
	MceAlgorithmDirect MceAlgorithm = iota
	MceAlgorithmWinograd
)

func (a MceAlgorithm) String() string {
	if a == MceAlgorithmWinograd {
		return "Winograd"
	}
	return "Direct"
}

// MceOperation is the family of operation the MCE performs.
type MceOperation int

const (
	MceOperationConvolution MceOperation = iota
	MceOperationDepthwiseConvolution
	MceOperationFullyConnected
)

func (o MceOperation) String() string {
	switch o {
	case MceOperationConvolution:
		return "Convolution"
	case MceOperationDepthwiseConvolution:
		return "DepthwiseConvolution"
	case MceOperationFullyConnected:
		return "FullyConnected"
	}
	return fmt.Sprintf("MceOperation(%d)", int(o))
}

// PleKernel identifies the program loaded into the PLE.
type PleKernel int

const (
	PleKernelPassthrough PleKernel = iota
	PleKernelAddition
	PleKernelAdditionRescale
	PleKernelAvgPool3x3
	PleKernelInterleave
	PleKernelMaxPool2x2
	PleKernelMaxPool3x3
	PleKernelMeanXy
	PleKernelDownsample2x2
	PleKernelLeakyRelu
	PleKernelSigmoid
	PleKernelTranspose
)

var pleKernelNames = [...]string{
	"Passthrough",
	"Addition",
	"AdditionRescale",
	"AvgPool3x3",
	"Interleave",
	"MaxPool2x2",
	"MaxPool3x3",
	"MeanXy",
	"Downsample2x2",
	"LeakyRelu",
	"Sigmoid",
	"Transpose",
}

func (k PleKernel) String() string {
	if k < 0 || int(k) >= len(pleKernelNames) {
		return fmt.Sprintf("PleKernel(%d)", int(k))
	}
	return pleKernelNames[k]
}

// IsStandalone reports whether the kernel runs without MCE input, i.e. it
// reads its inputs directly from SRAM.
func (k PleKernel) IsStandalone() bool {
	switch k {
	case PleKernelAddition, PleKernelAdditionRescale, PleKernelAvgPool3x3:
		return true
	}
	return false
}
