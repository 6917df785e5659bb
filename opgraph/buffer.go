// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// QuantizationInfo is the affine quantization of a tensor's elements.
type QuantizationInfo struct {
	ZeroPoint int32
	Scale     float32
}

// BlockConfig is the MCE/PLE processing block size, in elements.
type BlockConfig struct {
	Width  uint32
	Height uint32
}

func (b BlockConfig) String() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

// PackedBoundaryThickness describes how much neighbouring data is packed
// alongside each stripe of an SRAM buffer, so that a kernel needing boundary
// data can read it from the same slot.
type PackedBoundaryThickness struct {
	Left   uint32
	Top    uint32
	Right  uint32
	Bottom uint32
}

// AnyNonZero reports whether any boundary data is packed at all.
func (t PackedBoundaryThickness) AnyNonZero() bool {
	return t.Left != 0 || t.Top != 0 || t.Right != 0 || t.Bottom != 0
}

// BufferBase holds the properties common to buffers in all locations.
type BufferBase struct {
	Location     Location
	Format       BufferFormat
	Quantization QuantizationInfo
	TensorShape  shapes.TensorShape
	// SizeInBytes is the total storage footprint. For SRAM buffers this is
	// the tile size (slot size times number of stripes), summed over all
	// SRAM banks.
	SizeInBytes uint32
	// DebugTag names the buffer in dumps and log messages.
	DebugTag string
}

// Buffer is a tensor at rest in one of the NPU's memories. The concrete
// types are SramBuffer, DramBuffer and PleInputSramBuffer.
type Buffer interface {
	Base() *BufferBase
	// Sram returns the buffer as an SRAM buffer, or nil.
	Sram() *SramBuffer
	// Dram returns the buffer as a DRAM buffer, or nil.
	Dram() *DramBuffer
	// PleInputSram returns the buffer as a PLE input buffer, or nil.
	PleInputSram() *PleInputSramBuffer
}

func (b *BufferBase) Base() *BufferBase                 { return b }
func (b *BufferBase) Sram() *SramBuffer                 { return nil }
func (b *BufferBase) Dram() *DramBuffer                 { return nil }
func (b *BufferBase) PleInputSram() *PleInputSramBuffer { return nil }

// SramBuffer is a tile of stripes resident in SRAM. Its SizeInBytes is
// NumStripes * SlotSizeInBytes (per bank, summed over banks).
type SramBuffer struct {
	BufferBase

	// StripeShape is the shape of each stripe. The last stripe in each
	// dimension may be smaller.
	StripeShape shapes.TensorShape
	Order       TraversalOrder
	// SlotSizeInBytes is the size of one stripe slot across all banks.
	SlotSizeInBytes uint32
	// NumStripes is the number of slots in the tile.
	NumStripes uint32
	// PackedBoundary is the boundary data packed into each slot.
	PackedBoundary PackedBoundaryThickness
	// NumLoads is how many times the whole tensor is loaded during the
	// pass. Greater than one when the traversal re-reads the input.
	NumLoads uint32
	// ForbidFcafWide marks buffers whose stripe traversal cannot tolerate
	// the wide FCAF cell shape in the DRAM buffer it is DMA'd to or from.
	ForbidFcafWide bool
	// Offset is the allocated position in SRAM, in bytes from the start of
	// each bank. Nil until allocation.
	Offset *uint32
}

func (b *SramBuffer) Sram() *SramBuffer { return b }

// DramBuffer is a tensor in external memory.
type DramBuffer struct {
	BufferBase

	BufferType BufferType
	// OperationID identifies the network operand this buffer corresponds
	// to, for buffers of type Input or Output.
	OperationID uint32
	// ProducerOutputIndex is the output index within that operation.
	ProducerOutputIndex uint32
	// ConstantData holds the payload for constant buffers (weights and
	// control unit data). Nil otherwise.
	ConstantData []byte
}

func (b *DramBuffer) Dram() *DramBuffer { return b }

// PleInputSramBuffer is the transient staging buffer between MCE and PLE.
// It is never DMA'd and occupies no allocatable SRAM.
type PleInputSramBuffer struct {
	BufferBase

	StripeShape shapes.TensorShape
	NumStripes  uint32
}

func (b *PleInputSramBuffer) PleInputSram() *PleInputSramBuffer { return b }

// IsFullTensor reports whether the buffer holds its whole tensor at once.
// DRAM buffers always do; an SRAM buffer does when a single stripe covers
// the tensor.
func IsFullTensor(b Buffer) bool {
	if b.Base().Location == LocationDram {
		return true
	}
	if sram := b.Sram(); sram != nil {
		for dim := 1; dim <= 3; dim++ {
			if sram.StripeShape[dim] < sram.TensorShape[dim] {
				return false
			}
		}
		return true
	}
	return false
}

// CalculateBufferSize returns the DRAM footprint of shape in the given
// format.
func CalculateBufferSize(shape shapes.TensorShape, format BufferFormat) uint32 {
	switch format {
	case BufferFormatNhwc, BufferFormatNchw:
		return shapes.TotalSizeBytes(shape)
	case BufferFormatNhwcb:
		return shapes.TotalSizeBytesNHWCB(shape)
	case BufferFormatFcafDeep:
		return shapes.TotalSizeBytesFCAF(shape, shapes.FcafDeepCellShape)
	case BufferFormatFcafWide:
		return shapes.TotalSizeBytesFCAF(shape, shapes.FcafWideCellShape)
	default:
		exceptions.Panicf("no buffer size rule for format %v", format)
		return 0
	}
}

// CalculateSlotSize returns the SRAM footprint of one stripe slot of the
// given stripe shape, which is always stored as whole brick groups.
func CalculateSlotSize(stripeShape shapes.TensorShape) uint32 {
	return shapes.TotalSizeBytesNHWCB(stripeShape)
}

// NewSramBuffer builds an SRAM buffer with its sizes derived from the stripe
// shape and stripe count. Callers adjust the optional fields afterwards.
func NewSramBuffer(shape, stripeShape shapes.TensorShape, numStripes uint32, order TraversalOrder) *SramBuffer {
	slot := CalculateSlotSize(stripeShape)
	return &SramBuffer{
		BufferBase: BufferBase{
			Location:    LocationSram,
			Format:      BufferFormatNhwcb,
			TensorShape: shape,
			SizeInBytes: slot * numStripes,
		},
		StripeShape:     stripeShape,
		Order:           order,
		SlotSizeInBytes: slot,
		NumStripes:      numStripes,
		NumLoads:        1,
	}
}

// NewDramBuffer builds a DRAM buffer of the given format with its size
// computed from the shape.
func NewDramBuffer(shape shapes.TensorShape, format BufferFormat, bufferType BufferType) *DramBuffer {
	return &DramBuffer{
		BufferBase: BufferBase{
			Location:    LocationDram,
			Format:      format,
			TensorShape: shape,
			SizeInBytes: CalculateBufferSize(shape, format),
		},
		BufferType: bufferType,
	}
}

// NewPleInputSramBuffer builds the staging buffer between MCE and PLE.
func NewPleInputSramBuffer(shape, stripeShape shapes.TensorShape, numStripes uint32) *PleInputSramBuffer {
	return &PleInputSramBuffer{
		BufferBase: BufferBase{
			Location:    LocationPleInputSram,
			Format:      BufferFormatNhwcb,
			TensorShape: shape,
			SizeInBytes: CalculateSlotSize(stripeShape) * numStripes,
		},
		StripeShape: stripeShape,
		NumStripes:  numStripes,
	}
}
