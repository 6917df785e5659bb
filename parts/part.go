// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"fmt"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
)

// Part is one node of the compilation graph. Implementations are pure: two
// GetPlans calls with the same arguments return equivalent plans, and calls
// for different parts are safe to run concurrently.
type Part interface {
	// ID returns the part's id within its graph.
	ID() PartId
	// SetID renumbers the part. Only GraphOfParts calls this.
	SetID(id PartId)
	// DebugTag names the part in dumps and log messages.
	DebugTag() string
	// OperationIDs returns the source-network operation ids this part
	// corresponds to, for traceability.
	OperationIDs() []uint32

	// GetPlans generates candidate plans for the given cascade role.
	//
	// blockConfig keeps cascaded parts in lock-step; it is ignored by parts
	// that have no compute-engine op. sramInput is the predecessor's output
	// buffer, required for Middle and End and nil otherwise. numWeightStripes
	// is the weight tile depth to plan for (1 single buffered, 2 double
	// buffered).
	//
	// An empty result means no valid plan exists under these constraints,
	// which is a normal outcome the caller handles by trying other roles.
	GetPlans(cascadeType CascadeType, blockConfig opgraph.BlockConfig,
		sramInput *opgraph.SramBuffer, numWeightStripes uint32) []*Plan

	// CanDoubleBufferWeights reports whether planning with two weight
	// stripes is worth trying for this part.
	CanDoubleBufferWeights() bool

	// ApplyActivationBounds folds an output clamp into the part, returning
	// false if the part cannot absorb it. Used to fuse a following relu.
	ApplyActivationBounds(lowerBound, upperBound int16) bool
}

// BasePart carries what every part implementation needs. Concrete parts
// embed it.
type BasePart struct {
	id           PartId
	debugTag     string
	operationIDs []uint32

	Capabilities *capabilities.Capabilities
	CompOpt      *options.CompilationOptions
	EstOpt       *options.EstimationOptions
}

// NewBasePart builds the embedded common state of a part.
func NewBasePart(id PartId, debugTag string, operationIDs []uint32,
	caps *capabilities.Capabilities, compOpt *options.CompilationOptions,
	estOpt *options.EstimationOptions) BasePart {
	return BasePart{
		id:           id,
		debugTag:     fmt.Sprintf("%s %d", debugTag, id),
		operationIDs: operationIDs,
		Capabilities: caps,
		CompOpt:      compOpt,
		EstOpt:       estOpt,
	}
}

func (p *BasePart) ID() PartId             { return p.id }
func (p *BasePart) SetID(id PartId)        { p.id = id }
func (p *BasePart) DebugTag() string       { return p.debugTag }
func (p *BasePart) OperationIDs() []uint32 { return p.operationIDs }

// CanDoubleBufferWeights is false by default; parts with weights override.
func (p *BasePart) CanDoubleBufferWeights() bool { return false }

// ApplyActivationBounds fails by default; compute parts override.
func (p *BasePart) ApplyActivationBounds(lowerBound, upperBound int16) bool { return false }
