// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package combiner

import (
	"math"

	"github.com/gomlx/exceptions"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
)

// BufferReplacement records that a buffer inside a plan is elided: the two
// neighbouring plans agree to share the replacement buffer object instead.
type BufferReplacement struct {
	Original    opgraph.Buffer
	Replacement opgraph.Buffer
}

// OpToBuffer connects an op inside a glue to a buffer outside it.
type OpToBuffer struct {
	Op     opgraph.Op
	Buffer opgraph.Buffer
}

// BufferToOp connects a buffer outside a glue to an op inside it.
type BufferToOp struct {
	Buffer opgraph.Buffer
	Op     opgraph.Op
}

// GlueConnections records how a glue fragment attaches to the buffers and
// ops of the neighbouring plans. Slices keep the attachment order
// deterministic when the merged graph is built.
type GlueConnections struct {
	ReplacementBuffers []BufferReplacement
	OpsToBuffers       []OpToBuffer
	BuffersToOps       []BufferToOp
}

// ReplacementFor returns the buffer the given one is replaced with, if any.
func (c *GlueConnections) ReplacementFor(b opgraph.Buffer) (opgraph.Buffer, bool) {
	for _, r := range c.ReplacementBuffers {
		if r.Original == b {
			return r.Replacement, true
		}
	}
	return nil, false
}

// EndingGlue sits at a plan's output boundary. For two plans connected as
// planA -> planB the full chain is planA -> EndingGlue -> StartingGlue ->
// planB. Its external connections only attach to its own plan.
type EndingGlue struct {
	Graph               *opgraph.OpGraph
	ExternalConnections GlueConnections
}

func NewEndingGlue() *EndingGlue {
	return &EndingGlue{Graph: opgraph.NewOpGraph()}
}

// StartingGlue sits at a plan's input boundary. Its external connections
// attach both to its own plan and to the preceding ending glue or plan.
type StartingGlue struct {
	Graph               *opgraph.OpGraph
	ExternalConnections GlueConnections
}

func NewStartingGlue() *StartingGlue {
	return &StartingGlue{Graph: opgraph.NewOpGraph()}
}

// Elem is one element of a combination: the chosen plan for one part plus
// the glue at its boundaries.
type Elem struct {
	Plan          *parts.Plan
	StartingGlues map[parts.PartInputSlot]*StartingGlue
	EndingGlues   map[parts.PartOutputSlot]*EndingGlue
}

func (e *Elem) cloneGlueMaps() {
	starting := make(map[parts.PartInputSlot]*StartingGlue, len(e.StartingGlues))
	for k, v := range e.StartingGlues {
		starting[k] = v
	}
	e.StartingGlues = starting
	ending := make(map[parts.PartOutputSlot]*EndingGlue, len(e.EndingGlues))
	for k, v := range e.EndingGlues {
		ending[k] = v
	}
	e.EndingGlues = ending
}

// Combination stores the chosen plan and glue per part, for a contiguous
// range of part ids. The zero value is the empty (invalid) combination.
type Combination struct {
	partIdOffset parts.PartId
	elems        []Elem
	metric       float64
}

// NewCombination creates a combination holding a single part with its plan.
func NewCombination(partId parts.PartId, plan *parts.Plan) Combination {
	return Combination{
		partIdOffset: partId,
		elems: []Elem{{
			Plan:          plan,
			StartingGlues: make(map[parts.PartInputSlot]*StartingGlue),
			EndingGlues:   make(map[parts.PartOutputSlot]*EndingGlue),
		}},
	}
}

func (c Combination) IsEmpty() bool { return len(c.elems) == 0 }

// FirstPartId returns the first part id a plan is stored for.
func (c Combination) FirstPartId() parts.PartId { return c.partIdOffset }

// EndPartId returns one past the last part id a plan is stored for.
func (c Combination) EndPartId() parts.PartId {
	return c.partIdOffset + parts.PartId(len(c.elems))
}

func (c Combination) Elem(partId parts.PartId) *Elem {
	if partId < c.partIdOffset || partId >= c.EndPartId() {
		exceptions.Panicf("part %d outside combination range [%d, %d)", partId, c.partIdOffset, c.EndPartId())
	}
	return &c.elems[partId-c.partIdOffset]
}

// Metric returns the estimated cost of this combination. The empty
// combination costs +Inf, so it always loses any comparison.
func (c Combination) Metric() float64 {
	if c.IsEmpty() {
		return math.Inf(1)
	}
	return c.metric
}

func (c *Combination) SetMetric(metric float64) { c.metric = metric }

// clone copies the combination so the glue maps of the copy can be
// modified independently. Plans and glue fragments stay shared.
func (c Combination) clone() Combination {
	result := c
	result.elems = append([]Elem(nil), c.elems...)
	for i := range result.elems {
		result.elems[i].cloneGlueMaps()
	}
	return result
}

// Merge combines this combination with one continuing the contiguous part
// id numbering, e.g. {1,2,3} + {4,5}. An empty operand poisons the result,
// propagating "no valid plan found" upwards. Merging is associative.
func (c Combination) Merge(rhs Combination) Combination {
	if c.IsEmpty() || rhs.IsEmpty() {
		return Combination{}
	}
	if c.EndPartId() != rhs.FirstPartId() {
		exceptions.Panicf("combinations not contiguous: [%d, %d) + [%d, %d)",
			c.FirstPartId(), c.EndPartId(), rhs.FirstPartId(), rhs.EndPartId())
	}
	result := c.clone()
	result.elems = append(result.elems, rhs.clone().elems...)
	result.metric += rhs.metric
	return result
}

// SetStartingGlue attaches glue to a plan input. Glue can only be set once.
func (c *Combination) SetStartingGlue(glue *StartingGlue, inputSlot parts.PartInputSlot) {
	elem := c.Elem(inputSlot.PartId)
	if _, ok := elem.StartingGlues[inputSlot]; ok {
		exceptions.Panicf("starting glue already set for %v", inputSlot)
	}
	elem.StartingGlues[inputSlot] = glue
}

// SetEndingGlue attaches glue to a plan output. Glue can only be set once.
func (c *Combination) SetEndingGlue(glue *EndingGlue, outputSlot parts.PartOutputSlot) {
	elem := c.Elem(outputSlot.PartId)
	if _, ok := elem.EndingGlues[outputSlot]; ok {
		exceptions.Panicf("ending glue already set for %v", outputSlot)
	}
	elem.EndingGlues[outputSlot] = glue
}
