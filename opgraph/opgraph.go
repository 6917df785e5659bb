// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// Consumer is one input of an op. The input index matters for multi-input
// ops, where it determines which operand the buffer feeds.
type Consumer struct {
	Op         Op
	InputIndex int
}

// OpGraph is a collection of buffers and ops with their producer/consumer
// relationships. Buffers may have multiple producers when each writes a
// disjoint region of the tensor. Iteration over buffers and ops follows
// insertion order, which keeps everything built from an OpGraph
// deterministic.
type OpGraph struct {
	buffers []Buffer
	ops     []Op

	producers map[Buffer][]Op
	consumers map[Buffer][]Consumer
	opInputs  map[Op][]Buffer
	opOutput  map[Op]Buffer
}

// NewOpGraph returns an empty graph.
func NewOpGraph() *OpGraph {
	return &OpGraph{
		producers: make(map[Buffer][]Op),
		consumers: make(map[Buffer][]Consumer),
		opInputs:  make(map[Op][]Buffer),
		opOutput:  make(map[Op]Buffer),
	}
}

// Buffers returns the graph's buffers in insertion order. The returned slice
// must not be modified.
func (g *OpGraph) Buffers() []Buffer { return g.buffers }

// Ops returns the graph's ops in insertion order. The returned slice must
// not be modified.
func (g *OpGraph) Ops() []Op { return g.ops }

// Contains reports whether op is part of this graph.
func (g *OpGraph) Contains(op Op) bool {
	for _, o := range g.ops {
		if o == op {
			return true
		}
	}
	return false
}

// ContainsBuffer reports whether buffer is part of this graph.
func (g *OpGraph) ContainsBuffer(buffer Buffer) bool {
	for _, b := range g.buffers {
		if b == buffer {
			return true
		}
	}
	return false
}

// AddBuffer adds buffer to the graph. It must not already be present.
func (g *OpGraph) AddBuffer(buffer Buffer) {
	if g.ContainsBuffer(buffer) {
		exceptions.Panicf("buffer %q is already in the graph", buffer.Base().DebugTag)
	}
	g.buffers = append(g.buffers, buffer)
}

// AddOp adds op to the graph. It must not already be present.
func (g *OpGraph) AddOp(op Op) {
	if g.Contains(op) {
		exceptions.Panicf("op %q is already in the graph", op.Base().DebugTag)
	}
	g.ops = append(g.ops, op)
}

// GetProducers returns the ops that write into buffer, in the order they
// were attached.
func (g *OpGraph) GetProducers(buffer Buffer) []Op {
	return g.producers[buffer]
}

// GetSingleProducer returns the single op that writes into buffer, nil if it
// has none. Panics if it has more than one.
func (g *OpGraph) GetSingleProducer(buffer Buffer) Op {
	producers := g.producers[buffer]
	switch len(producers) {
	case 0:
		return nil
	case 1:
		return producers[0]
	default:
		exceptions.Panicf("buffer %q has %d producers, expected at most one",
			buffer.Base().DebugTag, len(producers))
		return nil
	}
}

// SetProducer makes producerOp the sole producer of buffer. The buffer must
// not already have a producer.
func (g *OpGraph) SetProducer(buffer Buffer, producerOp Op) {
	g.checkMembership(buffer, producerOp)
	if len(g.producers[buffer]) != 0 {
		exceptions.Panicf("buffer %q already has a producer", buffer.Base().DebugTag)
	}
	g.producers[buffer] = append(g.producers[buffer], producerOp)
	g.opOutput[producerOp] = buffer
}

// AddProducer attaches producerOp as an additional producer of buffer. Each
// producer must write a disjoint region of the tensor.
func (g *OpGraph) AddProducer(buffer Buffer, producerOp Op) {
	g.checkMembership(buffer, producerOp)
	for _, p := range g.producers[buffer] {
		if p == producerOp {
			exceptions.Panicf("op %q is already a producer of buffer %q",
				producerOp.Base().DebugTag, buffer.Base().DebugTag)
		}
	}
	g.producers[buffer] = append(g.producers[buffer], producerOp)
	g.opOutput[producerOp] = buffer
}

// RemoveProducer detaches producerOp from buffer.
func (g *OpGraph) RemoveProducer(buffer Buffer, producerOp Op) {
	producers := g.producers[buffer]
	for i, p := range producers {
		if p == producerOp {
			g.producers[buffer] = append(producers[:i:i], producers[i+1:]...)
			delete(g.opOutput, producerOp)
			return
		}
	}
	exceptions.Panicf("op %q is not a producer of buffer %q",
		producerOp.Base().DebugTag, buffer.Base().DebugTag)
}

// ClearProducers detaches all producers from buffer.
func (g *OpGraph) ClearProducers(buffer Buffer) {
	for _, p := range g.producers[buffer] {
		delete(g.opOutput, p)
	}
	delete(g.producers, buffer)
}

// GetConsumers returns the (op, input index) pairs reading from buffer, in
// the order they were attached.
func (g *OpGraph) GetConsumers(buffer Buffer) []Consumer {
	return g.consumers[buffer]
}

// AddConsumer attaches buffer as input opInputIdx of consumerOp. Inputs must
// be attached in index order with no gaps.
func (g *OpGraph) AddConsumer(buffer Buffer, consumerOp Op, opInputIdx int) {
	g.checkMembership(buffer, consumerOp)
	inputs := g.opInputs[consumerOp]
	if opInputIdx != len(inputs) {
		exceptions.Panicf("op %q inputs must be attached in order: got index %d, want %d",
			consumerOp.Base().DebugTag, opInputIdx, len(inputs))
	}
	g.opInputs[consumerOp] = append(inputs, buffer)
	g.consumers[buffer] = append(g.consumers[buffer], Consumer{consumerOp, opInputIdx})
}

// RemoveConsumer detaches input opInputIdx of consumerOp from buffer. Only
// the last input of an op may be disconnected, as removing an earlier one
// would renumber the rest.
func (g *OpGraph) RemoveConsumer(buffer Buffer, consumerOp Op, opInputIdx int) {
	inputs := g.opInputs[consumerOp]
	if opInputIdx != len(inputs)-1 {
		exceptions.Panicf("op %q inputs must be disconnected last-first: got index %d of %d",
			consumerOp.Base().DebugTag, opInputIdx, len(inputs))
	}
	if opInputIdx < 0 || inputs[opInputIdx] != buffer {
		exceptions.Panicf("buffer %q is not input %d of op %q",
			buffer.Base().DebugTag, opInputIdx, consumerOp.Base().DebugTag)
	}
	g.opInputs[consumerOp] = inputs[:opInputIdx]
	consumers := g.consumers[buffer]
	for i, c := range consumers {
		if c.Op == consumerOp && c.InputIndex == opInputIdx {
			g.consumers[buffer] = append(consumers[:i:i], consumers[i+1:]...)
			return
		}
	}
	exceptions.Panicf("op %q is not a consumer of buffer %q",
		consumerOp.Base().DebugTag, buffer.Base().DebugTag)
}

// GetInputs returns the input buffers of op, ordered by input index.
func (g *OpGraph) GetInputs(op Op) []Buffer {
	return g.opInputs[op]
}

// GetOutput returns the buffer op writes into, or nil.
func (g *OpGraph) GetOutput(op Op) Buffer {
	return g.opOutput[op]
}

func (g *OpGraph) checkMembership(buffer Buffer, op Op) {
	if !g.ContainsBuffer(buffer) {
		exceptions.Panicf("buffer %q is not part of this graph", buffer.Base().DebugTag)
	}
	if !g.Contains(op) {
		exceptions.Panicf("op %q is not part of this graph", op.Base().DebugTag)
	}
}

// MergeOpGraph adds all of other's buffers, ops and connections into this
// graph, preserving their insertion order.
func (g *OpGraph) MergeOpGraph(other *OpGraph) {
	for _, b := range other.buffers {
		g.AddBuffer(b)
	}
	for _, op := range other.ops {
		g.AddOp(op)
	}
	for _, b := range other.buffers {
		for _, p := range other.GetProducers(b) {
			g.AddProducer(b, p)
		}
	}
	for _, op := range other.ops {
		for i, b := range other.GetInputs(op) {
			g.AddConsumer(b, op, i)
		}
	}
}

// RemoveAndPruneOp removes op and then prunes any buffers left with no
// consumers or no producers as a result, cascading as far as needed.
func (g *OpGraph) RemoveAndPruneOp(op Op) {
	inputs := append([]Buffer(nil), g.GetInputs(op)...)
	for i := len(inputs) - 1; i >= 0; i-- {
		g.RemoveConsumer(inputs[i], op, i)
	}
	for _, b := range inputs {
		if len(g.GetConsumers(b)) == 0 {
			g.RemoveAndPruneBuffer(b)
		}
	}

	if out := g.GetOutput(op); out != nil {
		g.RemoveProducer(out, op)
		if len(g.GetProducers(out)) == 0 {
			g.RemoveAndPruneBuffer(out)
		}
	}

	g.removeOp(op)
}

// RemoveAndPruneBuffer removes buffer along with its producers, and any
// consumers left with no inputs.
func (g *OpGraph) RemoveAndPruneBuffer(buffer Buffer) {
	producers := append([]Op(nil), g.GetProducers(buffer)...)
	for _, p := range producers {
		g.RemoveProducer(buffer, p)
	}
	for _, p := range producers {
		g.RemoveAndPruneOp(p)
	}

	consumers := append([]Consumer(nil), g.GetConsumers(buffer)...)
	for i := len(consumers) - 1; i >= 0; i-- {
		g.RemoveConsumer(buffer, consumers[i].Op, consumers[i].InputIndex)
	}
	for _, c := range consumers {
		if len(g.GetInputs(c.Op)) == 0 {
			g.RemoveAndPruneOp(c.Op)
		}
	}

	g.removeBuffer(buffer)
}

func (g *OpGraph) removeOp(op Op) {
	for i, o := range g.ops {
		if o == op {
			g.ops = append(g.ops[:i:i], g.ops[i+1:]...)
			return
		}
	}
	exceptions.Panicf("op %q is not part of this graph", op.Base().DebugTag)
}

func (g *OpGraph) removeBuffer(buffer Buffer) {
	for i, b := range g.buffers {
		if b == buffer {
			g.buffers = append(g.buffers[:i:i], g.buffers[i+1:]...)
			return
		}
	}
	exceptions.Panicf("buffer %q is not part of this graph", buffer.Base().DebugTag)
}

// String renders a compact description of the graph, one line per op with
// its inputs and output.
func (g *OpGraph) String() string {
	var sb strings.Builder
	for _, op := range g.ops {
		var inputs []string
		for _, b := range g.GetInputs(op) {
			inputs = append(inputs, b.Base().DebugTag)
		}
		out := "<none>"
		if b := g.GetOutput(op); b != nil {
			out = b.Base().DebugTag
		}
		fmt.Fprintf(&sb, "%s: [%s] -> %s\n", op.Base().DebugTag, strings.Join(inputs, ", "), out)
	}
	return sb.String()
}
