// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// GraphOfParts owns all parts of a compilation plus the connection table
// between their slots. It is mutated only while the front end builds it;
// once handed to the combiner it is read-only.
type GraphOfParts struct {
	parts []Part
	// connections holds the edges in insertion order. Everything that
	// enumerates edges walks this slice, never a map, so results are
	// deterministic.
	connections []Connection
	// byDestination indexes connections by input slot for O(1) lookups.
	byDestination map[PartInputSlot]PartOutputSlot

	nextID PartId
}

// NewGraphOfParts returns an empty graph.
func NewGraphOfParts() *GraphOfParts {
	return &GraphOfParts{
		byDestination: make(map[PartInputSlot]PartOutputSlot),
	}
}

// GeneratePartId returns a fresh id, unique within this graph.
func (g *GraphOfParts) GeneratePartId() PartId {
	id := g.nextID
	g.nextID++
	return id
}

// AddPart transfers ownership of part into the graph. The part's id must
// come from GeneratePartId and be unused.
func (g *GraphOfParts) AddPart(part Part) {
	for _, p := range g.parts {
		if p.ID() == part.ID() {
			exceptions.Panicf("part id %d is already in use by %q", part.ID(), p.DebugTag())
		}
	}
	g.parts = append(g.parts, part)
}

// Parts returns the graph's parts. After SortAndCompact the slice is in
// topological order. The returned slice must not be modified.
func (g *GraphOfParts) Parts() []Part { return g.parts }

// NumParts returns the number of parts.
func (g *GraphOfParts) NumParts() int { return len(g.parts) }

// GetPart returns the part with the given id. Panics if absent.
func (g *GraphOfParts) GetPart(id PartId) Part {
	for _, p := range g.parts {
		if p.ID() == id {
			return p
		}
	}
	exceptions.Panicf("no part with id %d", id)
	return nil
}

// AddConnection connects an input slot to the output slot feeding it. The
// input slot must not already be connected.
func (g *GraphOfParts) AddConnection(destination PartInputSlot, source PartOutputSlot) {
	if _, ok := g.byDestination[destination]; ok {
		exceptions.Panicf("%v is already connected", destination)
	}
	g.connections = append(g.connections, Connection{Destination: destination, Source: source})
	g.byDestination[destination] = source
}

// GetConnectedOutputSlot returns the output slot feeding the given input
// slot, or nil if unconnected.
func (g *GraphOfParts) GetConnectedOutputSlot(destination PartInputSlot) *PartOutputSlot {
	if source, ok := g.byDestination[destination]; ok {
		return &source
	}
	return nil
}

// GetConnectedInputSlots returns the input slots fed by the given output
// slot, in edge insertion order.
func (g *GraphOfParts) GetConnectedInputSlots(source PartOutputSlot) []PartInputSlot {
	var result []PartInputSlot
	for _, c := range g.connections {
		if c.Source == source {
			result = append(result, c.Destination)
		}
	}
	return result
}

// GetSourceConnections returns the connections feeding into the given part.
func (g *GraphOfParts) GetSourceConnections(id PartId) []Connection {
	var result []Connection
	for _, c := range g.connections {
		if c.Destination.PartId == id {
			result = append(result, c)
		}
	}
	return result
}

// GetDestinationConnections returns the connections leaving the given part.
func (g *GraphOfParts) GetDestinationConnections(id PartId) []Connection {
	var result []Connection
	for _, c := range g.connections {
		if c.Source.PartId == id {
			result = append(result, c)
		}
	}
	return result
}

// GetPartInputs returns the input slots of the given part, sorted by index.
func (g *GraphOfParts) GetPartInputs(id PartId) []PartInputSlot {
	var result []PartInputSlot
	for _, c := range g.connections {
		if c.Destination.PartId == id {
			result = append(result, c.Destination)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// GetPartOutputs returns the output slots of the given part that feed at
// least one consumer, sorted by index with duplicates removed.
func (g *GraphOfParts) GetPartOutputs(id PartId) []PartOutputSlot {
	seen := make(map[PartOutputSlot]bool)
	var result []PartOutputSlot
	for _, c := range g.connections {
		if c.Source.PartId == id && !seen[c.Source] {
			seen[c.Source] = true
			result = append(result, c.Source)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// Validate checks the structural invariants the combiner relies on,
// accumulating every violation found.
func (g *GraphOfParts) Validate() error {
	var errs error
	ids := make(map[PartId]bool, len(g.parts))
	for _, p := range g.parts {
		ids[p.ID()] = true
	}
	seenDestinations := make(map[PartInputSlot]int)
	for _, c := range g.connections {
		if !ids[c.Destination.PartId] {
			errs = multierr.Append(errs, errors.Errorf("connection to %v references a missing part", c.Destination))
		}
		if !ids[c.Source.PartId] {
			errs = multierr.Append(errs, errors.Errorf("connection from %v references a missing part", c.Source))
		}
		seenDestinations[c.Destination]++
	}
	for _, c := range g.connections {
		if seenDestinations[c.Destination] > 1 {
			errs = multierr.Append(errs, errors.Errorf("%v has %d sources, expected one",
				c.Destination, seenDestinations[c.Destination]))
			seenDestinations[c.Destination] = 1 // report once
		}
	}
	return errs
}

// SortAndCompact produces the canonical topological order and renumbers part
// ids densely from zero. The combiner's index-based bookkeeping requires
// this to have run. Ties are broken by old id, so the result is a pure
// function of the graph.
func (g *GraphOfParts) SortAndCompact() {
	inDegree := make(map[PartId]int, len(g.parts))
	for _, p := range g.parts {
		inDegree[p.ID()] = 0
	}
	for _, c := range g.connections {
		inDegree[c.Destination.PartId]++
	}

	ready := make([]Part, 0, len(g.parts))
	for _, p := range g.parts {
		if inDegree[p.ID()] == 0 {
			ready = append(ready, p)
		}
	}

	sorted := make([]Part, 0, len(g.parts))
	for len(ready) > 0 {
		// Lowest old id first, for a canonical order.
		best := 0
		for i := 1; i < len(ready); i++ {
			if ready[i].ID() < ready[best].ID() {
				best = i
			}
		}
		p := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, p)

		for _, c := range g.GetDestinationConnections(p.ID()) {
			destination := c.Destination.PartId
			inDegree[destination]--
			if inDegree[destination] == 0 {
				ready = append(ready, g.GetPart(destination))
			}
		}
	}
	if len(sorted) != len(g.parts) {
		exceptions.Panicf("graph of parts contains a cycle (%d of %d parts sorted)",
			len(sorted), len(g.parts))
	}

	oldToNew := make(map[PartId]PartId, len(sorted))
	for i, p := range sorted {
		oldToNew[p.ID()] = PartId(i)
	}
	for i, p := range sorted {
		klog.V(2).Infof("SortAndCompact: part %q %d -> %d", p.DebugTag(), p.ID(), PartId(i))
		p.SetID(PartId(i))
	}
	for i := range g.connections {
		c := &g.connections[i]
		c.Destination.PartId = oldToNew[c.Destination.PartId]
		c.Source.PartId = oldToNew[c.Source.PartId]
	}
	g.byDestination = make(map[PartInputSlot]PartOutputSlot, len(g.connections))
	for _, c := range g.connections {
		g.byDestination[c.Destination] = c.Source
	}
	g.parts = sorted
	g.nextID = PartId(len(sorted))
}
