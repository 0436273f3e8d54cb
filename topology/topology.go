/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package topology describes the fixed set of processes derived from a
// single executable and their pairwise IPC connectivity, and validates
// that description before any process is forked.
package topology

import (
	"fmt"
	"sort"

	"github.com/gravwell/privsep/perrors"
)

// Process is one entry in the topology: a kebab-cased name and whether
// the parent establishes a direct IPC channel to it. The first entry must
// be named "parent" with Connect=false.
type Process struct {
	Name    string
	Connect bool
}

// Edge is a canonicalized, undirected child-to-child connection: Lo < Hi
// are indices into Graph.Processes.
type Edge struct {
	Lo, Hi int
}

// Graph is the full topology: an ordered process list plus the symmetric
// adjacency relation among children. Build with New, then Validate before
// using it to drive a Parent.
type Graph struct {
	Processes []Process
	edges     map[Edge]struct{}
}

// New constructs a Graph from an ordered process list. index 0 must be
// the parent entry.
func New(procs []Process) *Graph {
	return &Graph{Processes: procs, edges: make(map[Edge]struct{})}
}

// Connect declares a child<->child edge between topology indices a and b.
// One-sided declarations made by only naming one side and calling Connect
// once are sufficient: the relation is stored symmetrized already, since
// the edge key is canonicalized to (min, max) regardless of call order —
// this replaces the derive front end's symmetrization step, which is out
// of scope for this module.
func (g *Graph) Connect(a, b int) {
	if a == b {
		return
	}
	if a > b {
		a, b = b, a
	}
	g.edges[Edge{Lo: a, Hi: b}] = struct{}{}
}

// Edges returns the canonicalized, sorted edge set.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lo != out[j].Lo {
			return out[i].Lo < out[j].Lo
		}
		return out[i].Hi < out[j].Hi
	})
	return out
}

// PeersOf returns the topology indices connected to index i via a
// child<->child edge.
func (g *Graph) PeersOf(i int) []int {
	var out []int
	for e := range g.edges {
		if e.Lo == i {
			out = append(out, e.Hi)
		} else if e.Hi == i {
			out = append(out, e.Lo)
		}
	}
	sort.Ints(out)
	return out
}

// Validate checks the structural invariants that must hold before any
// fork: the first entry is named "parent" with Connect=false, names are
// unique, and every edge names declared indices.
func (g *Graph) Validate() error {
	if len(g.Processes) == 0 || g.Processes[0].Name != "parent" {
		return perrors.ErrMissingParent
	}
	if g.Processes[0].Connect {
		return fmt.Errorf("topology: parent entry must not set connect=true")
	}
	seen := make(map[string]bool, len(g.Processes))
	for _, p := range g.Processes {
		if seen[p.Name] {
			return fmt.Errorf("topology: duplicate process name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for e := range g.edges {
		if e.Lo < 0 || e.Hi >= len(g.Processes) {
			return fmt.Errorf("topology: edge (%d,%d) names an undeclared process", e.Lo, e.Hi)
		}
		if !g.Processes[e.Lo].Connect || !g.Processes[e.Hi].Connect {
			return fmt.Errorf("topology: edge (%d,%d) names a process the parent does not connect to", e.Lo, e.Hi)
		}
	}
	return nil
}

// IndexOf returns the topology index of the named process, or -1.
func (g *Graph) IndexOf(name string) int {
	for i, p := range g.Processes {
		if p.Name == name {
			return i
		}
	}
	return -1
}
