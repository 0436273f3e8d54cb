/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package topology

import "testing"

func triad() *Graph {
	g := New([]Process{
		{Name: "parent", Connect: false},
		{Name: "hello", Connect: true},
		{Name: "child", Connect: true},
	})
	g.Connect(1, 2)
	return g
}

func TestValidateOK(t *testing.T) {
	if err := triad().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateMissingParent(t *testing.T) {
	g := New([]Process{{Name: "hello", Connect: true}})
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error when the first entry is not named parent")
	}
}

func TestValidateEmptyGraph(t *testing.T) {
	g := New(nil)
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error for an empty topology")
	}
}

func TestValidateParentMustNotConnect(t *testing.T) {
	g := New([]Process{{Name: "parent", Connect: true}})
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error when parent sets connect=true")
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	g := New([]Process{
		{Name: "parent", Connect: false},
		{Name: "hello", Connect: true},
		{Name: "hello", Connect: true},
	})
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error for duplicate process names")
	}
}

func TestValidateEdgeToUndeclaredProcess(t *testing.T) {
	g := New([]Process{
		{Name: "parent", Connect: false},
		{Name: "hello", Connect: true},
	})
	g.Connect(1, 5)
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error for an edge naming an undeclared process")
	}
}

func TestValidateEdgeToUnconnectedProcess(t *testing.T) {
	g := New([]Process{
		{Name: "parent", Connect: false},
		{Name: "hello", Connect: true},
		{Name: "quiet", Connect: false},
	})
	g.Connect(1, 2)
	if err := g.Validate(); err == nil {
		t.Fatal("expected an error for an edge touching a process the parent does not connect to")
	}
}

func TestConnectSymmetrizesOneSidedDeclaration(t *testing.T) {
	g := triad()
	// Connect(1,2) and Connect(2,1) must canonicalize to the same edge,
	// regardless of call order (spec §4.5/§9).
	edgesBefore := g.Edges()
	g.Connect(2, 1)
	edgesAfter := g.Edges()
	if len(edgesBefore) != 1 || len(edgesAfter) != 1 {
		t.Fatalf("expected exactly one canonical edge, got before=%v after=%v", edgesBefore, edgesAfter)
	}
}

func TestConnectIgnoresSelfLoop(t *testing.T) {
	g := triad()
	g.Connect(1, 1)
	if len(g.Edges()) != 1 {
		t.Fatalf("self-loop should not add an edge, got %v", g.Edges())
	}
}

func TestPeersOf(t *testing.T) {
	g := triad()
	peers := g.PeersOf(1)
	if len(peers) != 1 || peers[0] != 2 {
		t.Fatalf("PeersOf(1) = %v, want [2]", peers)
	}
	if len(g.PeersOf(0)) != 0 {
		t.Fatal("parent should have no child<->child peers")
	}
}

func TestIndexOf(t *testing.T) {
	g := triad()
	if idx := g.IndexOf("child"); idx != 2 {
		t.Fatalf("IndexOf(child) = %d, want 2", idx)
	}
	if idx := g.IndexOf("nope"); idx != -1 {
		t.Fatalf("IndexOf(nope) = %d, want -1", idx)
	}
}
