// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"sort"

	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// componentGraph is the indexed arena built once per run from the bundle's
// graph section. It is read-only after construction.
type componentGraph struct {
	raw *bundle.ComponentGraph

	abieByID  map[string]bundle.ABIE
	asbieByID map[string]bundle.ASBIE
	bbieByID  map[string]bundle.BBIE

	abieIDs  []string // sorted
	asbieIDs []string // sorted
	bbieIDs  []string // sorted

	// succ maps an ABIE to the target ABIEs of its child ASBIEs, sorted and
	// deduplicated. These are the edges the fixpoints run over.
	succ map[string][]string

	// incoming maps an ABIE to the sorted ASBIE ids targeting it.
	incoming map[string][]string

	// selfLoop marks ABIEs with an edge to themselves.
	selfLoop map[string]bool
}

func newComponentGraph(g *bundle.ComponentGraph) *componentGraph {
	cg := &componentGraph{
		raw:       g,
		abieByID:  make(map[string]bundle.ABIE, len(g.ABIEs)),
		asbieByID: make(map[string]bundle.ASBIE, len(g.ASBIEs)),
		bbieByID:  make(map[string]bundle.BBIE, len(g.BBIEs)),
		succ:      make(map[string][]string, len(g.ABIEs)),
		incoming:  make(map[string][]string, len(g.ABIEs)),
		selfLoop:  make(map[string]bool),
	}

	for _, abie := range g.ABIEs {
		cg.abieByID[abie.ID] = abie
		cg.abieIDs = append(cg.abieIDs, abie.ID)
	}
	for _, asbie := range g.ASBIEs {
		cg.asbieByID[asbie.ID] = asbie
		cg.asbieIDs = append(cg.asbieIDs, asbie.ID)
	}
	for _, bbie := range g.BBIEs {
		cg.bbieByID[bbie.ID] = bbie
		cg.bbieIDs = append(cg.bbieIDs, bbie.ID)
	}
	sort.Strings(cg.abieIDs)
	sort.Strings(cg.asbieIDs)
	sort.Strings(cg.bbieIDs)

	for _, abieID := range cg.abieIDs {
		seen := make(map[string]struct{})
		for _, asbieID := range cg.childASBIEs(abieID) {
			target := cg.asbieByID[asbieID].TargetABIE
			if target == abieID {
				cg.selfLoop[abieID] = true
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			cg.succ[abieID] = append(cg.succ[abieID], target)
		}
		sort.Strings(cg.succ[abieID])
	}

	for _, asbieID := range cg.asbieIDs {
		target := cg.asbieByID[asbieID].TargetABIE
		cg.incoming[target] = append(cg.incoming[target], asbieID)
	}
	for abieID := range cg.incoming {
		sort.Strings(cg.incoming[abieID])
	}

	return cg
}

// childASBIEs returns an ABIE's child ASBIE ids in sorted order.
func (cg *componentGraph) childASBIEs(abieID string) []string {
	children := append([]string(nil), cg.abieByID[abieID].ChildrenASBIE...)
	sort.Strings(children)
	return children
}

// childBBIEs returns an ABIE's child BBIE ids in sorted order.
func (cg *componentGraph) childBBIEs(abieID string) []string {
	children := append([]string(nil), cg.abieByID[abieID].ChildrenBBIE...)
	sort.Strings(children)
	return children
}

// sccs returns the strongly connected components of the ABIE edge graph in
// reverse topological order of the condensation: every SCC appears after the
// SCCs it has edges into, so children are fully resolved before parents.
// Node and successor visits run in sorted order for determinism.
func (cg *componentGraph) sccs() [][]string {
	state := &tarjanState{
		nodeIndex: make(map[string]int, len(cg.abieIDs)),
		lowlink:   make(map[string]int, len(cg.abieIDs)),
		onStack:   make(map[string]bool, len(cg.abieIDs)),
		edges:     cg.succ,
	}

	for _, node := range cg.abieIDs {
		if _, visited := state.nodeIndex[node]; !visited {
			state.strongConnect(node)
		}
	}

	for _, scc := range state.sccs {
		sort.Strings(scc)
	}
	return state.sccs
}

// cyclic reports whether an SCC needs fixpoint iteration: more than one
// member, or a single member with a self-loop.
func (cg *componentGraph) cyclic(scc []string) bool {
	return len(scc) > 1 || cg.selfLoop[scc[0]]
}

// tarjanState holds the DFS state for Tarjan's SCC algorithm.
type tarjanState struct {
	index     int
	nodeIndex map[string]int
	lowlink   map[string]int
	onStack   map[string]bool
	stack     []string
	sccs      [][]string
	edges     map[string][]string
}

func (s *tarjanState) strongConnect(v string) {
	s.nodeIndex[v] = s.index
	s.lowlink[v] = s.index
	s.index++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.edges[v] {
		if _, visited := s.nodeIndex[w]; !visited {
			s.strongConnect(w)
			if s.lowlink[w] < s.lowlink[v] {
				s.lowlink[v] = s.lowlink[w]
			}
		} else if s.onStack[w] {
			if s.nodeIndex[w] < s.lowlink[v] {
				s.lowlink[v] = s.nodeIndex[w]
			}
		}
	}

	if s.lowlink[v] == s.nodeIndex[v] {
		var scc []string
		for {
			w := s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]
			s.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		s.sccs = append(s.sccs, scc)
	}
}

// ancestorDistances returns, for every component of any kind, the hop count
// to each of its proper ancestors: a BBIE's parent is its owner ABIE, an
// ASBIE's parent is its source ABIE, and an ABIE's parents are its incoming
// ASBIEs. Distances are shortest-path hops; a component is never its own
// ancestor even inside a cycle.
func (cg *componentGraph) ancestorDistances() map[string]map[string]int {
	parents := make(map[string][]string)
	for _, bbieID := range cg.bbieIDs {
		parents[bbieID] = []string{cg.bbieByID[bbieID].OwnerABIE}
	}
	for _, asbieID := range cg.asbieIDs {
		parents[asbieID] = []string{cg.asbieByID[asbieID].SourceABIE}
	}
	for _, abieID := range cg.abieIDs {
		parents[abieID] = cg.incoming[abieID]
	}

	out := make(map[string]map[string]int, len(parents))
	for start := range parents {
		dist := map[string]int{start: 0}
		frontier := []string{start}
		for len(frontier) > 0 {
			var next []string
			for _, node := range frontier {
				for _, parent := range parents[node] {
					if _, seen := dist[parent]; seen {
						continue
					}
					dist[parent] = dist[node] + 1
					next = append(next, parent)
				}
			}
			frontier = next
		}
		delete(dist, start)
		out[start] = dist
	}
	return out
}
