// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"log/slog"
	"sort"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// PropagateResult is the serialized per-profile effective-context artifact.
// RequiredAncestors records, per component, the ancestors that absorbed
// tuples removed by the ancestor-preferred collapse; profile assembly uses it
// to enforce schema closure.
type PropagateResult struct {
	EC                KindSets            `json:"ec"`
	RequiredAncestors map[string][]string `json:"requiredAncestors"`
}

// PropagateContext seeds effective context from an IUC at the root and pushes
// it down through ASBIE gates. The root's EC is its closure intersected with
// the deduplicated seed tuples; every other ABIE gates on the union of its
// incoming ASBIEs' EC, or falls back to its own closure when nothing points
// at it. Cyclic strongly connected components iterate a monotone union
// fixpoint bounded by maxRounds. After convergence the ancestor-preferred
// collapse runs once: within each component strictly narrower tuples yield to
// their generalization, and across components a tuple duplicated at a proper
// ancestor is removed and attributed to the nearest such ancestor that keeps
// it, ties broken by lexicographic componentId.
func PropagateContext(closure *ClosureResult, cg *componentGraph, tx *bizctx.Taxonomy, iuc bundle.IUC, maxRounds int, logger *slog.Logger) (*PropagateResult, error) {
	oc := closure.OC
	root := cg.raw.RootABIE

	seed := tx.IntersectSets(oc.ABIE[root], bizctx.DedupExact(iuc.Tuples, tx.Keys))
	seed = tx.Collapse(seed)

	ec := KindSets{
		ABIE:  make(TupleSet, len(cg.abieIDs)),
		ASBIE: make(TupleSet, len(cg.asbieIDs)),
		BBIE:  make(TupleSet, len(cg.bbieIDs)),
	}
	for _, id := range cg.abieIDs {
		ec.ABIE[id] = []bizctx.Tuple{}
	}
	for _, id := range cg.asbieIDs {
		ec.ASBIE[id] = []bizctx.Tuple{}
	}
	for _, id := range cg.bbieIDs {
		ec.BBIE[id] = []bizctx.Tuple{}
	}

	gateFor := func(abieID string) []bizctx.Tuple {
		if abieID == root {
			return seed
		}
		if incoming := cg.incoming[abieID]; len(incoming) > 0 {
			var union []bizctx.Tuple
			for _, asbieID := range incoming {
				union = append(union, ec.ASBIE[asbieID]...)
			}
			return bizctx.DedupExact(union, tx.Keys)
		}
		return oc.ABIE[abieID]
	}
	settleChildren := func(abieID string) {
		for _, asbieID := range cg.childASBIEs(abieID) {
			ec.ASBIE[asbieID] = tx.IntersectSets(oc.ASBIE[asbieID], ec.ABIE[abieID])
		}
		for _, bbieID := range cg.childBBIEs(abieID) {
			ec.BBIE[bbieID] = tx.IntersectSets(oc.BBIE[bbieID], ec.ABIE[abieID])
		}
	}

	sccs := cg.sccs()
	// topological order of the condensation: parents before children.
	for i := len(sccs) - 1; i >= 0; i-- {
		scc := sccs[i]
		if !cg.cyclic(scc) {
			abieID := scc[0]
			ec.ABIE[abieID] = tx.IntersectSets(oc.ABIE[abieID], gateFor(abieID))
			settleChildren(abieID)
			continue
		}

		converged := false
		rounds := 0
		for round := 0; round < maxRounds; round++ {
			rounds = round + 1
			changed := false
			for _, abieID := range scc {
				next := tx.UnionSets(ec.ABIE[abieID], tx.IntersectSets(oc.ABIE[abieID], gateFor(abieID)))
				if !sameTupleSet(ec.ABIE[abieID], next, tx.Keys) {
					ec.ABIE[abieID] = next
					changed = true
				}
				for _, asbieID := range cg.childASBIEs(abieID) {
					ec.ASBIE[asbieID] = tx.IntersectSets(oc.ASBIE[asbieID], ec.ABIE[abieID])
				}
			}
			if !changed {
				converged = true
				break
			}
		}
		if !converged {
			logger.Warn("context propagation did not stabilize",
				"scc", scc, "maxRounds", maxRounds, "iucId", iuc.ID)
			return nil, &NonConvergenceError{
				Kind:   bundle.KindECNonConvergence,
				SCC:    scc,
				Rounds: maxRounds,
			}
		}
		for _, abieID := range scc {
			settleChildren(abieID)
		}
		logger.Debug("context propagation cycle converged",
			"scc", scc, "rounds", rounds, "iucId", iuc.ID)
	}

	for id, tuples := range ec.ABIE {
		ec.ABIE[id] = tx.Collapse(tuples)
	}
	for id, tuples := range ec.ASBIE {
		ec.ASBIE[id] = tx.Collapse(tuples)
	}
	for id, tuples := range ec.BBIE {
		ec.BBIE[id] = tx.Collapse(tuples)
	}

	required := collapseAcrossComponents(ec, cg, tx)

	logger.Info("context propagation complete",
		"iucId", iuc.ID, "seedTuples", len(seed))
	return &PropagateResult{EC: ec, RequiredAncestors: required}, nil
}

// collapseAcrossComponents removes tuples that a strictly higher ancestor
// also carries, mutating ec in place, and returns the attribution map. A
// holder keeps a tuple when no holder sits strictly above it; removed tuples
// are attributed to the nearest keeping holder above, then lexicographic.
// "Strictly above" excludes mutually reachable components, so members of the
// same cycle never absorb each other's tuples.
func collapseAcrossComponents(ec KindSets, cg *componentGraph, tx *bizctx.Taxonomy) map[string][]string {
	dist := cg.ancestorDistances()

	componentIDs := make([]string, 0, len(cg.abieIDs)+len(cg.asbieIDs)+len(cg.bbieIDs))
	componentIDs = append(componentIDs, cg.abieIDs...)
	componentIDs = append(componentIDs, cg.asbieIDs...)
	componentIDs = append(componentIDs, cg.bbieIDs...)
	sort.Strings(componentIDs)

	holders := make(map[string][]string)
	for _, id := range componentIDs {
		for _, tuple := range ec.lookup(id) {
			canon := tuple.Canon(tx.Keys)
			holders[canon] = append(holders[canon], id)
		}
	}

	strictlyAbove := func(ancestor, id string) bool {
		_, up := dist[id][ancestor]
		_, down := dist[ancestor][id]
		return up && !down
	}
	keeps := func(id, canon string) bool {
		for _, other := range holders[canon] {
			if other != id && strictlyAbove(other, id) {
				return false
			}
		}
		return true
	}

	required := make(map[string][]string)
	requiredSeen := make(map[string]map[string]struct{})

	for _, id := range componentIDs {
		tuples := ec.lookup(id)
		kept := tuples[:0:0]
		for _, tuple := range tuples {
			canon := tuple.Canon(tx.Keys)
			if keeps(id, canon) {
				kept = append(kept, tuple)
				continue
			}
			keeper, best := "", -1
			for _, other := range holders[canon] {
				if other == id || !strictlyAbove(other, id) || !keeps(other, canon) {
					continue
				}
				hops := dist[id][other]
				if best == -1 || hops < best || (hops == best && other < keeper) {
					keeper, best = other, hops
				}
			}
			if requiredSeen[id] == nil {
				requiredSeen[id] = make(map[string]struct{})
			}
			if _, dup := requiredSeen[id][keeper]; !dup {
				requiredSeen[id][keeper] = struct{}{}
				required[id] = append(required[id], keeper)
			}
		}
		if kept == nil {
			kept = []bizctx.Tuple{}
		}
		setFor(ec, cg, id)[id] = kept
	}

	for id := range required {
		sort.Strings(required[id])
	}
	return required
}

// setFor returns the kind map a component id belongs to.
func setFor(ec KindSets, cg *componentGraph, id string) TupleSet {
	if _, ok := cg.abieByID[id]; ok {
		return ec.ABIE
	}
	if _, ok := cg.asbieByID[id]; ok {
		return ec.ASBIE
	}
	return ec.BBIE
}
