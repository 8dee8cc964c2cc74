// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"log/slog"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// TupleSet maps component ids of one kind to their tuple sets. Empty sets are
// materialized so the serialized form carries [] rather than null.
type TupleSet map[string][]bizctx.Tuple

// KindSets groups per-kind tuple sets, the shared shape of the OC and EC
// artifacts.
type KindSets struct {
	ABIE  TupleSet `json:"ABIE"`
	ASBIE TupleSet `json:"ASBIE"`
	BBIE  TupleSet `json:"BBIE"`
}

// lookup returns a component's tuple set regardless of kind.
func (k KindSets) lookup(id string) []bizctx.Tuple {
	if tuples, ok := k.ABIE[id]; ok {
		return tuples
	}
	if tuples, ok := k.ASBIE[id]; ok {
		return tuples
	}
	return k.BBIE[id]
}

// ClosureResult is the serialized output of the overlap closure.
type ClosureResult struct {
	OC KindSets `json:"oc"`
}

// OverlapClosure computes each component's overlap-closure set bottom-up.
// BBIEs carry their prefiltered tuples as-is; an ASBIE's closure is the
// intersection of its prefiltered tuples with its target ABIE's closure; an
// ABIE's closure is the union of its own prefiltered tuples with its
// children's closures. Acyclic regions resolve in a single reverse
// topological pass; cyclic strongly connected components iterate a monotone
// union fixpoint bounded by maxRounds.
func OverlapClosure(pre *PrefilterResult, cg *componentGraph, tx *bizctx.Taxonomy, maxRounds int, logger *slog.Logger) (*ClosureResult, error) {
	prefiltered := pre.byComponent()

	oc := KindSets{
		ABIE:  make(TupleSet, len(cg.abieIDs)),
		ASBIE: make(TupleSet, len(cg.asbieIDs)),
		BBIE:  make(TupleSet, len(cg.bbieIDs)),
	}
	for _, bbieID := range cg.bbieIDs {
		oc.BBIE[bbieID] = emptyIfNil(prefiltered[bbieID])
	}

	computeASBIE := func(asbieID string) []bizctx.Tuple {
		target := cg.asbieByID[asbieID].TargetABIE
		return tx.IntersectSets(emptyIfNil(prefiltered[asbieID]), oc.ABIE[target])
	}
	computeABIE := func(abieID string) []bizctx.Tuple {
		sets := append([]bizctx.Tuple{}, emptyIfNil(prefiltered[abieID])...)
		for _, asbieID := range cg.childASBIEs(abieID) {
			sets = append(sets, oc.ASBIE[asbieID]...)
		}
		for _, bbieID := range cg.childBBIEs(abieID) {
			sets = append(sets, oc.BBIE[bbieID]...)
		}
		return bizctx.DedupExact(sets, tx.Keys)
	}

	for _, scc := range cg.sccs() {
		if !cg.cyclic(scc) {
			abieID := scc[0]
			for _, asbieID := range cg.childASBIEs(abieID) {
				oc.ASBIE[asbieID] = computeASBIE(asbieID)
			}
			oc.ABIE[abieID] = computeABIE(abieID)
			continue
		}

		// Cycle members start from their own prefiltered tuples and grow
		// by union only, so each round's set is a superset of the last.
		for _, abieID := range scc {
			oc.ABIE[abieID] = emptyIfNil(prefiltered[abieID])
		}
		converged := false
		rounds := 0
		for round := 0; round < maxRounds; round++ {
			rounds = round + 1
			changed := false
			for _, abieID := range scc {
				for _, asbieID := range cg.childASBIEs(abieID) {
					oc.ASBIE[asbieID] = computeASBIE(asbieID)
				}
				next := tx.UnionSets(oc.ABIE[abieID], computeABIE(abieID))
				if !sameTupleSet(oc.ABIE[abieID], next, tx.Keys) {
					oc.ABIE[abieID] = next
					changed = true
				}
			}
			if !changed {
				converged = true
				break
			}
		}
		if !converged {
			logger.Warn("overlap closure did not stabilize",
				"scc", scc, "maxRounds", maxRounds)
			return nil, &NonConvergenceError{
				Kind:   bundle.KindOCNonConvergence,
				SCC:    scc,
				Rounds: maxRounds,
			}
		}
		// Settle child ASBIEs against the converged member values.
		for _, abieID := range scc {
			for _, asbieID := range cg.childASBIEs(abieID) {
				oc.ASBIE[asbieID] = computeASBIE(asbieID)
			}
		}
		logger.Debug("overlap closure cycle converged", "scc", scc, "rounds", rounds)
	}

	return &ClosureResult{OC: oc}, nil
}

func emptyIfNil(tuples []bizctx.Tuple) []bizctx.Tuple {
	if tuples == nil {
		return []bizctx.Tuple{}
	}
	return tuples
}

// sameTupleSet compares two tuple sets as ordered canonical encodings.
func sameTupleSet(left, right []bizctx.Tuple, keys []string) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i].Canon(keys) != right[i].Canon(keys) {
			return false
		}
	}
	return true
}
