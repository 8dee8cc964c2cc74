// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

// PrefilterEntry carries a component's surviving tuples after policy
// filtering. Components whose tuples were all dropped are omitted.
type PrefilterEntry struct {
	ComponentID string         `json:"componentId"`
	Tuples      []bizctx.Tuple `json:"tuples"`
}

// PrefilterLog records the decision taken for a single assigned tuple.
// Witnesses index the legal tuples that matched.
type PrefilterLog struct {
	ComponentID string            `json:"componentId"`
	TupleIndex  int               `json:"tupleIndex"`
	Action      string            `json:"action"`
	Fills       map[string]string `json:"fills"`
	Witnesses   []int             `json:"witnesses"`
	TupleBefore bizctx.Tuple      `json:"tupleBefore"`
	TuplesAfter []bizctx.Tuple    `json:"tuplesAfter"`
	Reason      string            `json:"reason,omitempty"`
}

// PrefilterResult is the serialized output of policy filtering.
type PrefilterResult struct {
	Prefiltered []PrefilterEntry `json:"prefiltered"`
	Log         []PrefilterLog   `json:"log"`
}

const (
	actionKeptMulti = "kept-multi"
	actionDropped   = "dropped"
)

// byComponent indexes the prefiltered tuples for the later stages.
func (r *PrefilterResult) byComponent() map[string][]bizctx.Tuple {
	out := make(map[string][]bizctx.Tuple, len(r.Prefiltered))
	for _, entry := range r.Prefiltered {
		out[entry.ComponentID] = entry.Tuples
	}
	return out
}

// Prefilter keeps, per assigned tuple, one narrowed copy for every legal
// tuple it is compatible with on the policy keys. Defaults from the taxonomy
// are filled in before matching and recorded in the log; tuples with no legal
// witness, or with a key that has no value and no default, are dropped.
// Assignment and tuple order is preserved.
func Prefilter(assignments []bundle.Assignment, policy *bundle.Policy, tx *bizctx.Taxonomy, logger *slog.Logger) *PrefilterResult {
	result := &PrefilterResult{
		Prefiltered: []PrefilterEntry{},
		Log:         []PrefilterLog{},
	}

	byComponent := make(map[string][]bizctx.Tuple)
	var componentOrder []string

	for _, assignment := range assignments {
		componentID := assignment.ComponentID
		if _, seen := byComponent[componentID]; !seen {
			byComponent[componentID] = []bizctx.Tuple{}
			componentOrder = append(componentOrder, componentID)
		}

		for tupleIndex, before := range assignment.Tuples {
			normalized, fills, reason := normalizeTuple(before, tx)
			if reason != "" {
				result.Log = append(result.Log, PrefilterLog{
					ComponentID: componentID,
					TupleIndex:  tupleIndex,
					Action:      actionDropped,
					Fills:       fills,
					Witnesses:   []int{},
					TupleBefore: before.Clone(),
					TuplesAfter: []bizctx.Tuple{},
					Reason:      reason,
				})
				continue
			}

			witnesses := []int{}
			narrowed := []bizctx.Tuple{}
			for witnessIndex, legal := range policy.LegalTuples {
				if !matchesOnPolicyKeys(normalized, legal, policy.PolicyKeys, tx) {
					continue
				}
				narrowedTuple, ok := tx.IntersectTuple(normalized, legal)
				if !ok {
					continue
				}
				witnesses = append(witnesses, witnessIndex)
				narrowed = append(narrowed, narrowedTuple)
			}
			narrowed = bizctx.DedupExact(narrowed, tx.Keys)

			if len(narrowed) == 0 {
				result.Log = append(result.Log, PrefilterLog{
					ComponentID: componentID,
					TupleIndex:  tupleIndex,
					Action:      actionDropped,
					Fills:       fills,
					Witnesses:   []int{},
					TupleBefore: before.Clone(),
					TuplesAfter: []bizctx.Tuple{},
					Reason:      "no-legal-match",
				})
				continue
			}

			byComponent[componentID] = append(byComponent[componentID], narrowed...)
			result.Log = append(result.Log, PrefilterLog{
				ComponentID: componentID,
				TupleIndex:  tupleIndex,
				Action:      actionKeptMulti,
				Fills:       fills,
				Witnesses:   witnesses,
				TupleBefore: before.Clone(),
				TuplesAfter: narrowed,
			})
			if len(fills) > 0 {
				logger.Debug("applied taxonomy defaults",
					"componentId", componentID,
					"tupleIndex", tupleIndex,
					"fills", fills)
			}
		}
	}

	for _, componentID := range componentOrder {
		deduped := bizctx.DedupExact(byComponent[componentID], tx.Keys)
		if len(deduped) == 0 {
			continue
		}
		result.Prefiltered = append(result.Prefiltered, PrefilterEntry{
			ComponentID: componentID,
			Tuples:      deduped,
		})
	}

	logger.Info("policy prefilter complete",
		"components", len(result.Prefiltered),
		"logEntries", len(result.Log))
	return result
}

// normalizeTuple fills taxonomy defaults for missing keys. A missing key
// without a default makes the tuple undroppable into the policy space and is
// reported as a drop reason.
func normalizeTuple(before bizctx.Tuple, tx *bizctx.Taxonomy) (bizctx.Tuple, map[string]string, string) {
	normalized := bizctx.Tuple{}
	fills := map[string]string{}
	for _, key := range tx.Keys {
		if value, ok := before[key]; ok {
			normalized[key] = value
			continue
		}
		if fallback, ok := tx.Defaults[key]; ok {
			normalized[key] = fallback
			fills[key] = fallback
			continue
		}
		return nil, fills, fmt.Sprintf("missing-key-no-default:%s", key)
	}
	return normalized, fills, ""
}

// matchesOnPolicyKeys reports whether the tuple is token-compatible with the
// legal tuple on every policy key.
func matchesOnPolicyKeys(tuple, legal bizctx.Tuple, policyKeys []string, tx *bizctx.Taxonomy) bool {
	for _, key := range policyKeys {
		if _, ok := tx.IntersectToken(tuple[key], legal[key], tx.Placeholders[key]); !ok {
			return false
		}
	}
	return true
}
