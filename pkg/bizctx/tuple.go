// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bizctx

import "strings"

// Tuple assigns one category token per taxonomy axis. A full tuple carries
// every taxonomy key; a projected tuple carries only the projection axes.
type Tuple map[string]string

// Clone returns an independent copy of the tuple.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Canon returns the canonical encoding of the tuple over the given ordered
// key list. Keys absent from the tuple are skipped, so a projection's canon is
// stable under its axis order. Two tuples are equal iff their canons over the
// same key order are byte-identical.
func (t Tuple) Canon(keys []string) string {
	var sb strings.Builder
	for _, key := range keys {
		if token, ok := t[key]; ok {
			sb.WriteString(key)
			sb.WriteByte('=')
			sb.WriteString(token)
			sb.WriteByte(';')
		}
	}
	return sb.String()
}

// DedupExact removes exact duplicates from a tuple set, preserving first-seen
// order. Equality is canonical-order equality over keys.
func DedupExact(tuples []Tuple, keys []string) []Tuple {
	seen := make(map[string]struct{}, len(tuples))
	out := make([]Tuple, 0, len(tuples))
	for _, tuple := range tuples {
		canon := tuple.Canon(keys)
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		out = append(out, tuple)
	}
	return out
}

// IntersectToken narrows two tokens on one axis. The placeholder acts as a
// wildcard; otherwise the more specific of two hierarchy-related tokens wins.
// ok is false when the tokens are unrelated.
func (tx *Taxonomy) IntersectToken(left, right, placeholder string) (token string, ok bool) {
	switch {
	case tx.norm(left) == tx.norm(placeholder):
		return right, true
	case tx.norm(right) == tx.norm(placeholder):
		return left, true
	case tx.norm(left) == tx.norm(right):
		return left, true
	case tx.isAncestor(left, right):
		return right, true
	case tx.isAncestor(right, left):
		return left, true
	default:
		return "", false
	}
}

// IntersectTuple narrows two tuples axis by axis over the full taxonomy key
// order. A key missing from right is treated as unconstrained. ok is false
// when any axis fails to intersect.
func (tx *Taxonomy) IntersectTuple(left, right Tuple) (Tuple, bool) {
	out := make(Tuple, len(tx.Keys))
	for _, key := range tx.Keys {
		l := left[key]
		r, present := right[key]
		if !present {
			r = l
		}
		token, ok := tx.IntersectToken(l, r, tx.Placeholders[key])
		if !ok {
			return nil, false
		}
		out[key] = token
	}
	return out, true
}

// IntersectSets returns the pairwise tuple intersection of two sets, deduped
// in first-seen order. An empty side always yields an empty result.
func (tx *Taxonomy) IntersectSets(left, right []Tuple) []Tuple {
	var out []Tuple
	for _, l := range left {
		for _, r := range right {
			if tuple, ok := tx.IntersectTuple(l, r); ok {
				out = append(out, tuple)
			}
		}
	}
	return DedupExact(out, tx.Keys)
}

// UnionSets concatenates tuple sets in order and dedups exactly.
func (tx *Taxonomy) UnionSets(sets ...[]Tuple) []Tuple {
	var out []Tuple
	for _, set := range sets {
		out = append(out, set...)
	}
	return DedupExact(out, tx.Keys)
}

// Covers reports whether ancestor covers descendant on every taxonomy axis:
// each descendant token equals or descends from the ancestor token.
func (tx *Taxonomy) Covers(ancestor, descendant Tuple) bool {
	for _, key := range tx.Keys {
		if !tx.isAncestor(ancestor[key], descendant[key]) {
			return false
		}
	}
	return true
}

// coversStrictly is Covers with at least one axis strictly deeper.
func (tx *Taxonomy) coversStrictly(ancestor, descendant Tuple) bool {
	strict := false
	for _, key := range tx.Keys {
		if !tx.isAncestor(ancestor[key], descendant[key]) {
			return false
		}
		if tx.norm(ancestor[key]) != tx.norm(descendant[key]) {
			strict = true
		}
	}
	return strict
}

// Collapse applies the ancestor-preferred rule inside one tuple set: a tuple
// strictly covered by another tuple of the same set is dropped. The surviving
// tuples keep their first-seen order.
func (tx *Taxonomy) Collapse(tuples []Tuple) []Tuple {
	deduped := DedupExact(tuples, tx.Keys)
	out := make([]Tuple, 0, len(deduped))
	for i, candidate := range deduped {
		dropped := false
		for j, other := range deduped {
			if i == j {
				continue
			}
			if tx.coversStrictly(other, candidate) {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, candidate)
		}
	}
	return out
}

// Project restricts each tuple to the given axes, discarding tokens on other
// axes, and dedups the result over the axis order. Projecting a non-empty set
// onto zero axes yields the single empty tuple.
func Project(tuples []Tuple, axes []string) []Tuple {
	out := make([]Tuple, 0, len(tuples))
	for _, tuple := range tuples {
		projected := make(Tuple, len(axes))
		for _, axis := range axes {
			if token, ok := tuple[axis]; ok {
				projected[axis] = token
			}
		}
		out = append(out, projected)
	}
	return DedupExact(out, axes)
}

// IntersectProjected returns the exact-equality intersection of two projected
// sets over the axis order, preserving left's order.
func IntersectProjected(left, right []Tuple, axes []string) []Tuple {
	members := make(map[string]struct{}, len(right))
	for _, tuple := range right {
		members[tuple.Canon(axes)] = struct{}{}
	}
	var out []Tuple
	for _, tuple := range left {
		if _, ok := members[tuple.Canon(axes)]; ok {
			out = append(out, tuple)
		}
	}
	return DedupExact(out, axes)
}
